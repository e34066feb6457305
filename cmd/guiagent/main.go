package main

import (
	"os"

	"github.com/AltairaLabs/guiagent-mcp/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
