package device

import (
	"bytes"
	"image/png"

	"github.com/AltairaLabs/guiagent-mcp/internal/coords"
)

// PNGSize returns the dimensions recorded in a PNG header. DecodeConfig
// reads only the header, never the pixel data.
func PNGSize(data []byte) (coords.Size, bool) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return coords.Size{}, false
	}
	return coords.Size{Width: cfg.Width, Height: cfg.Height}, true
}
