package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/AltairaLabs/guiagent-mcp/internal/executor"
)

// render writes res to stdout in the selected format. --text wins when
// both format flags are passed.
func render(opts *rootOptions, res *executor.Result) error {
	if opts.textOut {
		renderText(opts.stdout, res)
		return nil
	}
	return renderJSON(opts.stdout, res)
}

func renderJSON(w io.Writer, res *executor.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// renderText prints the handful of fields a human scans for; the JSON
// mode carries the full payload.
func renderText(w io.Writer, res *executor.Result) {
	if !res.Success {
		fmt.Fprintln(w, "[ERROR] Failed")
		if res.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", res.Error)
		}
		if res.Message != "" {
			fmt.Fprintf(w, "  Message: %s\n", res.Message)
		}
		return
	}

	fmt.Fprintln(w, "[OK] Success")
	if res.Caption != "" {
		fmt.Fprintf(w, "  State: %s\n", res.Caption)
	}
	if res.SessionID != "" {
		fmt.Fprintf(w, "  Session: %s\n", res.SessionID)
	}
	if res.NextAction != "" {
		fmt.Fprintf(w, "  Next action: %s\n", res.NextAction)
	}
	if res.ScreenshotPath != "" {
		fmt.Fprintf(w, "  Screenshot: %s\n", res.ScreenshotPath)
	}
	for _, d := range res.Devices {
		fmt.Fprintf(w, "  Device: %s\n", d)
	}
	for _, s := range res.Sessions {
		fmt.Fprintf(w, "  Session %s [%s] %s\n", s.ID, s.Status, s.Task)
	}
	for _, p := range res.Providers {
		state := "ready"
		if !p.Ready {
			state = "not configured"
		}
		fmt.Fprintf(w, "  Provider %s (%s): %s\n", p.Name, p.Model, state)
	}
}
