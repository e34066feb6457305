package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/guiagent-mcp/internal/executor"
)

// defaultPostDelayMS is the pause between the tap and the post-state
// screenshot, long enough for most UI transitions to settle.
const defaultPostDelayMS = 350

func newTapCmd(opts *rootOptions) *cobra.Command {
	var (
		x           float64
		y           float64
		coordSpace  string
		deviceID    string
		postDelayMS int
		timeoutSec  int
	)

	cmd := &cobra.Command{
		Use:     "tap",
		Aliases: []string{"click"},
		Short:   "Tap a screen coordinate without model planning",
		Long: "Tap resolves x/y against the device screen and injects a single tap. In\n" +
			"auto space, values where both 0 <= x,y <= 1 are treated as ratios of the\n" +
			"screen size; anything else is device pixels. Works in tap-only mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if res := rejectBadBudgets(cmd, "tap"); res != nil {
				return renderFailure(opts, res)
			}
			if postDelayMS < 0 {
				return renderFailure(opts, executor.Reject("tap",
					fmt.Errorf("%w: --post-delay-ms must be >= 0", executor.ErrInvalidInput)))
			}
			return runOperation(cmd, opts, func(ctx context.Context, a *app) *executor.Result {
				return a.ops.Tap(ctx, executor.TapRequest{
					DeviceID:  deviceID,
					X:         x,
					Y:         y,
					Space:     coordSpace,
					PostDelay: time.Duration(postDelayMS) * time.Millisecond,
					Timeout:   time.Duration(timeoutSec) * time.Second,
				})
			})
		},
	}

	cmd.Flags().Float64Var(&x, "x", 0, "X coordinate (ratio 0..1 or pixels, per --coord-space)")
	cmd.Flags().Float64Var(&y, "y", 0, "Y coordinate (ratio 0..1 or pixels, per --coord-space)")
	cmd.Flags().StringVar(&coordSpace, "coord-space", "auto", "Coordinate space for x/y: auto, pixel, or ratio")
	cmd.Flags().StringVarP(&deviceID, "device-id", "d", "", "ADB device serial")
	cmd.Flags().IntVar(&postDelayMS, "post-delay-ms", defaultPostDelayMS,
		"Delay after the tap before capturing the post-state screenshot (milliseconds)")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 0, "Operation timeout in seconds (default from config)")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("y")
	return cmd
}
