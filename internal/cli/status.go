package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/guiagent-mcp/internal/executor"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var deviceID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report device state and the latest active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, opts, func(ctx context.Context, a *app) *executor.Result {
				return a.ops.Status(ctx, executor.StatusRequest{DeviceID: deviceID})
			})
		},
	}

	cmd.Flags().StringVarP(&deviceID, "device-id", "d", "", "ADB device serial")
	return cmd
}
