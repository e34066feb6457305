package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/guiagent-mcp/internal/executor"
)

func newDevicesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List connected devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, opts, func(ctx context.Context, a *app) *executor.Result {
				return a.ops.Devices(ctx)
			})
		},
	}
}

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	var deviceID string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, opts, func(ctx context.Context, a *app) *executor.Result {
				return a.ops.Sessions(ctx, deviceID)
			})
		},
	}

	cmd.Flags().StringVarP(&deviceID, "device-id", "d", "", "Only sessions for this device")
	return cmd
}

func newProvidersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List model providers and their readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, opts, func(ctx context.Context, a *app) *executor.Result {
				return a.ops.Providers(ctx)
			})
		},
	}
}
