package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/guiagent-mcp/internal/executor"
)

func newContinueCmd(opts *rootOptions) *cobra.Command {
	var (
		sessionID  string
		reply      string
		task       string
		deviceID   string
		maxSteps   int
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:     "continue",
		Aliases: []string{"cont"},
		Short:   "Continue an existing session",
		Long: "Continue resumes a stored session for another planner round-trip. Without\n" +
			"--session-id the most recently active session is picked; --reply answers a\n" +
			"planner question and --task replaces the session goal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if res := rejectBadBudgets(cmd, "continue"); res != nil {
				return renderFailure(opts, res)
			}
			return runOperation(cmd, opts, func(ctx context.Context, a *app) *executor.Result {
				return a.ops.Continue(ctx, executor.ContinueRequest{
					SessionID: sessionID,
					Reply:     reply,
					Task:      task,
					DeviceID:  deviceID,
					MaxSteps:  maxSteps,
					Timeout:   time.Duration(timeoutSec) * time.Second,
				})
			})
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session-id", "s", "", "Session ID (latest active session when omitted)")
	cmd.Flags().StringVarP(&reply, "reply", "r", "", "User reply to a planner question")
	cmd.Flags().StringVarP(&task, "task", "t", "", "Replacement task description")
	cmd.Flags().StringVarP(&deviceID, "device-id", "d", "", "ADB device serial")
	cmd.Flags().IntVarP(&maxSteps, "max-steps", "m", 0, "Maximum execution steps (default from config)")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 0, "Operation timeout in seconds (default from config)")
	return cmd
}
