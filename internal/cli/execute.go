package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/guiagent-mcp/internal/executor"
)

func newExecuteCmd(opts *rootOptions) *cobra.Command {
	var (
		task       string
		provider   string
		deviceID   string
		maxSteps   int
		timeoutSec int
		stateless  bool
		extraInfo  string
	)

	cmd := &cobra.Command{
		Use:     "execute",
		Aliases: []string{"exec", "run"},
		Short:   "Execute a GUI task",
		Long: "Execute starts a new automation session: the task is handed to the model\n" +
			"provider, which plans and performs device actions step by step until it\n" +
			"completes, needs a user reply, or runs out of budget.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if res := rejectBadBudgets(cmd, "execute"); res != nil {
				return renderFailure(opts, res)
			}
			extra, err := parseExtraInfo(extraInfo)
			if err != nil {
				return renderFailure(opts, executor.Reject("execute", err))
			}
			return runOperation(cmd, opts, func(ctx context.Context, a *app) *executor.Result {
				return a.ops.Execute(ctx, executor.ExecuteRequest{
					Task:      task,
					Provider:  provider,
					DeviceID:  deviceID,
					MaxSteps:  maxSteps,
					Stateless: stateless,
					Extra:     extra,
					Timeout:   time.Duration(timeoutSec) * time.Second,
				})
			})
		},
	}

	cmd.Flags().StringVarP(&task, "task", "t", "", "Task description to execute")
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Model provider (local/stepfun/zhipu/qwen)")
	cmd.Flags().StringVarP(&deviceID, "device-id", "d", "", "ADB device serial")
	cmd.Flags().IntVarP(&maxSteps, "max-steps", "m", 0, "Maximum execution steps (default from config)")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 0, "Operation timeout in seconds (default from config)")
	cmd.Flags().BoolVar(&stateless, "stateless", false,
		"One-shot stateless mode: new conversation each call, no persisted session, no Home reset")
	cmd.Flags().StringVarP(&extraInfo, "extra-info", "e", "", "Extra JSON object forwarded to the planning backend")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

// parseExtraInfo decodes the --extra-info payload, which must be a JSON
// object when present.
func parseExtraInfo(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var extra map[string]any
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return nil, fmt.Errorf("%w: invalid --extra-info JSON: %v", executor.ErrInvalidInput, err)
	}
	return extra, nil
}
