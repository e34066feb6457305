// Package cli implements the guiagent command line front end. Every
// orchestrator operation gets one subcommand that prints a single
// ActionResult payload to stdout and maps success onto the process exit
// code; serve exposes the same operations as MCP tools.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/guiagent-mcp/internal/config"
	"github.com/AltairaLabs/guiagent-mcp/internal/device"
	"github.com/AltairaLabs/guiagent-mcp/internal/executor"
	"github.com/AltairaLabs/guiagent-mcp/internal/planner"
	"github.com/AltairaLabs/guiagent-mcp/internal/session"
	"github.com/AltairaLabs/guiagent-mcp/internal/session/sqlite"
	"github.com/AltairaLabs/guiagent-mcp/internal/supervisor"
)

const version = "0.1.0"

const (
	exitOK      = 0
	exitFailure = 1
	// exitOrphaned is the watchdog's exit code when the parent process
	// disappears under a running invocation.
	exitOrphaned = 130
)

// errOperationFailed marks a run whose failure payload was already
// printed; it carries no message and only selects the exit code.
var errOperationFailed = errors.New("operation failed")

// rootOptions carries the persistent flags and output streams shared by
// every subcommand.
type rootOptions struct {
	configPath string
	jsonOut    bool
	textOut    bool
	debug      bool

	stdout io.Writer
	stderr io.Writer
}

// Execute runs the CLI against os.Args and returns the process exit code.
func Execute() int {
	opts := &rootOptions{stdout: os.Stdout, stderr: os.Stderr}
	root := newRootCmd(opts)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errOperationFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return exitFailure
	}
	return exitOK
}

// newRootCmd assembles the command tree. Output writers come from opts so
// tests can capture them.
func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "guiagent",
		Short: "Drive Android GUI automation through planner-guided adb control",
		Long: "guiagent executes natural-language GUI tasks on Android devices via adb,\n" +
			"delegating action planning to a configurable model provider. Results are\n" +
			"printed as JSON (default) or human-readable text; the exit code is 0 when\n" +
			"the operation succeeded and 1 otherwise.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return err
			}
			return errOperationFailed
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to the config file (default ~/.guiagent/config.yaml)")
	pf.BoolVar(&opts.jsonOut, "json", true, "Print the result as JSON (default)")
	pf.BoolVar(&opts.textOut, "text", false, "Print the result as human-readable text")
	pf.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newExecuteCmd(opts),
		newContinueCmd(opts),
		newTapCmd(opts),
		newStatusCmd(opts),
		newDevicesCmd(opts),
		newSessionsCmd(opts),
		newProvidersCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// app is the wired control plane an invocation runs against.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  session.Store
	sup    *supervisor.Supervisor
	ops    *executor.Orchestrator
}

var watchdogOnce sync.Once

// newApp loads configuration and wires the orchestrator stack. Logs go to
// stderr so stdout stays clean for the result payload and the MCP stdio
// transport.
func newApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(opts.stderr, &slog.HandlerOptions{Level: level}))

	store, err := sqlite.Open(cfg.SessionDBPath(), nil)
	if err != nil {
		return nil, err
	}

	registry := planner.NewRegistry(cfg.Providers, logger)
	registry.SeedEnv()

	sup := supervisor.New(cfg.OperationTimeout(), 0, nil, logger)
	ops := executor.New(executor.Options{
		Config:     cfg,
		Store:      store,
		Device:     device.NewADB(cfg.Device.ADBPath, nil, logger),
		Providers:  registry,
		Supervisor: sup,
		Logger:     logger,
	})

	a := &app{cfg: cfg, logger: logger, store: store, sup: sup, ops: ops}
	watchdogOnce.Do(func() { startParentWatchdog(a.sup, a.logger) })
	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close session store", "error", err)
	}
}

// runOperation wires the app, runs one operation under interrupt signals,
// renders its result, and maps failure onto the exit code contract. The
// tail sweep runs whether or not the operation succeeded, so pids reaped
// from earlier interrupted calls still surface in this result.
func runOperation(cmd *cobra.Command, opts *rootOptions, op func(ctx context.Context, a *app) *executor.Result) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.ops.PruneSessions(ctx); err != nil {
		a.logger.Warn("prune expired sessions", "error", err)
	}

	res := op(ctx, a)
	if ctx.Err() != nil && !res.Success {
		res = interruptedResult(res)
	}
	if reaped := a.sup.Sweep(); len(reaped) > 0 {
		res.TerminatedSubprocesses = append(res.TerminatedSubprocesses, reaped...)
	}

	if err := render(opts, res); err != nil {
		return err
	}
	if !res.Success {
		return errOperationFailed
	}
	return nil
}

// interruptedResult replaces a signal-cancelled failure with the uniform
// interrupt payload, keeping the pids the supervisor reaped on the way
// down.
func interruptedResult(res *executor.Result) *executor.Result {
	return &executor.Result{
		Operation:              res.Operation,
		Error:                  "execution interrupted",
		Message:                "Execution interrupted by user; task stopped.",
		TerminatedSubprocesses: res.TerminatedSubprocesses,
	}
}

// rejectBadBudgets refuses explicitly passed non-positive budgets before
// any wiring happens. An omitted flag stays zero and means "use the
// configured default", so only Changed flags are checked.
func rejectBadBudgets(cmd *cobra.Command, operation string) *executor.Result {
	for _, name := range []string{"timeout-sec", "max-steps"} {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if v, err := cmd.Flags().GetInt(name); err == nil && v <= 0 {
			return executor.Reject(operation,
				fmt.Errorf("%w: --%s must be > 0", executor.ErrInvalidInput, name))
		}
	}
	return nil
}

// renderFailure prints a pre-operation rejection and signals exit 1.
func renderFailure(opts *rootOptions, res *executor.Result) error {
	if err := render(opts, res); err != nil {
		return err
	}
	return errOperationFailed
}
