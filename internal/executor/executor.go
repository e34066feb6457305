// Package executor orchestrates the operation surface: execute, continue,
// tap, status, and the listing operations. Every operation resolves its
// inputs, runs the effectful part inside a supervisor-bounded call, and
// returns a uniform Result whether it succeeded or not.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/AltairaLabs/guiagent-mcp/internal/config"
	"github.com/AltairaLabs/guiagent-mcp/internal/coords"
	"github.com/AltairaLabs/guiagent-mcp/internal/device"
	"github.com/AltairaLabs/guiagent-mcp/internal/planner"
	"github.com/AltairaLabs/guiagent-mcp/internal/session"
	"github.com/AltairaLabs/guiagent-mcp/internal/session/memory"
	"github.com/AltairaLabs/guiagent-mcp/internal/supervisor"
)

const (
	// completeGuardMarker makes the guard idempotent across retries and
	// task replacement.
	completeGuardMarker = "output COMPLETE immediately and stop"
	completeGuard       = "Strict rule: after completing the goal, output COMPLETE immediately and stop.\n" +
		"After completing the goal, output COMPLETE immediately and stop; do not continue exploring."

	statelessPreamble = "Execution mode: stateless minimal task.\n" +
		"Requirement: continue from the current screen; do not press Home; do not reset app/environment.\n" +
		"Only perform the minimum actions needed for this request."

	noDeviceHint = "No ADB devices found. Connect a phone/emulator, enable USB debugging, " +
		"and approve the device authorization prompt. You can run `adb devices` to verify."

	tapOnlyHint = "Tap-only mode is enabled. `execute` and `continue` are disabled because no " +
		"model provider is configured. Use `tap` for direct coordinate control, or configure " +
		"a provider in config.yaml to enable planner-driven execution."
)

const (
	// statelessMaxSteps is the default backend budget for stateless calls.
	statelessMaxSteps = 4
	// maxStepsCeiling bounds any caller-supplied step budget.
	maxStepsCeiling = 100
	// maxStatusNotifications caps the shade entries a status report carries.
	maxStatusNotifications = 5
)

// ProviderSource resolves provider names to planners and reports catalog
// readiness. *planner.Registry is the production implementation.
type ProviderSource interface {
	Planner(name string) (planner.Planner, error)
	Describe() []planner.Status
}

// Options wires an Orchestrator. Nil fields fall back to working
// defaults derived from Config.
type Options struct {
	Config     *config.Config
	Store      session.Store
	Device     *device.ADB
	Providers  ProviderSource
	Supervisor *supervisor.Supervisor
	Clock      clockwork.Clock
	Logger     *slog.Logger
}

// Orchestrator owns the session, device, and planner plumbing behind the
// operation surface.
type Orchestrator struct {
	cfg       *config.Config
	store     session.Store
	adb       *device.ADB
	providers ProviderSource
	sup       *supervisor.Supervisor
	clock     clockwork.Clock
	logger    *slog.Logger
	audit     *auditLogger

	sessions *sessionLocks
	devices  *deviceLocks
}

// New builds an Orchestrator from opts.
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	store := opts.Store
	if store == nil {
		store = memory.NewStore(clock)
	}
	adb := opts.Device
	if adb == nil {
		adb = device.NewADB(cfg.Device.ADBPath, nil, logger)
	}
	providers := opts.Providers
	if providers == nil {
		providers = planner.NewRegistry(cfg.Providers, logger)
	}
	sup := opts.Supervisor
	if sup == nil {
		sup = supervisor.New(cfg.OperationTimeout(), 0, clock, logger)
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		adb:       adb,
		providers: providers,
		sup:       sup,
		clock:     clock,
		logger:    logger,
		audit:     newAuditLogger(logger, clock),
		sessions:  newSessionLocks(),
		devices:   newDeviceLocks(),
	}
}

// ExecuteRequest starts a new task. Extra carries caller hints forwarded
// verbatim to the planner backend.
type ExecuteRequest struct {
	Task      string
	Provider  string
	DeviceID  string
	MaxSteps  int
	Stateless bool
	Extra     map[string]any
	Timeout   time.Duration
}

// ContinueRequest resumes a session, optionally answering a planner
// question or replacing the task text.
type ContinueRequest struct {
	SessionID string
	Reply     string
	Task      string
	DeviceID  string
	MaxSteps  int
	Timeout   time.Duration
}

// TapRequest taps a device coordinate without involving a planner.
type TapRequest struct {
	DeviceID  string
	X         float64
	Y         float64
	Space     string
	PostDelay time.Duration
	Timeout   time.Duration
}

// StatusRequest inspects a device and its latest session.
type StatusRequest struct {
	DeviceID string
	Timeout  time.Duration
}

// plannerOutcome collects what one planner round-trip produced. It is
// written only by the bounded operation and read only after a successful
// Run, so an abandoned operation never races the caller.
type plannerOutcome struct {
	caption        string
	nextAction     string
	conversationID string
	currentApp     string
	screenshotPath string
	updated        *session.Session
}

// Execute starts a new session and performs its first planner round-trip.
func (o *Orchestrator) Execute(ctx context.Context, req ExecuteRequest) *Result {
	res := &Result{Operation: "execute"}
	finish := o.audit.begin(ctx, "execute")
	defer finish(res)

	providerName := req.Provider
	if providerName == "" {
		providerName = o.cfg.DefaultProvider
	}
	res.Provider = providerName
	res.Task = req.Task

	if o.cfg.TapOnlyMode {
		return o.fail(res, fmt.Errorf("%w: execute is unavailable", ErrTapOnly))
	}
	if strings.TrimSpace(req.Task) == "" {
		return o.fail(res, fmt.Errorf("%w: task is required", ErrInvalidInput))
	}
	if req.MaxSteps < 0 || req.Timeout < 0 {
		return o.fail(res, fmt.Errorf("%w: max_steps and timeout must be >= 0", ErrInvalidInput))
	}
	if providerName == "" {
		return o.fail(res, fmt.Errorf(
			"%w: no provider configured; pass one or set default_provider", ErrInvalidInput))
	}
	pl, err := o.providers.Planner(providerName)
	if err != nil {
		return o.fail(res, err)
	}

	maxSteps := req.MaxSteps
	mode := session.ModeStateful
	task := guardTask(req.Task)
	extra := req.Extra
	if req.Stateless {
		mode = session.ModeStateless
		if maxSteps == 0 {
			// Explicit budgets win; only the default shrinks.
			maxSteps = statelessMaxSteps
			if o.cfg.DefaultMaxSteps > 0 && o.cfg.DefaultMaxSteps < statelessMaxSteps {
				maxSteps = o.cfg.DefaultMaxSteps
			}
		}
		task = statelessTask(task)
		extra = statelessExtra(req.Extra)
	}
	maxSteps = o.clampMaxSteps(maxSteps)
	res.Mode = string(mode)

	bc := o.sup.Begin(ctx, req.Timeout)
	defer bc.End()

	serial, err := o.resolveDevice(bc.Context(), req.DeviceID)
	if err != nil {
		return o.failBounded(res, bc, err)
	}
	res.DeviceID = serial

	now := o.clock.Now()
	sess := &session.Session{
		ID:        newSessionID(),
		Task:      req.Task,
		Mode:      mode,
		DeviceID:  serial,
		Provider:  providerName,
		Status:    session.StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res.SessionID = sess.ID

	if mode == session.ModeStateful {
		// Claim the session before it becomes discoverable, so a
		// concurrent continue resolving latest-active fails busy instead
		// of queueing behind the device lock.
		release, ok := o.sessions.tryAcquire(sess.ID)
		if !ok {
			return o.failBounded(res, bc,
				fmt.Errorf("%w: session %s has a call in flight", ErrSessionBusy, sess.ID))
		}
		defer release()
		if err := o.store.Create(bc.Context(), sess); err != nil {
			return o.failBounded(res, bc, fmt.Errorf("create session: %w", err))
		}
	}

	releaseDev, err := o.devices.acquire(bc.Context(), serial)
	if err != nil {
		return o.failRun(ctx, res, bc, fmt.Errorf("acquire device %s: %w", serial, err), sess.ID, mode)
	}
	defer releaseDev()

	var out plannerOutcome
	runErr := bc.Run(func(opCtx context.Context) error {
		return o.plannerRoundTrip(opCtx, pl, roundTrip{
			start:    true,
			task:     task,
			deviceID: serial,
			maxSteps: maxSteps,
			extra:    extra,
			sess:     sess,
			persist:  mode == session.ModeStateful,
		}, &out)
	})
	if runErr != nil {
		return o.failRun(ctx, res, bc, runErr, sess.ID, mode)
	}
	bc.End()

	o.fillSession(res, out.updated)
	res.Caption = out.caption
	res.NextAction = out.nextAction
	res.CurrentApp = out.currentApp
	res.ScreenshotPath = out.screenshotPath
	res.Message = successMessage(out.nextAction, out.caption, mode)
	res.Success = true
	return res
}

// Continue resumes a session with an optional reply and task replacement.
// An empty SessionID resumes the most recent active session for the
// device.
func (o *Orchestrator) Continue(ctx context.Context, req ContinueRequest) *Result {
	res := &Result{Operation: "continue"}
	finish := o.audit.begin(ctx, "continue")
	defer finish(res)

	if o.cfg.TapOnlyMode {
		return o.fail(res, fmt.Errorf("%w: continue is unavailable", ErrTapOnly))
	}
	if req.MaxSteps < 0 || req.Timeout < 0 {
		return o.fail(res, fmt.Errorf("%w: max_steps and timeout must be >= 0", ErrInvalidInput))
	}

	bc := o.sup.Begin(ctx, req.Timeout)
	defer bc.End()

	var sess *session.Session
	var err error
	if req.SessionID != "" {
		sess, err = o.store.Get(bc.Context(), req.SessionID)
		if err != nil {
			return o.failBounded(res, bc, fmt.Errorf("session %s: %w", req.SessionID, err))
		}
	} else {
		deviceID := req.DeviceID
		if deviceID == "" {
			deviceID = o.cfg.DefaultDeviceID
		}
		sess, err = o.store.LatestActive(bc.Context(), deviceID, o.cfg.SessionTTL())
		if errors.Is(err, session.ErrNotFound) {
			return o.failBounded(res, bc, fmt.Errorf("%w: start one with execute", ErrNoActiveSession))
		}
		if err != nil {
			return o.failBounded(res, bc, err)
		}
	}
	o.fillSession(res, sess)

	if sess.Status.Terminal() {
		return o.failBounded(res, bc,
			fmt.Errorf("%w: session %s is %s", ErrSessionTerminal, sess.ID, sess.Status))
	}

	pl, err := o.providers.Planner(sess.Provider)
	if err != nil {
		return o.failBounded(res, bc, err)
	}

	release, ok := o.sessions.tryAcquire(sess.ID)
	if !ok {
		return o.failBounded(res, bc,
			fmt.Errorf("%w: session %s has a call in flight", ErrSessionBusy, sess.ID))
	}
	defer release()

	serial, err := o.resolveDevice(bc.Context(), sess.DeviceID)
	if err != nil {
		return o.failBounded(res, bc, err)
	}

	releaseDev, err := o.devices.acquire(bc.Context(), serial)
	if err != nil {
		return o.failBounded(res, bc, fmt.Errorf("acquire device %s: %w", serial, err))
	}
	defer releaseDev()

	effectiveTask := sess.Task
	var newTask *string
	if req.Task != "" {
		t := req.Task
		newTask = &t
		effectiveTask = req.Task
		res.Task = req.Task
	}

	var out plannerOutcome
	runErr := bc.Run(func(opCtx context.Context) error {
		return o.plannerRoundTrip(opCtx, pl, roundTrip{
			task:     guardTask(effectiveTask),
			reply:    req.Reply,
			deviceID: serial,
			maxSteps: o.clampMaxSteps(req.MaxSteps),
			sess:     sess,
			persist:  true,
			newTask:  newTask,
		}, &out)
	})
	if runErr != nil {
		return o.failRun(ctx, res, bc, runErr, sess.ID, session.ModeStateful)
	}
	bc.End()

	o.fillSession(res, out.updated)
	res.Caption = out.caption
	res.NextAction = out.nextAction
	res.CurrentApp = out.currentApp
	res.ScreenshotPath = out.screenshotPath
	res.Message = successMessage(out.nextAction, out.caption, session.ModeStateful)
	res.Success = true
	return res
}

// Tap resolves a coordinate and taps it. Available in every mode; this is
// the one action tap-only deployments keep. Taps never touch the session
// store; the minted id only groups their artifacts.
func (o *Orchestrator) Tap(ctx context.Context, req TapRequest) *Result {
	res := &Result{Operation: "tap"}
	finish := o.audit.begin(ctx, "tap")
	defer finish(res)

	space, err := coords.ParseSpace(req.Space)
	if err != nil {
		return o.fail(res, err)
	}
	if req.PostDelay < 0 || req.Timeout < 0 {
		return o.fail(res, fmt.Errorf("%w: post_delay_ms and timeout must be >= 0", ErrInvalidInput))
	}

	bc := o.sup.Begin(ctx, req.Timeout)
	defer bc.End()

	serial, err := o.resolveDevice(bc.Context(), req.DeviceID)
	if err != nil {
		return o.failBounded(res, bc, err)
	}
	res.DeviceID = serial

	releaseDev, err := o.devices.acquire(bc.Context(), serial)
	if err != nil {
		return o.failBounded(res, bc, fmt.Errorf("acquire device %s: %w", serial, err))
	}
	defer releaseDev()

	tapID := newSessionID()
	var out struct {
		spec           *coords.Spec
		size           coords.Size
		caption        string
		currentApp     string
		screenshotPath string
	}
	runErr := bc.Run(func(opCtx context.Context) error {
		// The screenshot header is the geometry ground truth; wm size is
		// the fallback when capture fails or the header is unparseable.
		if shot, err := o.adb.CaptureScreen(opCtx, serial); err == nil && shot.Size.Width > 0 {
			out.size = shot.Size
		} else {
			size, err := o.adb.QueryScreenSize(opCtx, serial)
			if err != nil {
				return err
			}
			out.size = size
		}

		spec, err := coords.Resolve(req.X, req.Y, space, out.size)
		if err != nil {
			return err
		}
		out.spec = spec

		if err := o.adb.Tap(opCtx, serial, spec.Tap); err != nil {
			return err
		}
		if req.PostDelay > 0 {
			select {
			case <-o.clock.After(req.PostDelay):
			case <-opCtx.Done():
				return opCtx.Err()
			}
		}
		if app, err := o.adb.CurrentApp(opCtx, serial); err == nil {
			out.currentApp = app
		}
		out.caption = o.fallbackCaption(opCtx, serial, out.currentApp)
		if o.cfg.Output.SaveScreenshot {
			if shot, err := o.adb.CaptureScreen(opCtx, serial); err == nil {
				dir := filepath.Join(o.cfg.Output.Dir, tapID)
				if p, err := o.saveArtifact(dir, "step_001.png", shot.PNG); err == nil {
					out.screenshotPath = p
				} else {
					o.logger.Warn("save tap screenshot", "error", err)
				}
			}
		}
		return nil
	})
	if runErr != nil {
		return o.failBounded(res, bc, runErr)
	}
	bc.End()

	res.SessionID = tapID
	res.Task = "direct_coordinate_tap"
	res.Provider = "direct_adb"
	res.StepCount = 1
	res.NextAction = planner.ActionContinue
	res.Coordinate = out.spec
	res.ScreenSize = &out.size
	res.Caption = out.caption
	res.CurrentApp = out.currentApp
	res.ScreenshotPath = out.screenshotPath
	res.Message = "Tap executed. Review screenshot and run another tap if needed."
	res.Success = true
	return res
}

// Status reports device state plus the latest active session for it.
// Read-only; calling it never mutates any session.
func (o *Orchestrator) Status(ctx context.Context, req StatusRequest) *Result {
	res := &Result{Operation: "status"}
	finish := o.audit.begin(ctx, "status")
	defer finish(res)

	if req.Timeout < 0 {
		return o.fail(res, fmt.Errorf("%w: timeout must be >= 0", ErrInvalidInput))
	}

	bc := o.sup.Begin(ctx, req.Timeout)
	defer bc.End()

	serial, err := o.resolveDevice(bc.Context(), req.DeviceID)
	if err != nil {
		return o.failBounded(res, bc, err)
	}
	res.DeviceID = serial

	var out struct {
		size   coords.Size
		app    string
		notifs []device.Notification
	}
	runErr := bc.Run(func(opCtx context.Context) error {
		size, err := o.adb.QueryScreenSize(opCtx, serial)
		if err != nil {
			return err
		}
		out.size = size
		if app, err := o.adb.CurrentApp(opCtx, serial); err == nil {
			out.app = app
		}
		if notifs, err := o.adb.Notifications(opCtx, serial); err == nil {
			if len(notifs) > maxStatusNotifications {
				notifs = notifs[:maxStatusNotifications]
			}
			out.notifs = notifs
		}
		return nil
	})
	if runErr != nil {
		return o.failBounded(res, bc, runErr)
	}
	bc.End()

	res.ScreenSize = &out.size
	res.CurrentApp = out.app
	res.Notifications = out.notifs
	if sess, err := o.store.LatestActive(ctx, serial, o.cfg.SessionTTL()); err == nil {
		o.fillSession(res, sess)
	}
	res.Success = true
	return res
}

// Devices lists attached device serials.
func (o *Orchestrator) Devices(ctx context.Context) *Result {
	res := &Result{Operation: "devices"}
	finish := o.audit.begin(ctx, "devices")
	defer finish(res)

	bc := o.sup.Begin(ctx, 0)
	defer bc.End()

	var devices []string
	runErr := bc.Run(func(opCtx context.Context) error {
		d, err := o.adb.ListDevices(opCtx)
		devices = d
		return err
	})
	if runErr != nil {
		return o.failBounded(res, bc, runErr)
	}
	bc.End()

	res.Devices = devices
	if len(devices) == 0 {
		res.Message = noDeviceHint
	}
	res.Success = true
	return res
}

// Sessions lists stored sessions, optionally filtered by device.
func (o *Orchestrator) Sessions(ctx context.Context, deviceID string) *Result {
	res := &Result{Operation: "sessions"}
	finish := o.audit.begin(ctx, "sessions")
	defer finish(res)

	sessions, err := o.store.List(ctx)
	if err != nil {
		return o.fail(res, err)
	}
	if deviceID != "" {
		filtered := sessions[:0]
		for _, s := range sessions {
			if s.DeviceID == deviceID {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	res.Sessions = sessions
	res.Success = true
	return res
}

// Providers reports the provider catalog with per-provider readiness.
func (o *Orchestrator) Providers(ctx context.Context) *Result {
	res := &Result{Operation: "providers"}
	finish := o.audit.begin(ctx, "providers")
	defer finish(res)

	res.Providers = o.providers.Describe()
	res.Success = true
	return res
}

// PruneSessions deletes sessions stale past the configured TTL. Called at
// startup and periodically by the server loop.
func (o *Orchestrator) PruneSessions(ctx context.Context) (int, error) {
	ttl := o.cfg.SessionTTL()
	if ttl <= 0 {
		return 0, nil
	}
	pruned, err := o.store.PruneExpired(ctx, ttl)
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		o.logger.Info("pruned expired sessions", "count", pruned, "ttl", ttl)
	}
	return pruned, nil
}

// roundTrip carries the inputs of one planner exchange.
type roundTrip struct {
	start    bool
	task     string
	reply    string
	deviceID string
	maxSteps int
	extra    map[string]any
	sess     *session.Session
	persist  bool
	newTask  *string
}

// plannerRoundTrip performs one backend exchange, captures post-action
// device state, and records the step. Runs entirely inside the bounded
// call context.
func (o *Orchestrator) plannerRoundTrip(ctx context.Context, pl planner.Planner, rt roundTrip, out *plannerOutcome) error {
	var plan *planner.Plan
	var err error
	if rt.start {
		plan, err = pl.Start(ctx, planner.StartRequest{
			Task:     rt.task,
			DeviceID: rt.deviceID,
			MaxSteps: rt.maxSteps,
			Extra:    rt.extra,
		})
	} else {
		// Backends that returned their own conversation token get it
		// back; otherwise the session id doubles as the token.
		convID := rt.sess.ConversationID
		if convID == "" {
			convID = rt.sess.ID
		}
		plan, err = pl.Continue(ctx, planner.ContinueRequest{
			ConversationID: convID,
			DeviceID:       rt.deviceID,
			Task:           rt.task,
			Reply:          rt.reply,
			MaxSteps:       rt.maxSteps,
			Extra:          rt.extra,
		})
	}
	if err != nil {
		return err
	}

	out.nextAction = plan.NextAction
	out.conversationID = plan.ConversationID
	out.caption = plan.Caption

	if app, err := o.adb.CurrentApp(ctx, rt.deviceID); err == nil {
		out.currentApp = app
	} else {
		o.logger.Debug("current app lookup failed", "device_id", rt.deviceID, "error", err)
	}
	if out.caption == "" {
		out.caption = o.fallbackCaption(ctx, rt.deviceID, out.currentApp)
	}
	if o.cfg.Output.SaveScreenshot {
		if shot, err := o.adb.CaptureScreen(ctx, rt.deviceID); err == nil {
			dir := filepath.Join(o.cfg.Output.Dir, pathSafe(rt.sess.ID))
			name := fmt.Sprintf("step_%03d.png", rt.sess.StepCount+1)
			if p, err := o.saveArtifact(dir, name, shot.PNG); err == nil {
				out.screenshotPath = p
			} else {
				o.logger.Warn("save step screenshot", "session_id", rt.sess.ID, "error", err)
			}
		} else {
			o.logger.Debug("post-step screenshot failed", "device_id", rt.deviceID, "error", err)
		}
	}

	step := &session.Step{
		Timestamp:  o.clock.Now(),
		Success:    true,
		Caption:    out.caption,
		NextAction: out.nextAction,
	}
	mut := session.Mutation{Status: statusForAction(out.nextAction), Step: step}
	if rt.newTask != nil {
		mut.Task = rt.newTask
	}
	if out.conversationID != "" {
		mut.ConversationID = &out.conversationID
	}

	if rt.persist {
		updated, err := o.store.Update(ctx, rt.sess.ID, mut)
		if err != nil {
			return fmt.Errorf("record step: %w", err)
		}
		out.updated = updated
	} else {
		rt.sess.Apply(mut, o.clock.Now())
		out.updated = rt.sess
	}
	return nil
}

// failRun finalizes a failed bounded run: classifies the error, marks the
// session, and fills the failure fields. The session update runs on a
// cancellation-proof context because the caller's context may already be
// done.
func (o *Orchestrator) failRun(ctx context.Context, res *Result, bc *supervisor.BoundedCall, err error, sessionID string, mode session.Mode) *Result {
	res = o.failBounded(res, bc, err)

	status := session.StatusFailed
	if res.TimedOut {
		status = session.StatusTimedOut
	}
	if mode == session.ModeStateful {
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, uerr := o.store.Update(mctx, sessionID, session.Mutation{Status: status}); uerr != nil {
			o.logger.Warn("mark session after failed call",
				"session_id", sessionID, "status", status, "error", uerr)
		}
	}
	res.Status = string(status)
	return res
}

// failBounded classifies err against the bounded call, ends the call, and
// fills the failure fields. Classification reads the call context before
// End cancels it.
func (o *Orchestrator) failBounded(res *Result, bc *supervisor.BoundedCall, err error) *Result {
	if bc.Context().Err() == context.DeadlineExceeded && !errors.Is(err, supervisor.ErrTimedOut) {
		err = fmt.Errorf("%w: %v", supervisor.ErrTimedOut, err)
	}
	bc.End()
	if terminated := bc.Terminated(); len(terminated) > 0 {
		res.TerminatedSubprocesses = terminated
	}
	if errors.Is(err, supervisor.ErrTimedOut) {
		res.TimedOut = true
		res.TimeoutSec = bc.Timeout().Seconds()
	}
	return o.fail(res, err)
}

// fail fills the failure fields: the wire code in Error, the prose in
// Message. The audit finisher owns the log entry.
func (o *Orchestrator) fail(res *Result, err error) *Result {
	res.Success = false
	res.Error = errorCode(err)
	if res.Message == "" {
		res.Message = failMessage(res.Operation, err)
	}
	return res
}

// Reject builds the failure Result for a request refused before it
// reaches an operation, classified the same way operation errors are.
// Front ends use it for their own argument validation.
func Reject(operation string, err error) *Result {
	return &Result{
		Operation: operation,
		Error:     errorCode(err),
		Message:   failMessage(operation, err),
	}
}

// failMessage renders the human-readable message for a failed operation.
func failMessage(operation string, err error) string {
	if errors.Is(err, ErrTapOnly) {
		return tapOnlyHint
	}
	switch operation {
	case "execute":
		return "Task execution failed: " + err.Error()
	case "continue":
		return "Continue task failed: " + err.Error()
	case "tap":
		return "Coordinate tap failed: " + err.Error()
	}
	return err.Error()
}

// resolveDevice picks the device serial for an operation: the explicit
// request wins, then the configured default, then the sole attached
// device. With several devices attached and nothing picking one, the
// caller has to disambiguate.
func (o *Orchestrator) resolveDevice(ctx context.Context, requested string) (string, error) {
	if requested == "" {
		requested = o.cfg.DefaultDeviceID
	}
	devices, err := o.adb.ListDevices(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDeviceUnreachable, err)
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("%w: %s", ErrDeviceUnreachable, noDeviceHint)
	}
	if requested != "" {
		for _, d := range devices {
			if d == requested {
				return requested, nil
			}
		}
		return "", fmt.Errorf("%w: device %q not connected (connected: %s)",
			ErrDeviceUnreachable, requested, strings.Join(devices, ", "))
	}
	if len(devices) > 1 {
		return "", fmt.Errorf("%w: multiple devices found: %s; pass device_id to choose one",
			ErrDeviceUnreachable, strings.Join(devices, ", "))
	}
	return devices[0], nil
}

// fallbackCaption summarizes device state when the planner returned no
// caption of its own.
func (o *Orchestrator) fallbackCaption(ctx context.Context, deviceID, currentApp string) string {
	if currentApp == "" {
		currentApp = "unknown"
	}
	parts := []string{"current_app=" + currentApp}
	if notifs, err := o.adb.Notifications(ctx, deviceID); err == nil && len(notifs) > 0 {
		n := notifs[0]
		label := n.Title
		switch {
		case label != "" && n.Text != "":
			label += " - " + n.Text
		case label == "":
			label = n.Text
		}
		if label != "" {
			parts = append(parts, "notification="+label)
		}
	}
	return strings.Join(parts, "; ")
}

func (o *Orchestrator) fillSession(res *Result, s *session.Session) {
	if s == nil {
		return
	}
	res.SessionID = s.ID
	res.Task = s.Task
	res.Provider = s.Provider
	res.DeviceID = s.DeviceID
	res.Mode = string(s.Mode)
	res.Status = string(s.Status)
	res.StepCount = s.StepCount
}

func (o *Orchestrator) saveArtifact(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (o *Orchestrator) clampMaxSteps(requested int) int {
	steps := requested
	if steps <= 0 {
		steps = o.cfg.DefaultMaxSteps
	}
	if steps <= 0 {
		steps = 20
	}
	if steps > maxStepsCeiling {
		steps = maxStepsCeiling
	}
	return steps
}

func statusForAction(action string) session.Status {
	switch action {
	case planner.ActionComplete:
		return session.StatusCompleted
	case planner.ActionNeedsReply:
		return session.StatusAwaitingReply
	}
	return session.StatusRunning
}

// successMessage renders the human-readable summary for a successful
// planner round-trip.
func successMessage(nextAction, caption string, mode session.Mode) string {
	var msg string
	switch nextAction {
	case planner.ActionComplete:
		msg = "Task completed. " + caption
	case planner.ActionNeedsReply:
		msg = "User reply required. Current state: " + caption
	default:
		msg = "Task in progress. Current state: " + caption
	}
	if mode == session.ModeStateless && nextAction != planner.ActionComplete {
		msg += " Stateless mode is active; run execute --stateless for the next independent call."
	}
	return msg
}

// guardTask appends the completion guard unless the task already carries
// it.
func guardTask(task string) string {
	if strings.Contains(task, completeGuardMarker) {
		return task
	}
	return task + "\n\n" + completeGuard
}

// statelessTask wraps an already guarded task in the stateless preamble.
func statelessTask(guarded string) string {
	return statelessPreamble + "\nUser task: " + guarded
}

// statelessExtra layers the execution-mode hints stateless backends honor
// under any caller-supplied extras. Caller keys win.
func statelessExtra(base map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+6)
	for k, v := range base {
		merged[k] = v
	}
	defaults := map[string]any{
		"execution_mode":             "stateless",
		"new_conversation":           true,
		"preserve_current_app_state": true,
		"minimal_actions":            true,
		"reset_environment":          false,
		"reflush_app":                false,
	}
	for k, v := range defaults {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return merged
}

// newSessionID mints the short id sessions and tap artifacts carry.
func newSessionID() string {
	return uuid.NewString()[:8]
}

// pathSafe makes an id usable as a file name component.
func pathSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\':
			return '-'
		}
		return r
	}, s)
}
