package supervisor

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const pollInterval = 50 * time.Millisecond

type scopeContextKey struct{}

// ContextWithScope attaches a process scope to ctx.
func ContextWithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext returns the process scope attached to ctx, if any.
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey{}).(*Scope)
	return scope, ok
}

// Scope tracks the subordinate processes spawned during one bounded call,
// in start order.
type Scope struct {
	id    uint64
	mu    sync.Mutex
	order []int
	procs map[int]*os.Process
	ended bool
}

func (sc *Scope) track(p *os.Process) {
	if p == nil {
		return
	}
	sc.mu.Lock()
	if sc.ended {
		sc.mu.Unlock()
		// The owning call is already over; a process born now must not
		// outlive it.
		killProcess(p)
		return
	}
	if sc.procs == nil {
		sc.procs = make(map[int]*os.Process)
	}
	if _, exists := sc.procs[p.Pid]; !exists {
		sc.order = append(sc.order, p.Pid)
	}
	sc.procs[p.Pid] = p
	sc.mu.Unlock()
}

func (sc *Scope) untrack(pid int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if _, exists := sc.procs[pid]; !exists {
		return
	}
	delete(sc.procs, pid)
	for i, id := range sc.order {
		if id == pid {
			sc.order = append(sc.order[:i], sc.order[i+1:]...)
			break
		}
	}
}

func (sc *Scope) live() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.procs)
}

func (sc *Scope) close() {
	sc.mu.Lock()
	sc.ended = true
	sc.mu.Unlock()
}

// terminate reaps every process currently tracked by the scope:
// cooperative signal first, then a forced kill for whatever survives the
// grace window. Returns the pids acted on, in start order. All entries
// leave the scope regardless of outcome; reaping is this scope's one shot.
func (sc *Scope) terminate(clock clockwork.Clock, grace time.Duration) []int {
	sc.mu.Lock()
	pids := make([]int, len(sc.order))
	copy(pids, sc.order)
	procs := make(map[int]*os.Process, len(sc.procs))
	for pid, p := range sc.procs {
		procs[pid] = p
	}
	sc.mu.Unlock()

	if len(pids) == 0 {
		return nil
	}

	var acted []int
	for _, pid := range pids {
		if !processAlive(pid) {
			continue
		}
		signalTerm(procs[pid])
		acted = append(acted, pid)
	}

	if len(acted) > 0 {
		deadline := clock.Now().Add(grace)
		for clock.Now().Before(deadline) && anyAlive(acted) {
			clock.Sleep(pollInterval)
		}
		for _, pid := range acted {
			if processAlive(pid) {
				killProcess(procs[pid])
			}
		}
	}

	for _, pid := range pids {
		sc.untrack(pid)
	}
	return acted
}

func anyAlive(pids []int) bool {
	for _, pid := range pids {
		if processAlive(pid) {
			return true
		}
	}
	return false
}

// StartCmd starts cmd inside the scope attached to ctx, applying the
// platform process-group attribute so a forced kill reaps grandchildren
// too. Without a scope on ctx it behaves as a plain Start.
func StartCmd(ctx context.Context, cmd *exec.Cmd) error {
	setProcAttr(cmd)
	if cmd.Cancel != nil && cmd.WaitDelay == 0 {
		// Keep Wait from hanging on inherited pipes after cancellation.
		cmd.WaitDelay = DefaultGrace
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	if scope, ok := ScopeFromContext(ctx); ok {
		scope.track(cmd.Process)
	}
	return nil
}

// WaitCmd waits for cmd and releases it from the scope attached to ctx.
func WaitCmd(ctx context.Context, cmd *exec.Cmd) error {
	err := cmd.Wait()
	if scope, ok := ScopeFromContext(ctx); ok && cmd.Process != nil {
		scope.untrack(cmd.Process.Pid)
	}
	return err
}

// RunCmd is StartCmd followed by WaitCmd.
func RunCmd(ctx context.Context, cmd *exec.Cmd) error {
	if err := StartCmd(ctx, cmd); err != nil {
		return err
	}
	return WaitCmd(ctx, cmd)
}
