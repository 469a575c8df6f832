package research

import (
	"sync"

	"github.com/bt-bridge/agent-chat/shared"
)

// RunGuard enforces at most one active run per session. TryStart hands out
// a handle whose End releases the slot; End is safe to call more than once
// and from any exit path.
type RunGuard struct {
	mu     sync.Mutex
	active map[string]string // session id -> run id
}

func NewRunGuard() *RunGuard {
	return &RunGuard{active: make(map[string]string)}
}

// TryStart claims the session for runID. It returns
// shared.ErrRunAlreadyActive when another run holds the session.
func (g *RunGuard) TryStart(sessionID, runID string) (*RunHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.active[sessionID]; ok {
		return nil, shared.ErrRunAlreadyActive
	}
	g.active[sessionID] = runID
	return &RunHandle{guard: g, sessionID: sessionID, runID: runID}, nil
}

// ActiveRun returns the run currently holding the session, if any.
func (g *RunGuard) ActiveRun(sessionID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	runID, ok := g.active[sessionID]
	return runID, ok
}

type RunHandle struct {
	guard     *RunGuard
	sessionID string
	runID     string
	once      sync.Once
}

func (h *RunHandle) RunID() string {
	return h.runID
}

// End releases the session slot exactly once.
func (h *RunHandle) End() {
	h.once.Do(func() {
		h.guard.mu.Lock()
		defer h.guard.mu.Unlock()
		delete(h.guard.active, h.sessionID)
	})
}
