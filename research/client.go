// Package research implements the poll-based deep-research flow: a
// per-session run guard, a progress poller that surfaces reasoning
// summaries and citations while a long-running agent works, and a renderer
// for the final result. The vendor surface is abstracted behind Client so
// the whole flow is testable without a live service.
package research

import "context"

type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
	RunStatusExpired    RunStatus = "expired"
)

// Active reports whether the run is still being worked on.
func (s RunStatus) Active() bool {
	return s == RunStatusQueued || s == RunStatusInProgress
}

type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleAgent MessageRole = "assistant"
)

type Run struct {
	ID        string
	Status    RunStatus
	LastError string
}

type URLCitation struct {
	URL   string
	Title string
}

// ThreadMessage is one message from the vendor-side conversation history.
type ThreadMessage struct {
	ID           string
	Role         MessageRole
	TextParts    []string
	URLCitations []URLCitation
}

// Client is the narrow slice of the vendor agent service this flow needs.
// GetLastMessageByRole returns nil with no error when the thread holds no
// message for the role yet.
type Client interface {
	CreateThread(ctx context.Context) (string, error)
	CreateMessage(ctx context.Context, threadID string, role MessageRole, content string) error
	CreateRun(ctx context.Context, threadID, agentID string) (Run, error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	GetLastMessageByRole(ctx context.Context, threadID string, role MessageRole) (*ThreadMessage, error)
}
