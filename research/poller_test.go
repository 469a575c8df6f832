package research

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bt-bridge/agent-chat/shared"
)

type recordMessage struct {
	mu        sync.Mutex
	tokens    []string
	finalized bool
}

func (m *recordMessage) StreamToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	return nil
}

func (m *recordMessage) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = true
	return nil
}

func (m *recordMessage) text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.tokens, "")
}

type runStep struct {
	run Run
	err error
}

// fakeClient scripts GetRun responses; the last step repeats once the
// script is exhausted.
type fakeClient struct {
	mu        sync.Mutex
	steps     []runStep
	calls     int
	latest    *ThreadMessage
	latestErr error
}

func (c *fakeClient) CreateThread(context.Context) (string, error) { return "thread-1", nil }

func (c *fakeClient) CreateMessage(context.Context, string, MessageRole, string) error { return nil }

func (c *fakeClient) CreateRun(context.Context, string, string) (Run, error) {
	return Run{ID: "run-1", Status: RunStatusQueued}, nil
}

func (c *fakeClient) GetRun(context.Context, string, string) (Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.calls
	if idx >= len(c.steps) {
		idx = len(c.steps) - 1
	}
	c.calls++
	return c.steps[idx].run, c.steps[idx].err
}

func (c *fakeClient) GetLastMessageByRole(context.Context, string, MessageRole) (*ThreadMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.latestErr
}

func newTestPoller(client Client) *Poller {
	return NewPoller(client, shared.NewNopLogger(), time.Millisecond, time.Second)
}

func TestPollerStreamsProgressOnce(t *testing.T) {
	client := &fakeClient{
		steps: []runStep{
			{run: Run{ID: "run-1", Status: RunStatusQueued}},
			{run: Run{ID: "run-1", Status: RunStatusInProgress}},
			{run: Run{ID: "run-1", Status: RunStatusInProgress}},
			{run: Run{ID: "run-1", Status: RunStatusCompleted}},
		},
		latest: &ThreadMessage{
			Role:      RoleAgent,
			TextParts: []string{"cot_summary: scanning recent publications"},
			URLCitations: []URLCitation{
				{URL: "https://example.com/a", Title: "Paper A"},
				{URL: "https://example.com/a", Title: "Paper A again"},
				{URL: "https://example.com/b", Title: "Paper B"},
			},
		},
	}
	status := new(recordMessage)

	newTestPoller(client).Run(context.Background(), "thread-1", "run-1", status)

	out := status.text()
	// Identical fragments across polls are emitted exactly once.
	assert.Equal(t, 1, strings.Count(out, "cot_summary: scanning recent publications"))
	assert.Equal(t, 1, strings.Count(out, "[Paper A](https://example.com/a)"))
	assert.Equal(t, 1, strings.Count(out, "(https://example.com/b)"))
	assert.NotContains(t, out, "Timeout")
	assert.NotContains(t, out, "failed")
}

func TestPollerFreshDedupPerRun(t *testing.T) {
	client := &fakeClient{
		steps: []runStep{
			{run: Run{ID: "run-1", Status: RunStatusInProgress}},
			{run: Run{ID: "run-1", Status: RunStatusCompleted}},
		},
		latest: &ThreadMessage{
			Role:      RoleAgent,
			TextParts: []string{"cot_summary: same summary"},
		},
	}
	p := newTestPoller(client)

	first := new(recordMessage)
	p.Run(context.Background(), "thread-1", "run-1", first)

	// A new run starts with empty emission sets, so the same fragment
	// surfaces again.
	client.mu.Lock()
	client.calls = 0
	client.mu.Unlock()
	second := new(recordMessage)
	p.Run(context.Background(), "thread-1", "run-2", second)

	assert.Contains(t, first.text(), "same summary")
	assert.Contains(t, second.text(), "same summary")
}

func TestPollerFailedRun(t *testing.T) {
	tests := []struct {
		name      string
		lastError string
		expected  []string
		absent    []string
	}{
		{
			name:      "Failure with detail",
			lastError: "rate_limit_exceeded: too many requests",
			expected:  []string{"❌ Run failed.", "\nError: rate_limit_exceeded: too many requests"},
		},
		{
			name:     "Failure without detail",
			expected: []string{"❌ Run failed."},
			absent:   []string{"\nError:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{
				steps: []runStep{
					{run: Run{ID: "run-1", Status: RunStatusInProgress}},
					{run: Run{ID: "run-1", Status: RunStatusFailed, LastError: tt.lastError}},
				},
			}
			status := new(recordMessage)
			newTestPoller(client).Run(context.Background(), "thread-1", "run-1", status)

			out := status.text()
			for _, want := range tt.expected {
				assert.Contains(t, out, want)
			}
			for _, not := range tt.absent {
				assert.NotContains(t, out, not)
			}
		})
	}
}

func TestPollerSilentTerminalStatuses(t *testing.T) {
	for _, terminal := range []RunStatus{RunStatusCompleted, RunStatusCancelled, RunStatusExpired} {
		t.Run(string(terminal), func(t *testing.T) {
			client := &fakeClient{
				steps: []runStep{{run: Run{ID: "run-1", Status: terminal}}},
			}
			status := new(recordMessage)
			newTestPoller(client).Run(context.Background(), "thread-1", "run-1", status)
			assert.Empty(t, status.text())
		})
	}
}

func TestPollerTimeoutNoticeExactlyOnce(t *testing.T) {
	client := &fakeClient{
		steps: []runStep{{run: Run{ID: "run-1", Status: RunStatusInProgress}}},
	}
	status := new(recordMessage)
	p := NewPoller(client, shared.NewNopLogger(), time.Millisecond, time.Nanosecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(context.Background(), "thread-1", "run-1", status)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop after timeout")
	}

	assert.Equal(t, 1, strings.Count(status.text(), "⚠️ Timeout exceeded."))
}

func TestPollerTransientErrorKeepsPolling(t *testing.T) {
	client := &fakeClient{
		steps: []runStep{
			{err: assert.AnError},
			{run: Run{ID: "run-1", Status: RunStatusCompleted}},
		},
	}
	status := new(recordMessage)
	newTestPoller(client).Run(context.Background(), "thread-1", "run-1", status)

	out := status.text()
	assert.Equal(t, 1, strings.Count(out, "❗ Error getting run status"))
	require.Equal(t, 2, client.calls)
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	client := &fakeClient{
		steps: []runStep{{run: Run{ID: "run-1", Status: RunStatusInProgress}}},
	}
	status := new(recordMessage)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		newTestPoller(client).Run(ctx, "thread-1", "run-1", status)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
	assert.NotContains(t, status.text(), "Timeout")
}

func TestExtractCotSummary(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "Simple summary",
			text:     "cot_summary: looked at three sources",
			expected: "looked at three sources",
		},
		{
			name:     "Case insensitive label",
			text:     "COT_Summary: reading abstracts",
			expected: "reading abstracts",
		},
		{
			name:     "Stops at next header",
			text:     "cot_summary: step one\nand step two\nFinal Answer: 42",
			expected: "step one\nand step two",
		},
		{
			name:     "Lowercase colon line does not end the block",
			text:     "cot_summary: checking https://example.com\nmore: details follow",
			expected: "checking https://example.com\nmore: details follow",
		},
		{
			name:     "No label",
			text:     "just a normal answer",
			expected: "",
		},
		{
			name:     "Empty text",
			text:     "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractCotSummary(tt.text))
		})
	}
}
