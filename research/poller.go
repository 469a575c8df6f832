package research

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bt-bridge/agent-chat/shared"
	"github.com/bt-bridge/agent-chat/ui"
)

const (
	DefaultPollInterval = 1500 * time.Millisecond
	DefaultRunTimeout   = 30 * time.Minute
)

var (
	cotLabelRe = regexp.MustCompile(`(?i)cot_summary:`)
	// A capitalized "Label:" header on its own line ends the summary block.
	cotEndRe = regexp.MustCompile(`\n\s*[A-Z][^:\n]*:`)
)

// Poller repeatedly fetches run status and surfaces novel progress
// fragments (reasoning summaries, URL citations) onto a status message
// until the run reaches a terminal state or the timeout elapses.
type Poller struct {
	client   Client
	logger   shared.LoggerAdapter
	interval time.Duration
	timeout  time.Duration
}

func NewPoller(client Client, logger shared.LoggerAdapter, interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Poller{client: client, logger: logger, interval: interval, timeout: timeout}
}

// Run polls until the run leaves queued/in_progress, the timeout elapses
// or ctx is cancelled. Dedup state lives here, so every new run starts
// with fresh emission sets. Final results are rendered separately by
// Renderer; this loop only narrates progress.
func (p *Poller) Run(ctx context.Context, threadID, runID string, status ui.Message) {
	deadline := time.Now().Add(p.timeout)
	emittedCot := make(map[string]struct{})
	emittedURLs := make(map[string]struct{})

	for {
		run, err := p.client.GetRun(ctx, threadID, runID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.stream(status, fmt.Sprintf("\n❗ Error getting run status: %v", err))
			if !p.sleep(ctx) {
				return
			}
			if time.Now().After(deadline) {
				p.stream(status, "\n⚠️ Timeout exceeded.")
				return
			}
			continue
		}

		if run.Status.Active() {
			p.emitProgress(ctx, threadID, status, emittedCot, emittedURLs)
			if time.Now().After(deadline) {
				p.stream(status, "\n⚠️ Timeout exceeded.")
				return
			}
			if !p.sleep(ctx) {
				return
			}
			continue
		}

		if run.Status == RunStatusFailed {
			p.stream(status, "\n❌ Run failed.")
			if run.LastError != "" {
				p.stream(status, "\nError: "+run.LastError)
			}
		}
		// Other terminal statuses end silently; the caller renders the
		// final message.
		return
	}
}

// emitProgress extracts novel fragments from the latest agent message. Any
// single extraction failure is swallowed so polling keeps going.
func (p *Poller) emitProgress(ctx context.Context, threadID string, status ui.Message, emittedCot, emittedURLs map[string]struct{}) {
	msg, err := p.client.GetLastMessageByRole(ctx, threadID, RoleAgent)
	if err != nil {
		p.logger.Debug("progress fetch failed", zap.Error(err))
		return
	}
	if msg == nil {
		return
	}

	if len(msg.TextParts) > 0 {
		text := strings.Join(msg.TextParts, "\n\n")
		if cot := ExtractCotSummary(text); cot != "" {
			if _, seen := emittedCot[cot]; !seen {
				emittedCot[cot] = struct{}{}
				p.stream(status, "\n\n-----\ncot_summary: "+cot)
			}
		}
	}

	for _, c := range msg.URLCitations {
		if c.URL == "" {
			continue
		}
		if _, seen := emittedURLs[c.URL]; seen {
			continue
		}
		emittedURLs[c.URL] = struct{}{}
		title := c.Title
		if title == "" {
			title = c.URL
		}
		p.stream(status, fmt.Sprintf("\nURL Citation: [%s](%s)", title, c.URL))
	}
}

func (p *Poller) stream(status ui.Message, token string) {
	if err := status.StreamToken(token); err != nil {
		p.logger.Warn("streaming progress token failed", zap.Error(err))
	}
}

// sleep waits one poll interval. Returns false when ctx was cancelled.
func (p *Poller) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(p.interval):
		return true
	}
}

// ExtractCotSummary pulls the reasoning-summary block out of a message
// body: the text after a case-insensitive "cot_summary:" label, up to the
// next capitalized "Label:" header or the end of the text.
func ExtractCotSummary(text string) string {
	loc := cotLabelRe.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if end := cotEndRe.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return strings.TrimSpace(rest)
}
