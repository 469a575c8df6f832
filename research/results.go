package research

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bt-bridge/agent-chat/shared"
	"github.com/bt-bridge/agent-chat/ui"
)

// Renderer writes the final research result: the message body followed by
// a reference list deduplicated by URL (first-seen order, first title wins).
type Renderer struct {
	client Client
	logger shared.LoggerAdapter
}

func NewRenderer(client Client, logger shared.LoggerAdapter) *Renderer {
	return &Renderer{client: client, logger: logger}
}

func (r *Renderer) Render(ctx context.Context, threadID string, out ui.Message) {
	msg, err := r.client.GetLastMessageByRole(ctx, threadID, RoleAgent)
	if err != nil {
		r.stream(out, fmt.Sprintf("Error retrieving final results: %v", err))
		return
	}
	if msg == nil {
		r.stream(out, "No results available.")
		return
	}

	if len(msg.TextParts) > 0 {
		r.stream(out, strings.Join(msg.TextParts, "\n\n"))
	} else {
		r.stream(out, "No content available.")
	}

	if refs := FormatReferences(msg.URLCitations); len(refs) > 0 {
		r.stream(out, "\n\n### References\n"+strings.Join(refs, "\n"))
	}
}

func (r *Renderer) stream(out ui.Message, token string) {
	if err := out.StreamToken(token); err != nil {
		r.logger.Warn("streaming result token failed", zap.Error(err))
	}
}

// FormatReferences renders citations as markdown list items, one per
// distinct URL in first-seen order. The first title seen for a URL wins;
// a missing title falls back to the URL itself.
func FormatReferences(citations []URLCitation) []string {
	seen := make(map[string]struct{}, len(citations))
	refs := make([]string, 0, len(citations))
	for _, c := range citations {
		if c.URL == "" {
			continue
		}
		if _, ok := seen[c.URL]; ok {
			continue
		}
		seen[c.URL] = struct{}{}
		title := c.Title
		if title == "" {
			title = c.URL
		}
		refs = append(refs, fmt.Sprintf("- [%s](%s)", title, c.URL))
	}
	return refs
}
