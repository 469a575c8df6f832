package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bt-bridge/agent-chat/shared"
)

func TestRendererRender(t *testing.T) {
	tests := []struct {
		name     string
		latest   *ThreadMessage
		err      error
		expected []string
		absent   []string
	}{
		{
			name: "Body with references",
			latest: &ThreadMessage{
				Role:      RoleAgent,
				TextParts: []string{"First part.", "Second part."},
				URLCitations: []URLCitation{
					{URL: "https://example.com/a", Title: "Paper A"},
					{URL: "https://example.com/b", Title: "Paper B"},
				},
			},
			expected: []string{
				"First part.\n\nSecond part.",
				"### References",
				"- [Paper A](https://example.com/a)",
				"- [Paper B](https://example.com/b)",
			},
		},
		{
			name:     "Citations without text",
			latest:   &ThreadMessage{Role: RoleAgent, URLCitations: []URLCitation{{URL: "https://example.com/a"}}},
			expected: []string{"No content available.", "- [https://example.com/a](https://example.com/a)"},
		},
		{
			name:     "No agent message",
			latest:   nil,
			expected: []string{"No results available."},
			absent:   []string{"References"},
		},
		{
			name:     "Fetch failure",
			err:      assert.AnError,
			expected: []string{"Error retrieving final results:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{latest: tt.latest, latestErr: tt.err}
			out := new(recordMessage)
			NewRenderer(client, shared.NewNopLogger()).Render(context.Background(), "thread-1", out)

			text := out.text()
			for _, want := range tt.expected {
				assert.Contains(t, text, want)
			}
			for _, not := range tt.absent {
				assert.NotContains(t, text, not)
			}
		})
	}
}

func TestFormatReferences(t *testing.T) {
	refs := FormatReferences([]URLCitation{
		{URL: "https://example.com/a", Title: "First title"},
		{URL: "https://example.com/b", Title: "Other"},
		{URL: "https://example.com/a", Title: "Second title"},
		{URL: "", Title: "No url"},
		{URL: "https://example.com/c"},
	})

	// Dedup is keyed by URL: first-seen order, first title wins, missing
	// titles fall back to the URL.
	assert.Equal(t, []string{
		"- [First title](https://example.com/a)",
		"- [Other](https://example.com/b)",
		"- [https://example.com/c](https://example.com/c)",
	}, refs)
}

func TestFormatReferencesEmpty(t *testing.T) {
	assert.Empty(t, FormatReferences(nil))
	assert.Empty(t, FormatReferences([]URLCitation{{Title: "no url"}}))
}
