package tools

import (
	"context"
	"fmt"
	"time"
)

// Search is a deliberately slow mock database search. It exists to prove
// that tool execution never blocks the event dispatch loop: the model can
// keep talking while a call sits here for the full wait.
type Search struct {
	// Wait is the simulated search duration. Zero means the default of
	// 20 seconds.
	Wait time.Duration
}

var _ Tool = (*Search)(nil)

func (s *Search) Name() string {
	return "search_database"
}

func (s *Search) Description() string {
	return "Searches the knowledge database. This is a slow operation; keep the conversation going while it runs."
}

func (s *Search) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query (e.g. artificial intelligence, machine learning)",
			},
			"category": map[string]any{
				"type":        "string",
				"description": "Optional category filter (e.g. technology, business, research)",
			},
		},
		"required": []string{"query"},
	}
}

func (s *Search) Call(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	category, _ := args["category"].(string)

	wait := s.Wait
	if wait == 0 {
		wait = 20 * time.Second
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	}

	results := []map[string]any{
		{
			"id":        1,
			"title":     fmt.Sprintf("Latest research papers on %s", query),
			"summary":   "A comprehensive analysis based on current data.",
			"relevance": "95%",
		},
		{
			"id":        2,
			"title":     fmt.Sprintf("Practical guidelines for %s", query),
			"summary":   "Industry best practices collected in one document.",
			"relevance": "88%",
		},
		{
			"id":        3,
			"title":     fmt.Sprintf("Case studies on %s", query),
			"summary":   "Real deployments and their measured outcomes.",
			"relevance": "82%",
		},
	}

	summary := fmt.Sprintf("Found %d results for %q", len(results), query)
	if category != "" {
		summary += fmt.Sprintf(" (category: %s)", category)
	}
	summary += fmt.Sprintf(". The search took %s.", wait)

	return map[string]any{
		"query":         query,
		"category":      category,
		"total_results": len(results),
		"results":       results,
		"summary":       summary,
	}, nil
}
