package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// searcher is the part of the langchaingo tool interface the search capability needs.
type searcher interface {
	Call(ctx context.Context, input string) (string, error)
}

type SearchTool struct {
	client searcher
}

func NewSearchTool(maxResults int) (*SearchTool, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	ddg, err := duckduckgo.New(maxResults, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, err
	}
	return &SearchTool{client: ddg}, nil
}

func (s *SearchTool) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("empty search query")
	}
	res, err := s.client.Call(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	return res, nil
}

func (s *SearchTool) Capabilities() Set {
	return Set{{
		Name:        "duck_duck_go",
		Description: "Search the web using DuckDuckGo for real-time information.",
		Params:      []string{"query"},
		Fn: func(ctx context.Context, args []any) (any, error) {
			if err := wantArgs(args, 1, 1); err != nil {
				return nil, err
			}
			q, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			return s.Search(ctx, q)
		},
	}}
}
