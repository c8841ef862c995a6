package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultMaxChars  = 50000
	maxBodyBytes     = 20 << 20
)

type ScraperTool struct {
	Client    *http.Client
	UserAgent string
	// MaxChars truncates extracted content. Zero uses the default.
	MaxChars int
}

func NewScraperTool() *ScraperTool {
	return &ScraperTool{
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: defaultUserAgent,
	}
}

func (s *ScraperTool) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body: %v", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// Fetch downloads a page and returns its main content as a TITLE/EXCERPT/CONTENT
// report. PDFs are converted to text; pages readability cannot parse fall back to a
// plain walk over the HTML text nodes.
func (s *ScraperTool) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %q", rawURL)
	}

	body, contentType, err := s.get(ctx, rawURL)
	if err != nil {
		return "", err
	}

	if isPDF(contentType, body) {
		text, err := PDFText(body, 0)
		if err != nil {
			return "", err
		}
		return s.report("", "", text), nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		// Strip any remaining HTML tags or scripts.
		sanitized := bluemonday.StrictPolicy().Sanitize(article.TextContent)
		return s.report(article.Title, article.Excerpt, sanitized), nil
	}

	title, text, herr := HTMLText(bytes.NewReader(body))
	if herr != nil {
		if err != nil {
			return "", fmt.Errorf("failed to parse article: %v", err)
		}
		return "", fmt.Errorf("failed to parse page: %v", herr)
	}
	return s.report(title, "", text), nil
}

func (s *ScraperTool) report(title, excerpt, content string) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "TITLE: %s\n", title)
	}
	if excerpt != "" {
		fmt.Fprintf(&b, "EXCERPT: %s\n", excerpt)
	}
	b.WriteString("\n-- CONTENT --\n")
	b.WriteString(truncate(strings.TrimSpace(content), s.maxChars()))
	return b.String()
}

func (s *ScraperTool) maxChars() int {
	if s.MaxChars > 0 {
		return s.MaxChars
	}
	return defaultMaxChars
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (content truncated) ..."
}

func (s *ScraperTool) Capabilities() Set {
	return Set{
		{
			Name:        "fetch_webpage",
			Description: "Fetch a webpage or PDF URL and extract the main content as clean text.",
			Params:      []string{"url"},
			Fn: func(ctx context.Context, args []any) (any, error) {
				if err := wantArgs(args, 1, 1); err != nil {
					return nil, err
				}
				u, err := stringArg(args, 0)
				if err != nil {
					return nil, err
				}
				return s.Fetch(ctx, strings.TrimSpace(u))
			},
		},
		{
			Name:        "fetch_pdf",
			Description: "Download a PDF and return the text of its first pages (default 20).",
			Params:      []string{"url", "max_pages"},
			Fn: func(ctx context.Context, args []any) (any, error) {
				if err := wantArgs(args, 1, 2); err != nil {
					return nil, err
				}
				u, err := stringArg(args, 0)
				if err != nil {
					return nil, err
				}
				pages, err := optionalInt(args, 1, 0)
				if err != nil {
					return nil, err
				}
				body, _, err := s.get(ctx, strings.TrimSpace(u))
				if err != nil {
					return nil, err
				}
				text, err := PDFText(body, pages)
				if err != nil {
					return nil, err
				}
				return truncate(text, s.maxChars()), nil
			},
		},
	}
}
