package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

// BrowserTool renders JavaScript-heavy pages in a shared headless Chrome. Calls are
// serialised on one tab, so concurrent steps queue behind each other.
type BrowserTool struct {
	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc

	Timeout  time.Duration
	MaxChars int
}

func NewBrowserTool() *BrowserTool {
	return &BrowserTool{Timeout: 60 * time.Second, MaxChars: defaultMaxChars}
}

// initBrowser must be called with b.mu held.
func (b *BrowserTool) initBrowser() error {
	if b.browserCtx != nil {
		select {
		case <-b.browserCtx.Done():
			b.cleanup()
		default:
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)

	return chromedp.Run(b.browserCtx)
}

func (b *BrowserTool) cleanup() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx = nil
	b.allocCtx = nil
}

// Close shuts the browser down. The next Render starts a fresh one.
func (b *BrowserTool) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanup()
}

// Render navigates to rawURL and returns the page's visible text once the body is
// ready. With html set it returns the serialised DOM instead.
func (b *BrowserTool) Render(ctx context.Context, rawURL string, html bool) (string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "", fmt.Errorf("invalid URL: %q", rawURL)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.initBrowser(); err != nil {
		return "", fmt.Errorf("failed to initialize browser: %v", err)
	}

	actionCtx, cancel := context.WithTimeout(b.browserCtx, b.Timeout)
	defer cancel()

	// Tie the browser action to the caller's context as well.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var out string
	err := chromedp.Run(actionCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if !html {
				return chromedp.Text("body", &out, chromedp.ByQuery).Do(ctx)
			}
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			out, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return "", fmt.Errorf("browser action failed: %v", err)
	}

	limit := b.MaxChars
	if limit <= 0 {
		limit = defaultMaxChars
	}
	return truncate(strings.TrimSpace(out), limit), nil
}

func (b *BrowserTool) Capabilities() Set {
	return Set{{
		Name:        "render_page",
		Description: "Open a URL in a headless browser and return the rendered visible text. Use for pages that need JavaScript.",
		Params:      []string{"url"},
		Fn: func(ctx context.Context, args []any) (any, error) {
			if err := wantArgs(args, 1, 1); err != nil {
				return nil, err
			}
			u, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			return b.Render(ctx, strings.TrimSpace(u), false)
		},
	}}
}
