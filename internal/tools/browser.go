package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// DefaultMermaidURL is the ESM build BrowserValidator imports.
const DefaultMermaidURL = "https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.esm.min.mjs"

// BrowserValidator parses Mermaid code with mermaid.js inside headless
// Chrome. One browser is started lazily and shared; each call gets a tab.
type BrowserValidator struct {
	mermaidURL string
	timeout    time.Duration

	once        sync.Once
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
}

// BrowserOption configures BrowserValidator.
type BrowserOption func(*BrowserValidator)

// WithMermaidURL overrides the module URL, for example a file:// copy.
func WithMermaidURL(url string) BrowserOption {
	return func(v *BrowserValidator) { v.mermaidURL = url }
}

// WithBrowserTimeout bounds a single validation.
func WithBrowserTimeout(d time.Duration) BrowserOption {
	return func(v *BrowserValidator) { v.timeout = d }
}

// NewBrowserValidator creates a validator. Chrome is not started until the
// first call.
func NewBrowserValidator(opts ...BrowserOption) *BrowserValidator {
	v := &BrowserValidator{mermaidURL: DefaultMermaidURL, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *BrowserValidator) start() {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	v.allocCancel = allocCancel
	v.browserCtx, v.cancel = chromedp.NewContext(allocCtx)
}

// Validate implements SyntaxValidator. It returns the parser message for
// invalid code, or an error when the browser could not run the check.
func (v *BrowserValidator) Validate(ctx context.Context, code string) (string, error) {
	v.once.Do(v.start)

	tabCtx, cancelTab := chromedp.NewContext(v.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, v.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	script, err := parseScript(v.mermaidURL, code)
	if err != nil {
		return "", err
	}

	var msg string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.Evaluate(script, &msg, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("run mermaid parser: %w", err)
	}
	return msg, nil
}

// Close shuts the browser down.
func (v *BrowserValidator) Close() error {
	if v.cancel != nil {
		v.cancel()
		v.allocCancel()
	}
	return nil
}

// parseScript builds the expression evaluated in the page. It resolves to
// "" for valid code and to the parser message otherwise.
func parseScript(mermaidURL, code string) (string, error) {
	url, err := json.Marshal(mermaidURL)
	if err != nil {
		return "", err
	}
	src, err := json.Marshal(code)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(async () => {
  const { default: mermaid } = await import(%s);
  mermaid.initialize({ startOnLoad: false });
  try {
    await mermaid.parse(%s);
    return "";
  } catch (e) {
    return String((e && e.message) || e);
  }
})()`, url, src), nil
}
