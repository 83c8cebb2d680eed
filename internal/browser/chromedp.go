package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// selectScript resolves a Locator to its matching elements in the page.
const selectScript = `(function(css, text, exact) {
	const all = Array.from(document.querySelectorAll(css));
	if (!text) return all;
	const want = text.trim().toLowerCase();
	return all.filter(el => {
		const got = (el.textContent || '').replace(/\s+/g, ' ').trim().toLowerCase();
		return exact ? got === want : got.includes(want);
	});
})`

// elementResult is the shape every per-element script evaluates to.
type elementResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

type chromedpPage struct {
	log          logrus.FieldLogger
	ctx          context.Context
	allocCancel  context.CancelFunc
	browserClose context.CancelFunc
}

func newChromedpPage(ctx context.Context, log logrus.FieldLogger, opts Options) (*chromedpPage, error) {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
	}

	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	// The tab outlives the caller's context; Close releases it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser and must not use a derived
	// context, or its cancellation would kill chrome.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()

		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	p := &chromedpPage{
		log:          log,
		ctx:          tabCtx,
		allocCancel:  allocCancel,
		browserClose: tabCancel,
	}

	setupCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	err := p.run(setupCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers(map[string]interface{}{
			"Accept-Language": "en-GB,en;q=0.9",
		})),
	)
	if err != nil {
		_ = p.Close()

		return nil, fmt.Errorf("configuring chrome: %w", err)
	}

	log.Debug("chrome started")

	return p, nil
}

// run executes actions in the tab, bounded by the caller's context.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc

		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}

	return nil
}

func (p *chromedpPage) URL(ctx context.Context) (string, error) {
	var location string
	if err := p.run(ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}

	return location, nil
}

func (p *chromedpPage) Count(ctx context.Context, loc Locator) (int, error) {
	var count int
	if err := p.run(ctx, chromedp.Evaluate(selection(loc)+".length", &count)); err != nil {
		return 0, fmt.Errorf("counting %s: %w", loc, err)
	}

	return count, nil
}

// element evaluates body against the index-th match, bound as "el".
func (p *chromedpPage) element(ctx context.Context, loc Locator, index int, body string) (string, error) {
	script := fmt.Sprintf(`(function() {
	const el = %s[%d];
	if (!el) return {found: false, value: ''};
	return {found: true, value: String((function(el) { %s })(el) ?? '')};
})()`, selection(loc), index, body)

	var result elementResult
	if err := p.run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return "", err
	}

	if !result.Found {
		return "", fmt.Errorf("%w: %s[%d]", ErrNoSuchElement, loc, index)
	}

	return result.Value, nil
}

func (p *chromedpPage) Text(ctx context.Context, loc Locator, index int) (string, error) {
	return p.element(ctx, loc, index, `return (el.textContent || '').replace(/\s+/g, ' ').trim();`)
}

func (p *chromedpPage) Attribute(ctx context.Context, loc Locator, index int, name string) (string, error) {
	return p.element(ctx, loc, index, fmt.Sprintf(`return el.getAttribute(%s);`, jsString(name)))
}

func (p *chromedpPage) Visible(ctx context.Context, loc Locator, index int) (bool, error) {
	value, err := p.element(ctx, loc, index, `
		const style = window.getComputedStyle(el);
		const rect = el.getBoundingClientRect();
		return style.display !== 'none' && style.visibility !== 'hidden' && rect.width > 0 && rect.height > 0;`)
	if err != nil {
		return false, err
	}

	return value == "true", nil
}

func (p *chromedpPage) Click(ctx context.Context, loc Locator, index int) error {
	_, err := p.element(ctx, loc, index, `
		el.scrollIntoView({block: 'center'});
		el.click();
		return true;`)
	if err != nil {
		return fmt.Errorf("clicking %s[%d]: %w", loc, index, err)
	}

	return nil
}

func (p *chromedpPage) Links(ctx context.Context, loc Locator) ([]string, error) {
	var hrefs []string

	script := selection(loc) + `.map(a => a.href).filter(Boolean)`
	if err := p.run(ctx, chromedp.Evaluate(script, &hrefs)); err != nil {
		return nil, fmt.Errorf("collecting links %s: %w", loc, err)
	}

	return hrefs, nil
}

func (p *chromedpPage) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 80)); err != nil {
		return fmt.Errorf("capturing screenshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating screenshot directory: %w", err)
	}

	return os.WriteFile(path, buf, 0o600)
}

func (p *chromedpPage) Close() error {
	// Cancel closes the tab gracefully and waits for it.
	err := chromedp.Cancel(p.ctx)

	p.browserClose()
	p.allocCancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("closing chrome: %w", err)
	}

	p.log.Debug("chrome stopped")

	return nil
}

func selection(loc Locator) string {
	return fmt.Sprintf("%s(%s, %s, %t)", selectScript, jsString(loc.CSS), jsString(loc.Text), loc.Exact)
}

func jsString(s string) string {
	// json.Marshal of a string always succeeds and yields a valid JS literal.
	b, _ := json.Marshal(s)
	return string(b)
}
