package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

type playwrightPage struct {
	log     logrus.FieldLogger
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	timeout time.Duration
}

func newPlaywrightPage(log logrus.FieldLogger, opts Options) (*playwrightPage, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	var browserType playwright.BrowserType

	switch opts.Engine {
	case EngineFirefox:
		browserType = pw.Firefox
	case EngineWebKit:
		browserType = pw.WebKit
	default:
		browserType = pw.Chromium
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}

	if opts.ChromePath != "" && opts.Engine == EngineChromium {
		launch.ExecutablePath = playwright.String(opts.ChromePath)
	}

	b, err := browserType.Launch(launch)
	if err != nil {
		_ = pw.Stop()

		return nil, fmt.Errorf("launching %s: %w", opts.Engine, err)
	}

	page, err := b.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(opts.UserAgent),
		Locale:    playwright.String("en-GB"),
		Viewport:  &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()

		return nil, fmt.Errorf("opening page: %w", err)
	}

	log.Debug("playwright browser started")

	return &playwrightPage{
		log:     log,
		pw:      pw,
		browser: b,
		page:    page,
		timeout: opts.Timeout,
	}, nil
}

// millis converts the caller's remaining deadline to a playwright timeout.
func (p *playwrightPage) millis(ctx context.Context) *float64 {
	timeout := p.timeout

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}

	return playwright.Float(float64(timeout.Milliseconds()))
}

func (p *playwrightPage) locator(loc Locator) playwright.Locator {
	l := p.page.Locator(loc.CSS)
	if loc.Text == "" {
		return l
	}

	var hasText interface{} = loc.Text
	if loc.Exact {
		hasText = regexp.MustCompile(`(?i)^\s*` + regexp.QuoteMeta(strings.TrimSpace(loc.Text)) + `\s*$`)
	}

	return l.Filter(playwright.LocatorFilterOptions{HasText: hasText})
}

// nth returns the index-th match, or ErrNoSuchElement when out of range.
func (p *playwrightPage) nth(ctx context.Context, loc Locator, index int) (playwright.Locator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := p.locator(loc)

	count, err := l.Count()
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", loc, err)
	}

	if index < 0 || index >= count {
		return nil, fmt.Errorf("%w: %s[%d]", ErrNoSuchElement, loc, index)
	}

	return l.Nth(index), nil
}

func (p *playwrightPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   p.millis(ctx),
	})
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}

	return nil
}

func (p *playwrightPage) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return p.page.URL(), nil
}

func (p *playwrightPage) Count(ctx context.Context, loc Locator) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count, err := p.locator(loc).Count()
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", loc, err)
	}

	return count, nil
}

func (p *playwrightPage) Text(ctx context.Context, loc Locator, index int) (string, error) {
	el, err := p.nth(ctx, loc, index)
	if err != nil {
		return "", err
	}

	text, err := el.TextContent(playwright.LocatorTextContentOptions{Timeout: p.millis(ctx)})
	if err != nil {
		return "", fmt.Errorf("reading text of %s[%d]: %w", loc, index, err)
	}

	return strings.Join(strings.Fields(text), " "), nil
}

func (p *playwrightPage) Attribute(ctx context.Context, loc Locator, index int, name string) (string, error) {
	el, err := p.nth(ctx, loc, index)
	if err != nil {
		return "", err
	}

	value, err := el.GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: p.millis(ctx)})
	if err != nil {
		return "", fmt.Errorf("reading %s of %s[%d]: %w", name, loc, index, err)
	}

	return value, nil
}

func (p *playwrightPage) Visible(ctx context.Context, loc Locator, index int) (bool, error) {
	el, err := p.nth(ctx, loc, index)
	if err != nil {
		return false, err
	}

	visible, err := el.IsVisible()
	if err != nil {
		return false, fmt.Errorf("checking visibility of %s[%d]: %w", loc, index, err)
	}

	return visible, nil
}

func (p *playwrightPage) Click(ctx context.Context, loc Locator, index int) error {
	el, err := p.nth(ctx, loc, index)
	if err != nil {
		return err
	}

	if err := el.Click(playwright.LocatorClickOptions{Timeout: p.millis(ctx)}); err != nil {
		return fmt.Errorf("clicking %s[%d]: %w", loc, index, err)
	}

	return nil
}

func (p *playwrightPage) Links(ctx context.Context, loc Locator) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := p.locator(loc).EvaluateAll(`els => els.map(a => a.href).filter(Boolean)`)
	if err != nil {
		return nil, fmt.Errorf("collecting links %s: %w", loc, err)
	}

	values, _ := raw.([]interface{})
	hrefs := make([]string, 0, len(values))

	for _, v := range values {
		if s, ok := v.(string); ok {
			hrefs = append(hrefs, s)
		}
	}

	return hrefs, nil
}

func (p *playwrightPage) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("capturing screenshot: %w", err)
	}

	return nil
}

func (p *playwrightPage) Close() error {
	var errs []string

	if err := p.page.Close(); err != nil {
		errs = append(errs, err.Error())
	}

	if err := p.browser.Close(); err != nil {
		errs = append(errs, err.Error())
	}

	if err := p.pw.Stop(); err != nil {
		errs = append(errs, err.Error())
	}

	p.log.Debug("playwright browser stopped")

	if len(errs) > 0 {
		return fmt.Errorf("closing playwright: %s", strings.Join(errs, "; "))
	}

	return nil
}
