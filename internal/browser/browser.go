// Package browser provides the page-driving abstraction used by the probe
// and its implementations: Chrome DevTools (chromedp), Playwright, and an
// offline HTML snapshot driver.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoSuchElement is returned when a locator index is out of range.
	ErrNoSuchElement = errors.New("no such element")
	// ErrUnknownEngine is returned by Open for an unsupported engine name.
	ErrUnknownEngine = errors.New("unknown browser engine")
	// ErrNoRoute is returned by the snapshot driver for an unknown URL.
	ErrNoRoute = errors.New("no snapshot for url")
)

// Engine names accepted by Open.
const (
	EngineChromedp = "chromedp"
	EngineChromium = "chromium"
	EngineFirefox  = "firefox"
	EngineWebKit   = "webkit"
	EngineSnapshot = "snapshot"
)

// Engines lists every supported engine.
var Engines = []string{EngineChromedp, EngineChromium, EngineFirefox, EngineWebKit, EngineSnapshot}

// Locator selects elements by CSS selector, optionally filtered by their
// trimmed text content (case-insensitive substring, or exact when Exact is set).
type Locator struct {
	CSS   string `yaml:"css"`
	Text  string `yaml:"text,omitempty"`
	Exact bool   `yaml:"exact,omitempty"`
}

// WithText returns a copy of the locator filtered by text.
func (l Locator) WithText(text string) Locator {
	l.Text = text
	return l
}

// IsZero reports whether the locator has no selector.
func (l Locator) IsZero() bool {
	return l.CSS == ""
}

func (l Locator) String() string {
	if l.Text == "" {
		return l.CSS
	}

	if l.Exact {
		return fmt.Sprintf("%s[text=%q]", l.CSS, l.Text)
	}

	return fmt.Sprintf("%s[text~=%q]", l.CSS, l.Text)
}

// MatchText applies the locator's text filter to content.
func (l Locator) MatchText(content string) bool {
	if l.Text == "" {
		return true
	}

	content = strings.ToLower(strings.Join(strings.Fields(content), " "))
	want := strings.ToLower(strings.TrimSpace(l.Text))

	if l.Exact {
		return content == want
	}

	return strings.Contains(content, want)
}

// Page is a single browser tab. Methods address the index-th element
// matched by a locator at the time of the call.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Count(ctx context.Context, loc Locator) (int, error)
	Text(ctx context.Context, loc Locator, index int) (string, error)
	Attribute(ctx context.Context, loc Locator, index int, name string) (string, error)
	Visible(ctx context.Context, loc Locator, index int) (bool, error)
	Click(ctx context.Context, loc Locator, index int) error
	Links(ctx context.Context, loc Locator) ([]string, error)
	Close() error
}

// Screenshotter is implemented by pages able to capture a PNG screenshot.
type Screenshotter interface {
	Screenshot(ctx context.Context, path string) error
}

// Options configures Open.
type Options struct {
	Engine      string
	Headless    bool
	ChromePath  string
	UserAgent   string
	Timeout     time.Duration
	SnapshotDir string
}

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Open starts a browser for the configured engine and returns its page.
// The caller owns the page and must Close it.
func Open(ctx context.Context, log logrus.FieldLogger, opts Options) (Page, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	log = log.WithFields(logrus.Fields{
		"component": "browser",
		"engine":    opts.Engine,
	})

	switch opts.Engine {
	case EngineChromedp, "":
		return newChromedpPage(ctx, log, opts)
	case EngineChromium, EngineFirefox, EngineWebKit:
		return newPlaywrightPage(log, opts)
	case EngineSnapshot:
		routes, err := LoadSnapshotDir(opts.SnapshotDir)
		if err != nil {
			return nil, err
		}

		return NewSnapshot(log, routes), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownEngine, opts.Engine, strings.Join(Engines, ", "))
	}
}
