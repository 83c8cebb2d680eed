package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethpandaops/tracker-probe/internal/browser"
	"github.com/ethpandaops/tracker-probe/internal/catalog"
	"github.com/ethpandaops/tracker-probe/internal/results"
	"github.com/sirupsen/logrus"
)

const (
	listingURL = "https://bet.test/football"
	trusted    = "https://widgets.thesports01.com/en/3d/football?id="
)

// fakeEl is one scripted element. Clicking navigates to href and unhides
// every selector in reveal. srcs is consumed one value per src read, the
// last value repeating.
type fakeEl struct {
	text   string
	hidden bool
	href   string
	reveal []string
	srcs   []string
	reads  int
}

type fakeDOM map[string][]*fakeEl

// fakePage is a scripted browser.Page keyed by CSS selector.
type fakePage struct {
	mu          sync.Mutex
	pages       map[string]func() fakeDOM
	url         string
	dom         fakeDOM
	navigations []string
	navErr      map[string]error
}

var _ browser.Page = (*fakePage)(nil)

func newFakePage() *fakePage {
	return &fakePage{
		pages:  make(map[string]func() fakeDOM),
		navErr: make(map[string]error),
		url:    "about:blank",
	}
}

func (f *fakePage) route(url string, build func() fakeDOM) {
	f.pages[url] = build
}

func (f *fakePage) load(url string) error {
	if err := f.navErr[url]; err != nil {
		return err
	}

	build, ok := f.pages[url]
	if !ok {
		return fmt.Errorf("%w: %s", browser.ErrNoRoute, url)
	}

	f.url = url
	f.dom = build()
	f.navigations = append(f.navigations, url)

	return nil
}

func (f *fakePage) matches(loc browser.Locator) []*fakeEl {
	var out []*fakeEl

	for _, el := range f.dom[loc.CSS] {
		if loc.MatchText(el.text) {
			out = append(out, el)
		}
	}

	return out
}

func (f *fakePage) nth(loc browser.Locator, index int) (*fakeEl, error) {
	els := f.matches(loc)
	if index < 0 || index >= len(els) {
		return nil, fmt.Errorf("%w: %s[%d]", browser.ErrNoSuchElement, loc, index)
	}

	return els[index], nil
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.load(url)
}

func (f *fakePage) URL(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.url, nil
}

func (f *fakePage) Count(ctx context.Context, loc browser.Locator) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.matches(loc)), nil
}

func (f *fakePage) Text(_ context.Context, loc browser.Locator, index int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	el, err := f.nth(loc, index)
	if err != nil {
		return "", err
	}

	return el.text, nil
}

func (f *fakePage) Attribute(_ context.Context, loc browser.Locator, index int, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	el, err := f.nth(loc, index)
	if err != nil {
		return "", err
	}

	if name != "src" || len(el.srcs) == 0 {
		return "", nil
	}

	i := min(el.reads, len(el.srcs)-1)
	el.reads++

	return el.srcs[i], nil
}

func (f *fakePage) Visible(_ context.Context, loc browser.Locator, index int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	el, err := f.nth(loc, index)
	if err != nil {
		return false, err
	}

	return !el.hidden, nil
}

func (f *fakePage) Click(_ context.Context, loc browser.Locator, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	el, err := f.nth(loc, index)
	if err != nil {
		return err
	}

	for _, css := range el.reveal {
		for _, target := range f.dom[css] {
			target.hidden = false
		}
	}

	if el.href != "" {
		return f.load(el.href)
	}

	return nil
}

func (f *fakePage) Links(_ context.Context, loc browser.Locator) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var hrefs []string
	for _, el := range f.matches(loc) {
		hrefs = append(hrefs, el.href)
	}

	return hrefs, nil
}

func (f *fakePage) Close() error { return nil }

func (f *fakePage) visited(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0

	for _, u := range f.navigations {
		if u == url {
			n++
		}
	}

	return n
}

func testSite() *catalog.Site {
	return &catalog.Site{
		Name:         "testbet",
		BaseURL:      "https://bet.test",
		TrustedHosts: []string{"widgets.thesports01.com"},
		Landing:      []browser.Locator{{CSS: "button.cookies", Text: "Allow all"}},
		Locators: catalog.Locators{
			EventLink:     browser.Locator{CSS: "a.event"},
			DetailPattern: "/event/",
			Panel:         browser.Locator{CSS: ".animated_widget"},
			Widget:        browser.Locator{CSS: ".animated_widget iframe"},
			Toggles: []browser.Locator{
				{CSS: "h4", Text: "Live tracker", Exact: true},
				{CSS: "div.collapse", Text: "Live tracker"},
			},
			WindowTab: browser.Locator{CSS: "button.tab"},
			NoEvents:  browser.Locator{CSS: ".no-events"},
		},
	}
}

func testCategory(windows ...string) *catalog.Category {
	return &catalog.Category{
		Name:       results.CategoryFootball,
		Sport:      "Football (TEST)",
		TestName:   "TestBet – Football Animation Check",
		ListingURL: listingURL,
		Windows:    windows,
		Competitions: []catalog.Competition{
			{Name: "English Premier League", Keywords: []string{"Premier League", "EPL"}},
			{Name: "Italian Serie A", Keywords: []string{"Serie A"}},
		},
	}
}

func testTiming() Timing {
	return Timing{
		NavigationTimeout: time.Second,
		DetailTimeout:     40 * time.Millisecond,
		ListingTimeout:    40 * time.Millisecond,
		StepTimeout:       40 * time.Millisecond,
		PanelProbe:        10 * time.Millisecond,
		WidgetTimeout:     40 * time.Millisecond,
		IframeTimeout:     40 * time.Millisecond,
		PollAttempts:      3,
		PollInterval:      time.Millisecond,
		WaitInterval:      time.Millisecond,
		MaxPerWindow:      10,
		MaxPerRun:         40,
	}
}

// transitionLog records state changes per event.
type transitionLog struct {
	mu     sync.Mutex
	states map[string][]State
}

func (t *transitionLog) observe(event string, from, to State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.states == nil {
		t.states = make(map[string][]State)
	}

	if len(t.states[event]) == 0 {
		t.states[event] = append(t.states[event], from)
	}

	t.states[event] = append(t.states[event], to)
}

func (t *transitionLog) path(event string) []State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.states[event]
}

func newTestProber(t *testing.T, page browser.Page, trace *transitionLog) *Prober {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	opts := Options{Site: testSite(), Timing: testTiming()}
	if trace != nil {
		opts.OnTransition = trace.observe
	}

	return New(log, page, opts)
}

// eventKind scripts how an event detail page behaves.
type eventKind int

const (
	eventOpen       eventKind = iota // tracker already expanded, trusted src
	eventToggle                      // tracker behind the h4 toggle
	eventFallback                    // tracker behind the second toggle
	eventNoToggle                    // no tracker control at all
	eventUntrusted                   // widget src never becomes trusted
	eventSlowSrc                     // src trusted on the second read
	eventHiddenIframe                // trusted src but the iframe stays hidden
)

func eventDetail(kind eventKind, id int) func() fakeDOM {
	return func() fakeDOM {
		widget := &fakeEl{srcs: []string{trusted + fmt.Sprint(id)}}
		panel := &fakeEl{}
		dom := fakeDOM{
			".animated_widget":        {panel},
			".animated_widget iframe": {widget},
		}

		switch kind {
		case eventOpen:
		case eventToggle:
			panel.hidden, widget.hidden = true, true
			dom["h4"] = []*fakeEl{{text: "Live tracker", reveal: []string{".animated_widget", ".animated_widget iframe"}}}
		case eventFallback:
			panel.hidden, widget.hidden = true, true
			dom["div.collapse"] = []*fakeEl{{text: "Live tracker (beta)", reveal: []string{".animated_widget", ".animated_widget iframe"}}}
		case eventNoToggle:
			panel.hidden, widget.hidden = true, true
		case eventUntrusted:
			widget.srcs = []string{"", "https://ads.example.com/frame"}
		case eventSlowSrc:
			widget.srcs = []string{"about:blank", trusted + fmt.Sprint(id)}
		case eventHiddenIframe:
			widget.hidden = true
		}

		return dom
	}
}

// listingPage scripts a listing whose events are given per window. Window
// tabs link to "?w=<window>".
func listingPage(windows map[string][]string) func(window string) func() fakeDOM {
	return func(window string) func() fakeDOM {
		return func() fakeDOM {
			dom := fakeDOM{"button.cookies": {{text: "Allow all"}}}

			for name := range windows {
				dom["button.tab"] = append(dom["button.tab"], &fakeEl{text: name, href: listingURL + "?w=" + name})
			}

			for i, title := range windows[window] {
				dom["a.event"] = append(dom["a.event"], &fakeEl{
					text: title,
					href: fmt.Sprintf("https://bet.test/event/%s/%d", window, i),
				})
			}

			if len(windows[window]) == 0 {
				dom[".no-events"] = []*fakeEl{{text: "Sorry, we haven't found any events"}}
			}

			return dom
		}
	}
}

var errBoom = errors.New("boom")
