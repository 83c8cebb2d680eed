// Package probe implements the event verification loop: enumerate the events
// of a listing, open each one, reveal its live tracker and check that the
// animation widget loaded from a trusted host.
package probe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethpandaops/tracker-probe/internal/browser"
	"github.com/ethpandaops/tracker-probe/internal/catalog"
	"github.com/ethpandaops/tracker-probe/internal/results"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultWaitInterval = 50 * time.Millisecond
	executionErrorLabel = "Test execution error"
)

// Options configures a Prober.
type Options struct {
	Site   *catalog.Site
	Timing Timing
	// CI selects the categories' CI time windows.
	CI bool
	// Limiter paces navigations. Nil means unlimited.
	Limiter *rate.Limiter
	// ScreenshotDir receives a screenshot for every errored event when the
	// page supports it. Empty disables screenshots.
	ScreenshotDir string
	// OnTransition observes inspection state changes.
	OnTransition TransitionFunc
	// Now overrides the clock.
	Now func() time.Time
}

// Prober drives a single page through the verification loop. It is not
// safe for concurrent use; one Prober owns one page.
type Prober struct {
	log     logrus.FieldLogger
	page    browser.Page
	site    *catalog.Site
	timing  Timing
	ci      bool
	limiter *rate.Limiter
	shots   string
	observe TransitionFunc
	now     func() time.Time

	epoch       uint64
	onListing   bool
	landingDone bool
	errored     int
}

// New returns a Prober for site driving page.
func New(log logrus.FieldLogger, page browser.Page, opts Options) *Prober {
	if opts.Timing.WaitInterval <= 0 {
		opts.Timing.WaitInterval = defaultWaitInterval
	}

	if opts.Timing.PollAttempts <= 0 {
		opts.Timing.PollAttempts = 1
	}

	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Prober{
		log: log.WithFields(logrus.Fields{
			"component": "probe",
			"site":      opts.Site.Name,
		}),
		page:    page,
		site:    opts.Site,
		timing:  opts.Timing,
		ci:      opts.CI,
		limiter: opts.Limiter,
		shots:   opts.ScreenshotDir,
		observe: opts.OnTransition,
		now:     opts.Now,
	}
}

// Epoch is incremented by every navigation of the page.
func (p *Prober) Epoch() uint64 {
	return p.epoch
}

// Run executes the full loop for one category and returns its summary.
// A non-nil error means the run was cut short; the summary holds every
// event inspected up to that point.
func (p *Prober) Run(ctx context.Context, c *catalog.Category) (*results.RunSummary, error) {
	log := p.log.WithField("category", c.Name)

	summary := results.NewRunSummary(p.site.Name, c.SportLabel(), c.Name, p.now().UTC())
	if c.TestName != "" {
		summary.TestName = c.TestName
	}

	perWindow := p.timing.MaxPerWindow
	if c.MaxPerWindow > 0 {
		perWindow = c.MaxPerWindow
	}

	remaining := p.timing.MaxPerRun
	windows := c.TimeWindows(p.ci)

	log.WithFields(logrus.Fields{
		"windows":        windows,
		"max_per_window": perWindow,
		"max_per_run":    remaining,
	}).Info("starting category run")

	var runErr error

windows:
	for _, window := range windows {
		if remaining <= 0 {
			log.WithField("window", window).Info("event cap reached, stopping")
			break
		}

		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		wlog := log.WithField("window", window)

		if !p.onListing {
			if err := p.OpenCategory(ctx, c); err != nil {
				summary.AddRunError(err)
				runErr = err

				break
			}
		}

		if err := p.SelectWindow(ctx, window); err != nil {
			if errors.Is(err, ErrTabNotFound) {
				wlog.WithError(err).Warn("skipping time window")
				continue
			}

			summary.AddRunError(err)
			runErr = err

			break
		}

		listing, err := p.Enumerate(ctx, c, window, min(perWindow, remaining))
		if err != nil {
			summary.AddRunError(err)
			runErr = err

			break
		}

		if listing.Len() == 0 {
			wlog.Info("no events in time window, skipping")
			continue
		}

		wlog.WithFields(logrus.Fields{
			"found":   listing.Found,
			"sampled": listing.Len(),
		}).Info("testing events")

		for {
			h, ok := listing.Next()
			if !ok {
				break
			}

			summary.Append(p.Inspect(ctx, h))
			remaining--

			if err := ctx.Err(); err != nil {
				runErr = err
				break windows
			}

			if listing.Remaining() == 0 {
				break
			}

			if err := p.ReturnToListing(ctx, listing); err != nil {
				wlog.WithError(err).Error("lost the listing, aborting category")
				summary.AddRunError(err)
				runErr = err

				break windows
			}
		}
	}

	summary.FinishedAt = p.now().UTC()

	log.WithFields(logrus.Fields{
		"total":  summary.TotalEvents,
		"passed": summary.PassedEvents,
		"failed": summary.FailedEvents,
		"errors": summary.ErrorEvents,
	}).Info("category run complete")

	return summary, runErr
}

// OpenCategory loads the category listing, dismisses landing overlays on
// first use and clicks through the category's navigation steps.
func (p *Prober) OpenCategory(ctx context.Context, c *catalog.Category) error {
	if err := p.navigate(ctx, c.ListingURL); err != nil {
		return err
	}

	if !p.landingDone {
		p.DismissLanding(ctx)
		p.landingDone = true
	}

	for _, step := range c.Steps {
		found, err := p.waitUntil(ctx, p.timing.StepTimeout, p.present(step))
		if err != nil {
			return fmt.Errorf("%w: waiting for %s: %w", ErrNavigation, step, err)
		}

		if !found {
			return fmt.Errorf("%w: navigation step %s not found", ErrNavigation, step)
		}

		if err := p.click(ctx, step, 0); err != nil {
			return fmt.Errorf("%w: clicking %s: %w", ErrNavigation, step, err)
		}

		p.moved()

		if err := p.sleep(ctx, p.timing.TabSettle); err != nil {
			return err
		}
	}

	p.onListing = true

	return nil
}

// DismissLanding clicks every visible consent or popup close control, in
// catalog order. Missing controls are ignored.
func (p *Prober) DismissLanding(ctx context.Context) {
	for _, loc := range p.site.Landing {
		visible, err := p.waitUntil(ctx, p.timing.PanelProbe, p.visible(loc))
		if err != nil || !visible {
			p.log.WithField("locator", loc.String()).Debug("landing control not present")
			continue
		}

		if err := p.click(ctx, loc, 0); err != nil {
			p.log.WithError(err).WithField("locator", loc.String()).Debug("could not dismiss landing control")
			continue
		}

		p.log.WithField("locator", loc.String()).Info("dismissed landing control")
	}
}

// SelectWindow clicks the tab of a time window. Categories without tabs
// are left untouched.
func (p *Prober) SelectWindow(ctx context.Context, window string) error {
	tab, ok := p.site.TabFor(window)
	if !ok {
		return nil
	}

	found, err := p.waitUntil(ctx, p.timing.StepTimeout, p.visible(tab))
	if err != nil {
		return fmt.Errorf("%w: waiting for %s tab: %w", ErrNavigation, window, err)
	}

	if !found {
		return fmt.Errorf("%w: %s", ErrTabNotFound, window)
	}

	if err := p.click(ctx, tab, 0); err != nil {
		return fmt.Errorf("%w: clicking %s tab: %w", ErrNavigation, window, err)
	}

	p.moved()
	p.onListing = true

	return p.sleep(ctx, p.timing.TabSettle)
}

// Enumerate lists up to limit events of the current listing page in DOM order.
func (p *Prober) Enumerate(ctx context.Context, c *catalog.Category, window string, limit int) (*Listing, error) {
	loc := p.site.EventLinkFor(c)
	noEvents := p.site.Locators.NoEvents

	count := 0

	_, err := p.waitUntil(ctx, p.timing.ListingTimeout, func(ctx context.Context) (bool, error) {
		n, err := p.page.Count(ctx, loc)
		if err != nil {
			return false, err
		}

		count = n
		if n > 0 {
			return true, nil
		}

		if noEvents.IsZero() {
			return false, nil
		}

		empty, err := p.page.Count(ctx, noEvents)

		return err == nil && empty > 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: counting events: %w", ErrNavigation, err)
	}

	limit = max(min(limit, count), 0)
	titles := make([]string, limit)

	for i := range titles {
		titles[i] = p.title(ctx, c, loc, i)
	}

	p.log.WithFields(logrus.Fields{
		"category": c.Name,
		"window":   window,
		"found":    count,
	}).Debug("enumerated events")

	return &Listing{
		Category: c,
		Window:   window,
		Found:    count,
		locator:  loc,
		titles:   titles,
		limit:    limit,
		epoch:    p.epoch,
	}, nil
}

// ReturnToListing reloads the listing and time window after an inspection
// and rebinds the listing to the new page.
func (p *Prober) ReturnToListing(ctx context.Context, l *Listing) error {
	if err := p.OpenCategory(ctx, l.Category); err != nil {
		return fmt.Errorf("returning to listing: %w", err)
	}

	if err := p.SelectWindow(ctx, l.Window); err != nil {
		return fmt.Errorf("returning to listing: %w", err)
	}

	count := 0

	found, err := p.waitUntil(ctx, p.timing.ListingTimeout, func(ctx context.Context) (bool, error) {
		n, err := p.page.Count(ctx, l.locator)
		count = n

		return n > 0, err
	})
	if err != nil {
		return fmt.Errorf("%w: returning to listing: %w", ErrNavigation, err)
	}

	if !found {
		return fmt.Errorf("%w: no events after returning to the %s listing", ErrNavigation, l.Window)
	}

	n := min(count, len(l.titles))
	titles := make([]string, n)
	copy(titles, l.titles[:n])

	for i := l.next; i < n; i++ {
		titles[i] = p.title(ctx, l.Category, l.locator, i)
	}

	l.rebind(p.epoch, titles)

	return nil
}

// Inspect runs the state machine for one event. It never returns an error:
// every way an inspection can end is expressed as the record's outcome.
func (p *Prober) Inspect(ctx context.Context, h Handle) results.EventRecord {
	c := h.category
	start := p.now()

	record := results.EventRecord{
		Title:       h.Title,
		Category:    c.Name,
		TimeWindow:  h.Window,
		Competition: c.Classify(h.Title),
		CheckedAt:   start.UTC(),
	}

	ins := newInspection(h.Title, p.observe)

	if h.Epoch != p.epoch || !p.onListing {
		return p.finish(ctx, ins, &record, start, fmt.Errorf("%w: enumerated at epoch %d, page at %d", ErrStaleHandle, h.Epoch, p.epoch))
	}

	if title, ok := p.readText(ctx, h.locator, h.Index); ok && title != record.Title {
		record.Title = title
		record.Competition = c.Classify(title)
		ins.event = title
	}

	p.log.WithFields(logrus.Fields{
		"category":    c.Name,
		"window":      h.Window,
		"event":       record.Title,
		"competition": record.Competition,
	}).Info("testing event")

	ins.advance(StateNavigating)

	url, err := p.openEvent(ctx, h)
	record.URL = url

	if err != nil {
		return p.finish(ctx, ins, &record, start, err)
	}

	ins.advance(StateTrackerCheck)

	if err := p.revealTracker(ctx); err != nil {
		return p.finish(ctx, ins, &record, start, err)
	}

	ins.advance(StateWidgetPoll)

	src, attempts, err := p.pollWidget(ctx, record.Title)
	record.WidgetSrc = src
	record.Attempts = attempts

	return p.finish(ctx, ins, &record, start, err)
}

func (p *Prober) finish(ctx context.Context, ins *inspection, record *results.EventRecord, start time.Time, err error) results.EventRecord {
	record.Outcome = outcomeFor(err)
	record.DurationMS = p.now().Sub(start).Milliseconds()

	log := p.log.WithFields(logrus.Fields{
		"category": record.Category,
		"window":   record.TimeWindow,
		"event":    record.Title,
	})

	switch record.Outcome {
	case results.OutcomePass:
		ins.advance(StatePass)
		log.WithField("src", record.WidgetSrc).Info("PASS: animation widget loaded")
	case results.OutcomeFail:
		ins.advance(StateFail)

		reason := err.Error()
		record.FailureReason = &reason

		log.WithField("reason", reason).Warn("FAIL")
	default:
		ins.advance(StateError)

		reason := fmt.Sprintf("%s: %s", executionErrorLabel, err)
		record.FailureReason = &reason

		log.WithError(err).Error("ERROR")
		p.screenshot(ctx, record)
	}

	return *record
}

// openEvent clicks the event link and waits for the detail URL.
func (p *Prober) openEvent(ctx context.Context, h Handle) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	if err := p.click(ctx, h.locator, h.Index); err != nil {
		return "", fmt.Errorf("%w: opening event: %w", ErrNavigation, err)
	}

	p.moved()

	current := ""

	reached, err := p.waitUntil(ctx, p.timing.DetailTimeout, func(ctx context.Context) (bool, error) {
		u, err := p.page.URL(ctx)
		if err != nil {
			return false, err
		}

		current = u

		return p.site.IsDetailURL(u), nil
	})
	if err != nil {
		return current, fmt.Errorf("%w: waiting for event page: %w", ErrNavigation, err)
	}

	if !reached {
		return current, fmt.Errorf("%w: event page did not load, still at %s", ErrNavigation, current)
	}

	return current, p.sleep(ctx, p.timing.SettleDelay)
}

// revealTracker leaves the live tracker panel open: either it already is,
// or the first present toggle is clicked.
func (p *Prober) revealTracker(ctx context.Context) error {
	open, err := p.waitUntil(ctx, p.timing.PanelProbe, p.visible(p.site.Locators.Panel))
	if err != nil {
		return err
	}

	if open {
		p.log.Debug("live tracker already open")
		return nil
	}

	for _, toggle := range p.site.Locators.Toggles {
		if err := ctx.Err(); err != nil {
			return err
		}

		stepCtx, cancel := context.WithTimeout(ctx, p.timing.StepTimeout)
		n, err := p.page.Count(stepCtx, toggle)
		cancel()

		if err != nil || n == 0 {
			continue
		}

		if err := p.click(ctx, toggle, 0); err != nil {
			p.log.WithError(err).WithField("toggle", toggle.String()).Debug("toggle click failed, trying next")
			continue
		}

		p.log.WithField("toggle", toggle.String()).Debug("live tracker toggled")

		return p.sleep(ctx, p.timing.ToggleSettle)
	}

	return reasonf(ErrElementNotFound, "Live tracker button not found")
}

// pollWidget waits for the widget iframe and polls its src until it points
// at a trusted host.
func (p *Prober) pollWidget(ctx context.Context, event string) (string, int, error) {
	locs := p.site.Locators

	found, err := p.waitUntil(ctx, p.timing.WidgetTimeout, p.visible(locs.Panel))
	if err != nil {
		return "", 0, err
	}

	if !found {
		return "", 0, reasonf(ErrElementNotFound, "Animation widget not visible")
	}

	found, err = p.waitUntil(ctx, p.timing.IframeTimeout, p.visible(locs.Widget))
	if err != nil {
		return "", 0, err
	}

	if !found {
		return "", 0, reasonf(ErrElementNotFound, "Animation iframe failed to load")
	}

	var (
		src      string
		attempts int
	)

	for attempts < p.timing.PollAttempts {
		attempts++

		readCtx, cancel := context.WithTimeout(ctx, p.timing.StepTimeout)
		value, err := p.page.Attribute(readCtx, locs.Widget, 0, "src")
		cancel()

		if err != nil && ctx.Err() != nil {
			return src, attempts, ctx.Err()
		}

		if err == nil {
			src = value
		}

		if p.site.Trusted(src) {
			break
		}

		p.log.WithFields(logrus.Fields{
			"event":   event,
			"attempt": fmt.Sprintf("%d/%d", attempts, p.timing.PollAttempts),
			"src":     src,
		}).Debug("widget src not trusted yet")

		if attempts < p.timing.PollAttempts {
			if err := p.sleep(ctx, p.timing.PollInterval); err != nil {
				return src, attempts, err
			}
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, p.timing.StepTimeout)
	visible, err := p.page.Visible(checkCtx, locs.Widget, 0)
	cancel()

	if err != nil && !errors.Is(err, browser.ErrNoSuchElement) {
		return src, attempts, err
	}

	switch {
	case !p.site.Trusted(src):
		if src == "" {
			return src, attempts, reasonf(ErrWidgetValidation, "Animation iframe failed to load: no src after %d attempts", attempts)
		}

		return src, attempts, reasonf(ErrWidgetValidation, "Animation iframe failed to load: untrusted src %s", src)
	case !visible:
		return src, attempts, reasonf(ErrWidgetValidation, "Animation iframe failed to load: iframe hidden")
	default:
		return src, attempts, nil
	}
}

func (p *Prober) navigate(ctx context.Context, url string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	p.moved()

	navCtx, cancel := context.WithTimeout(ctx, p.timing.NavigationTimeout)
	defer cancel()

	if err := p.page.Navigate(navCtx, url); err != nil {
		return fmt.Errorf("%w: %w", ErrNavigation, err)
	}

	return nil
}

func (p *Prober) click(ctx context.Context, loc browser.Locator, index int) error {
	clickCtx, cancel := context.WithTimeout(ctx, p.timing.StepTimeout)
	defer cancel()

	return p.page.Click(clickCtx, loc, index)
}

// moved records that the page content was replaced.
func (p *Prober) moved() {
	p.epoch++
	p.onListing = false
}

// title reads an event link's text, falling back to a positional name.
func (p *Prober) title(ctx context.Context, c *catalog.Category, loc browser.Locator, index int) string {
	if text, ok := p.readText(ctx, loc, index); ok {
		return text
	}

	return fmt.Sprintf("%s Event %d", c.Name, index+1)
}

// readText reports false when the read fails or yields no text.
func (p *Prober) readText(ctx context.Context, loc browser.Locator, index int) (string, bool) {
	readCtx, cancel := context.WithTimeout(ctx, p.timing.StepTimeout)
	defer cancel()

	text, err := p.page.Text(readCtx, loc, index)
	if err != nil || text == "" {
		return "", false
	}

	return text, true
}

func (p *Prober) screenshot(ctx context.Context, record *results.EventRecord) {
	shooter, ok := p.page.(browser.Screenshotter)
	if !ok || p.shots == "" {
		return
	}

	p.errored++
	path := filepath.Join(p.shots, fmt.Sprintf("%s-%s-error-%d.png", p.site.Name, record.Category, p.errored))

	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timing.StepTimeout)
	defer cancel()

	if err := shooter.Screenshot(shotCtx, path); err != nil {
		p.log.WithError(err).Debug("screenshot failed")
		return
	}

	p.log.WithField("path", path).Info("saved error screenshot")
}
