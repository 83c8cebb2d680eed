package probe

import "time"

// Timing holds every timeout, delay and cap used by the verification loop.
type Timing struct {
	// NavigationTimeout bounds a page load.
	NavigationTimeout time.Duration
	// DetailTimeout bounds the wait for the event detail URL after a click.
	DetailTimeout time.Duration
	// ListingTimeout bounds the wait for event links to appear on a listing.
	ListingTimeout time.Duration
	// StepTimeout bounds waiting for a tab, toggle or navigation step element.
	StepTimeout time.Duration
	// SettleDelay is slept after opening an event page.
	SettleDelay time.Duration
	// ToggleSettle is slept after clicking a live tracker toggle.
	ToggleSettle time.Duration
	// TabSettle is slept after selecting a time window tab.
	TabSettle time.Duration
	// PanelProbe is how long to look for an already open tracker panel.
	PanelProbe time.Duration
	// WidgetTimeout bounds the wait for the tracker panel after opening it.
	WidgetTimeout time.Duration
	// IframeTimeout bounds the wait for the widget iframe inside the panel.
	IframeTimeout time.Duration
	// PollAttempts is the number of src reads before giving up.
	PollAttempts int
	// PollInterval separates src reads.
	PollInterval time.Duration
	// WaitInterval is the polling period of every visibility wait.
	WaitInterval time.Duration
	// MaxPerWindow caps events inspected per time window.
	MaxPerWindow int
	// MaxPerRun caps events inspected per category run.
	MaxPerRun int
}

// DefaultTiming is the profile for interactive and scheduled runs.
func DefaultTiming() Timing {
	return Timing{
		NavigationTimeout: 30 * time.Second,
		DetailTimeout:     10 * time.Second,
		ListingTimeout:    10 * time.Second,
		StepTimeout:       5 * time.Second,
		SettleDelay:       3 * time.Second,
		ToggleSettle:      2 * time.Second,
		TabSettle:         3 * time.Second,
		PanelProbe:        2 * time.Second,
		WidgetTimeout:     15 * time.Second,
		IframeTimeout:     10 * time.Second,
		PollAttempts:      8,
		PollInterval:      time.Second,
		WaitInterval:      250 * time.Millisecond,
		MaxPerWindow:      10,
		MaxPerRun:         40,
	}
}

// CITiming trades coverage for run time so a pipeline job finishes.
func CITiming() Timing {
	t := DefaultTiming()
	t.SettleDelay = 1500 * time.Millisecond
	t.ToggleSettle = time.Second
	t.TabSettle = 2 * time.Second
	t.WidgetTimeout = 8 * time.Second
	t.IframeTimeout = 6 * time.Second
	t.PollAttempts = 5
	t.MaxPerRun = 15

	return t
}

// Profile returns the CI or default profile.
func Profile(ci bool) Timing {
	if ci {
		return CITiming()
	}

	return DefaultTiming()
}

// WithOverrides replaces the polling and cap values that are set (non-zero).
func (t Timing) WithOverrides(pollAttempts int, pollInterval time.Duration, maxPerRun, maxPerWindow int) Timing {
	if pollAttempts > 0 {
		t.PollAttempts = pollAttempts
	}

	if pollInterval > 0 {
		t.PollInterval = pollInterval
	}

	if maxPerRun > 0 {
		t.MaxPerRun = maxPerRun
	}

	if maxPerWindow > 0 {
		t.MaxPerWindow = maxPerWindow
	}

	return t
}
