package config

const (
	// DefaultCatalogPath is the site catalog file read when PROBE_CATALOG is unset.
	DefaultCatalogPath = "catalog.yaml"
	// DefaultOutputDir is where artifacts, reports and screenshots are written.
	DefaultOutputDir = "results"
	// DefaultEngine is the browser driver used when none is selected.
	DefaultEngine = "chromedp"
	// DefaultTimezone is used for mail subjects, report timestamps and schedules.
	DefaultTimezone = "Europe/London"
	// DefaultSubjectPrefix prefixes every report mail subject.
	DefaultSubjectPrefix = "Live Tracker"
	// DefaultHistoryDatabase is the ClickHouse database for run history.
	DefaultHistoryDatabase = "tracker_probe"
	// DefaultSchedule lists the wall-clock times scheduled runs start at.
	DefaultSchedule = "17:05,18:05,19:45,20:30"
	// DefaultScheduleCategories lists the categories a scheduled run covers.
	DefaultScheduleCategories = "NFL,Football"
	// ReportFileName is the rendered HTML report inside the output directory.
	ReportFileName = "report.html"
	// SummaryFileName is the JSON debug summary inside the output directory.
	SummaryFileName = "summary.json"
)
