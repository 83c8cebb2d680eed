// Package catalog describes the sites under test: where their listings live,
// how their pages are shaped, and which widget hosts are trusted.
package catalog

import (
	"fmt"
	"strings"

	"github.com/ethpandaops/tracker-probe/internal/browser"
	"github.com/ethpandaops/tracker-probe/internal/results"
)

// DefaultCompetition is assigned when no keyword matches an event title.
const DefaultCompetition = "Other Competition"

// AllWindows is the pseudo window used by categories without time tabs.
const AllWindows = "All"

// Catalog is the full table of sites.
type Catalog struct {
	Sites []*Site `yaml:"sites"`
}

// Site is one website and the locators shared by its categories.
type Site struct {
	Name         string            `yaml:"name"`
	DisplayName  string            `yaml:"display_name"`
	BaseURL      string            `yaml:"base_url"`
	TrustedHosts []string          `yaml:"trusted_hosts"`
	Landing      []browser.Locator `yaml:"landing"`
	Locators     Locators          `yaml:"locators"`
	Links        LinkCheck         `yaml:"links"`
	Categories   []*Category       `yaml:"categories"`
}

// Locators are the page elements the probe interacts with.
type Locators struct {
	EventLink     browser.Locator   `yaml:"event_link"`
	DetailPattern string            `yaml:"detail_pattern"`
	Panel         browser.Locator   `yaml:"panel"`
	Widget        browser.Locator   `yaml:"widget"`
	Toggles       []browser.Locator `yaml:"toggles"`
	WindowTab     browser.Locator   `yaml:"window_tab"`
	NoEvents      browser.Locator   `yaml:"no_events"`
}

// LinkCheck lists the pages and link locators checked by the links command.
type LinkCheck struct {
	Pages    []string          `yaml:"pages"`
	Locators []browser.Locator `yaml:"locators"`
}

// Category is one sport on a site.
type Category struct {
	Name         results.Category  `yaml:"name"`
	Sport        string            `yaml:"sport"`
	TestName     string            `yaml:"test_name"`
	ListingURL   string            `yaml:"listing_url"`
	Steps        []browser.Locator `yaml:"steps"`
	EventLink    browser.Locator   `yaml:"event_link"`
	Windows      []string          `yaml:"windows"`
	CIWindows    []string          `yaml:"ci_windows"`
	MaxPerWindow int               `yaml:"max_per_window"`
	Competitions []Competition     `yaml:"competitions"`
}

// Competition maps title keywords to a competition name.
type Competition struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Site returns the named site, matched case-insensitively.
func (c *Catalog) Site(name string) (*Site, error) {
	for _, s := range c.Sites {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownSite, name)
}

// SiteNames lists the configured site names in catalog order.
func (c *Catalog) SiteNames() []string {
	names := make([]string, 0, len(c.Sites))
	for _, s := range c.Sites {
		names = append(names, s.Name)
	}

	return names
}

// Label is the display name, falling back to the name.
func (s *Site) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}

	return s.Name
}

// Category returns the site's configuration for a category.
func (s *Site) Category(name results.Category) (*Category, error) {
	for _, c := range s.Categories {
		if c.Name == name {
			return c, nil
		}
	}

	return nil, fmt.Errorf("%w: %s on %s", ErrUnknownCategory, name, s.Name)
}

// CategoryNames lists the categories configured for the site.
func (s *Site) CategoryNames() []results.Category {
	names := make([]results.Category, 0, len(s.Categories))
	for _, c := range s.Categories {
		names = append(names, c.Name)
	}

	return names
}

// Trusted reports whether src references one of the trusted widget hosts.
func (s *Site) Trusted(src string) bool {
	if src == "" {
		return false
	}

	for _, host := range s.TrustedHosts {
		if strings.Contains(src, host) {
			return true
		}
	}

	return false
}

// IsDetailURL reports whether u looks like an event detail page.
func (s *Site) IsDetailURL(u string) bool {
	return strings.Contains(u, s.Locators.DetailPattern)
}

// EventLinkFor returns the category's event link locator or the site default.
func (s *Site) EventLinkFor(c *Category) browser.Locator {
	if !c.EventLink.IsZero() {
		return c.EventLink
	}

	return s.Locators.EventLink
}

// TabFor returns the locator of a time window tab, or false when the
// category has no tabs.
func (s *Site) TabFor(window string) (browser.Locator, bool) {
	if window == AllWindows || s.Locators.WindowTab.IsZero() {
		return browser.Locator{}, false
	}

	tab := s.Locators.WindowTab
	tab.Text = window
	tab.Exact = true

	return tab, true
}

// TimeWindows returns the windows to visit. The CI list applies when ci is
// set and the category defines one.
func (c *Category) TimeWindows(ci bool) []string {
	if ci && len(c.CIWindows) > 0 {
		return c.CIWindows
	}

	if len(c.Windows) == 0 {
		return []string{AllWindows}
	}

	return c.Windows
}

// SportLabel is the artifact sport string, e.g. "Football (PSG)".
func (c *Category) SportLabel() string {
	if c.Sport != "" {
		return c.Sport
	}

	return string(c.Name)
}

// Classify returns the first competition whose keyword occurs in title.
func (c *Category) Classify(title string) string {
	for _, comp := range c.Competitions {
		for _, kw := range comp.Keywords {
			if kw != "" && strings.Contains(title, kw) {
				return comp.Name
			}
		}
	}

	return DefaultCompetition
}
