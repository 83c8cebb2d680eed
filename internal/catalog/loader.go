package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/ethpandaops/tracker-probe/internal/results"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownSite is returned when a site is not in the catalog.
	ErrUnknownSite = errors.New("unknown site")
	// ErrUnknownCategory is returned when a site has no such category.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrInvalidCatalog wraps every validation failure.
	ErrInvalidCatalog = errors.New("invalid catalog")

	errNoSites            = errors.New("no sites defined")
	errSiteNameRequired   = errors.New("site name is required")
	errDuplicateSite      = errors.New("duplicate site")
	errBaseURLRequired    = errors.New("base_url is required")
	errNoTrustedHosts     = errors.New("at least one trusted host is required")
	errMissingLocator     = errors.New("missing locator")
	errNoToggles          = errors.New("at least one live tracker toggle is required")
	errNothingToCheck     = errors.New("site defines neither categories nor link pages")
	errDuplicateCategory  = errors.New("duplicate category")
	errListingURLRequired = errors.New("listing_url is required")
)

//go:embed default.yaml
var defaultCatalog []byte

// Load reads the catalog at path. When path is empty or the file does not
// exist the embedded default catalog is used.
func Load(log logrus.FieldLogger, path string) (*Catalog, error) {
	log = log.WithField("component", "catalog")

	if path == "" {
		log.Debug("no catalog path set, using embedded default")
		return Parse(defaultCatalog)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: catalog path is operator supplied
	if errors.Is(err, os.ErrNotExist) {
		log.WithField("path", path).Info("catalog file not found, using embedded default")
		return Parse(defaultCatalog)
	}

	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", path, err)
	}

	log.WithFields(logrus.Fields{
		"path":  path,
		"sites": len(c.Sites),
	}).Debug("loaded catalog")

	return c, nil
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	if err := validate(&c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	return &c, nil
}

func validate(c *Catalog) error {
	if len(c.Sites) == 0 {
		return errNoSites
	}

	seen := make(map[string]bool, len(c.Sites))

	for i, s := range c.Sites {
		if s.Name == "" {
			return fmt.Errorf("%w at index %d", errSiteNameRequired, i)
		}

		if seen[s.Name] {
			return fmt.Errorf("%w: %s", errDuplicateSite, s.Name)
		}

		seen[s.Name] = true

		if err := validateSite(s); err != nil {
			return fmt.Errorf("site %s: %w", s.Name, err)
		}
	}

	return nil
}

func validateSite(s *Site) error {
	if s.BaseURL == "" {
		return errBaseURLRequired
	}

	if len(s.Categories) == 0 {
		if len(s.Links.Pages) == 0 {
			return errNothingToCheck
		}

		return nil
	}

	if len(s.TrustedHosts) == 0 {
		return errNoTrustedHosts
	}

	if s.Locators.Panel.IsZero() {
		return fmt.Errorf("%w: panel", errMissingLocator)
	}

	if s.Locators.Widget.IsZero() {
		return fmt.Errorf("%w: widget", errMissingLocator)
	}

	if s.Locators.DetailPattern == "" {
		return fmt.Errorf("%w: detail_pattern", errMissingLocator)
	}

	if len(s.Locators.Toggles) == 0 {
		return errNoToggles
	}

	seen := make(map[results.Category]bool, len(s.Categories))

	for _, c := range s.Categories {
		name, err := results.ParseCategory(string(c.Name))
		if err != nil {
			return err
		}

		c.Name = name

		if seen[name] {
			return fmt.Errorf("%w: %s", errDuplicateCategory, name)
		}

		seen[name] = true

		if c.ListingURL == "" {
			return fmt.Errorf("%w: %s", errListingURLRequired, name)
		}

		if c.EventLink.IsZero() && s.Locators.EventLink.IsZero() {
			return fmt.Errorf("%w: event_link for %s", errMissingLocator, name)
		}
	}

	return nil
}
