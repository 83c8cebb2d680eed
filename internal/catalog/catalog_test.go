package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethpandaops/tracker-probe/internal/results"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalSite = `
sites:
  - name: example
    base_url: https://example.com
    trusted_hosts: [widgets.example.net]
    locators:
      event_link: {css: 'a.event'}
      detail_pattern: /match/
      panel: {css: .tracker}
      widget: {css: .tracker iframe}
      toggles:
        - {css: h4, text: Live tracker}
      window_tab: {css: .tab}
    categories:
      - name: tennis
        listing_url: https://example.com/tennis
`

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"planetsportbet", "starsports", "teamtalk"}, c.SiteNames())

	psg, err := c.Site("PlanetSportBet")
	require.NoError(t, err)
	assert.Equal(t, []results.Category{results.CategoryFootball, results.CategoryTennis, results.CategoryCricket, results.CategoryNFL}, psg.CategoryNames())
	assert.True(t, psg.Trusted("https://widgets.thesports01.com/en/3d/football?profile=x"))

	football, err := psg.Category(results.CategoryFootball)
	require.NoError(t, err)
	assert.Equal(t, []string{"Today", "Tomorrow", "Weekend", "Current Week"}, football.TimeWindows(false))
	assert.Equal(t, []string{"Today", "Tomorrow"}, football.TimeWindows(true))
	assert.Equal(t, "Football (PSG)", football.SportLabel())

	teamtalk, err := c.Site("teamtalk")
	require.NoError(t, err)
	assert.Empty(t, teamtalk.Categories)
	assert.Len(t, teamtalk.Links.Pages, 2)
}

func TestClassify(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	psg, err := c.Site("planetsportbet")
	require.NoError(t, err)

	football, err := psg.Category(results.CategoryFootball)
	require.NoError(t, err)

	cricket, err := psg.Category(results.CategoryCricket)
	require.NoError(t, err)

	tests := []struct {
		name     string
		category *Category
		title    string
		want     string
	}{
		{name: "epl", category: football, title: "Arsenal v Chelsea Premier League 20:00", want: "English Premier League"},
		{name: "europa before euro", category: football, title: "Roma v Porto Europa League", want: "UEFA Europa League"},
		{name: "unmatched", category: football, title: "Local derby", want: DefaultCompetition},
		{name: "ipl", category: cricket, title: "CSK v MI IPL", want: "Indian Premier League"},
		{name: "odi world cup before odi", category: cricket, title: "IND v AUS ODI World Cup", want: "ODI World Cup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.category.Classify(tt.title))
		})
	}
}

func TestSiteHelpers(t *testing.T) {
	c, err := Parse([]byte(minimalSite))
	require.NoError(t, err)

	site, err := c.Site("example")
	require.NoError(t, err)

	tennis, err := site.Category(results.CategoryTennis)
	require.NoError(t, err)
	assert.Equal(t, results.CategoryTennis, tennis.Name, "category name is normalized")
	assert.Equal(t, []string{AllWindows}, tennis.TimeWindows(true))
	assert.Equal(t, "Tennis", tennis.SportLabel())
	assert.Equal(t, "a.event", site.EventLinkFor(tennis).CSS)

	tab, ok := site.TabFor("Today")
	require.True(t, ok)
	assert.Equal(t, ".tab", tab.CSS)
	assert.Equal(t, "Today", tab.Text)
	assert.True(t, tab.Exact)

	_, ok = site.TabFor(AllWindows)
	assert.False(t, ok)

	assert.True(t, site.IsDetailURL("https://example.com/match/42"))
	assert.False(t, site.IsDetailURL("https://example.com/tennis"))
	assert.False(t, site.Trusted(""))
	assert.Equal(t, "example", site.Label())

	_, err = site.Category(results.CategoryNFL)
	require.ErrorIs(t, err, ErrUnknownCategory)

	_, err = c.Site("nope")
	require.ErrorIs(t, err, ErrUnknownSite)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "no sites", yaml: "sites: []"},
		{name: "missing name", yaml: "sites:\n  - base_url: https://x"},
		{name: "nothing to check", yaml: "sites:\n  - name: x\n    base_url: https://x"},
		{
			name: "unknown category",
			yaml: `
sites:
  - name: x
    base_url: https://x
    trusted_hosts: [w]
    locators: {event_link: {css: a}, detail_pattern: /e/, panel: {css: p}, widget: {css: i}, toggles: [{css: t}]}
    categories: [{name: darts, listing_url: https://x}]`,
		},
		{
			name: "missing widget",
			yaml: `
sites:
  - name: x
    base_url: https://x
    trusted_hosts: [w]
    locators: {event_link: {css: a}, detail_pattern: /e/, panel: {css: p}, toggles: [{css: t}]}
    categories: [{name: nfl, listing_url: https://x}]`,
		},
		{
			name: "duplicate category",
			yaml: `
sites:
  - name: x
    base_url: https://x
    trusted_hosts: [w]
    locators: {event_link: {css: a}, detail_pattern: /e/, panel: {css: p}, widget: {css: i}, toggles: [{css: t}]}
    categories: [{name: nfl, listing_url: https://x}, {name: NFL, listing_url: https://y}]`,
		},
		{name: "bad yaml", yaml: "sites: [}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	log := logrus.New()

	t.Run("missing file falls back to default", func(t *testing.T) {
		c, err := Load(log, filepath.Join(t.TempDir(), "catalog.yaml"))
		require.NoError(t, err)
		assert.Len(t, c.Sites, 3)
	})

	t.Run("file overrides default", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte(minimalSite), 0o600))

		c, err := Load(log, path)
		require.NoError(t, err)
		assert.Equal(t, []string{"example"}, c.SiteNames())
	})

	t.Run("invalid file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sites: []"), 0o600))

		_, err := Load(log, path)
		require.ErrorIs(t, err, ErrInvalidCatalog)
	})
}
