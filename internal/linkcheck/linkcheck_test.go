package linkcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ethpandaops/tracker-probe/internal/browser"
	"github.com/ethpandaops/tracker-probe/internal/catalog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/get-only", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func pageHTML(external string) string {
	return `<html><body>
<header><nav>
<a href="/ok">Home</a>
<a href="/ok#latest">Latest</a>
<a href="/moved">Moved</a>
<a href="/get-only">Get only</a>
<a href="/missing">Missing</a>
<a href="javascript:void(0)">Menu</a>
<a href="mailto:news@example.com">Mail</a>
<a href="tel:+440000">Call</a>
</nav></header>
<footer><a href="` + external + `">Partner</a></footer>
</body></html>`
}

func testSite(base string) *catalog.Site {
	return &catalog.Site{
		Name:    "newsdesk",
		BaseURL: base,
		Links: catalog.LinkCheck{
			Pages: []string{base + "/"},
			Locators: []browser.Locator{
				{CSS: "header nav a[href]"},
				{CSS: "footer a[href]"},
			},
		},
	}
}

func TestRun(t *testing.T) {
	srv := newServer(t)

	// Same server under another host name counts as external.
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	external := "http://localhost:" + u.Port() + "/partner-gone"

	log := logrus.New()
	page := browser.NewSnapshot(log, map[string]string{"/": pageHTML(external)})
	site := testSite(srv.URL)

	report, err := New(log, Options{Client: srv.Client()}).Run(context.Background(), page, site, nil)
	require.NoError(t, err)

	byPath := make(map[string]Result)
	for _, r := range report.Results {
		byPath[strings.TrimPrefix(r.URL, srv.URL)] = r
	}

	require.Len(t, report.Results, 5)
	assert.Equal(t, http.StatusOK, byPath["/ok"].Status)
	assert.Equal(t, http.StatusMovedPermanently, byPath["/moved"].Status)
	assert.Equal(t, "/ok", byPath["/moved"].Location)
	assert.Equal(t, http.StatusOK, byPath["/get-only"].Status)
	assert.Equal(t, http.StatusNotFound, byPath["/missing"].Status)
	assert.True(t, byPath["/missing"].Internal)
	assert.Equal(t, srv.URL+"/", byPath["/missing"].Page)

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, srv.URL+"/missing", failures[0].URL)

	warnings := report.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, external, warnings[0].URL)
	assert.False(t, warnings[0].Internal)

	redirects := report.Redirects()
	require.Len(t, redirects, 1)
	assert.Equal(t, srv.URL+"/moved", redirects[0].URL)
}

func TestRun_NoPages(t *testing.T) {
	site := &catalog.Site{Name: "empty", BaseURL: "https://example.com"}

	_, err := New(logrus.New(), Options{}).Run(context.Background(), browser.NewSnapshot(logrus.New(), nil), site, nil)
	require.ErrorIs(t, err, errNoPages)
}

func TestFetch_RequestFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	res := New(logrus.New(), Options{}).fetch(context.Background(), addr+"/gone")
	assert.Equal(t, -1, res.Status)
	assert.NotEmpty(t, res.Error)
	assert.True(t, res.Broken())
}

func TestNormalize(t *testing.T) {
	base, err := url.Parse("https://www.teamtalk.com/transfer-news")
	require.NoError(t, err)

	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{href: "/news", want: "https://www.teamtalk.com/news", ok: true},
		{href: "premier-league", want: "https://www.teamtalk.com/premier-league", ok: true},
		{href: "https://x.com/teamtalk#top", want: "https://x.com/teamtalk", ok: true},
		{href: "javascript:void(0)"},
		{href: "JavaScript:open()"},
		{href: "mailto:a@b.com"},
		{href: "tel:123"},
		{href: "#section"},
		{href: "  "},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			got, ok := Normalize(base, tt.href)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInternal(t *testing.T) {
	site := &catalog.Site{BaseURL: "https://www.teamtalk.com"}

	assert.True(t, Internal(site, "https://www.teamtalk.com/news"))
	assert.True(t, Internal(site, "https://teamtalk.com/news"))
	assert.True(t, Internal(site, "http://WWW.TeamTalk.com/"))
	assert.False(t, Internal(site, "https://www.planetsport.com/"))
	assert.False(t, Internal(site, "https://teamtalk.com.evil.test/"))
}
