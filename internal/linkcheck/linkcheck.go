// Package linkcheck collects navigation links from a page and verifies that
// they resolve.
package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ethpandaops/tracker-probe/internal/browser"
	"github.com/ethpandaops/tracker-probe/internal/catalog"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var errNoPages = errors.New("site has no link check pages")

const (
	defaultWorkers = 4
	defaultTimeout = 15 * time.Second
)

// Result is the outcome of fetching one link. Status is -1 when the request
// itself failed.
type Result struct {
	URL      string `json:"url"`
	Page     string `json:"page"`
	Internal bool   `json:"internal"`
	Status   int    `json:"status"`
	Location string `json:"location,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Broken reports a status of 400 or above, or a failed request.
func (r Result) Broken() bool {
	return r.Status < 0 || r.Status >= http.StatusBadRequest
}

// Redirect reports a 3xx response.
func (r Result) Redirect() bool {
	return r.Status >= http.StatusMultipleChoices && r.Status < http.StatusBadRequest
}

// Report collects the results for one site.
type Report struct {
	Site    string   `json:"site"`
	Results []Result `json:"results"`
}

// Failures returns broken internal links. Broken external links are only
// warnings.
func (r *Report) Failures() []Result {
	var out []Result

	for _, res := range r.Results {
		if res.Internal && res.Broken() {
			out = append(out, res)
		}
	}

	return out
}

// Warnings returns broken external links.
func (r *Report) Warnings() []Result {
	var out []Result

	for _, res := range r.Results {
		if !res.Internal && res.Broken() {
			out = append(out, res)
		}
	}

	return out
}

// Redirects returns every link answered with a 3xx.
func (r *Report) Redirects() []Result {
	var out []Result

	for _, res := range r.Results {
		if res.Redirect() {
			out = append(out, res)
		}
	}

	return out
}

// Options configures a Checker.
type Options struct {
	Client    *http.Client
	Limiter   *rate.Limiter
	Workers   int
	UserAgent string
}

// Checker fetches links without following redirects.
type Checker struct {
	log     logrus.FieldLogger
	client  *http.Client
	limiter *rate.Limiter
	workers int
	agent   string
}

// New creates a Checker.
func New(log logrus.FieldLogger, opts Options) *Checker {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	// Redirects are reported, not followed.
	noFollow := *client
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}

	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	if opts.UserAgent == "" {
		opts.UserAgent = browser.DefaultUserAgent
	}

	return &Checker{
		log:     log.WithField("component", "linkcheck"),
		client:  &noFollow,
		limiter: opts.Limiter,
		workers: opts.Workers,
		agent:   opts.UserAgent,
	}
}

// Run visits every configured page of site, collects its links and checks
// them. pages overrides the site's configured pages when non-empty.
func (c *Checker) Run(ctx context.Context, page browser.Page, site *catalog.Site, pages []string) (*Report, error) {
	if len(pages) == 0 {
		pages = site.Links.Pages
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s", errNoPages, site.Name)
	}

	report := &Report{Site: site.Name}

	for _, p := range pages {
		links, err := c.Collect(ctx, page, site.Links.Locators, p)
		if err != nil {
			return nil, err
		}

		report.Results = append(report.Results, c.Check(ctx, site, p, links)...)
	}

	return report, nil
}

// Collect navigates to pageURL and returns the distinct, absolute http(s)
// links matched by locators, sorted.
func (c *Checker) Collect(ctx context.Context, page browser.Page, locators []browser.Locator, pageURL string) ([]string, error) {
	if err := page.Navigate(ctx, pageURL); err != nil {
		return nil, fmt.Errorf("opening %s: %w", pageURL, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	seen := make(map[string]struct{})

	for _, loc := range locators {
		hrefs, err := page.Links(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("reading links %s: %w", loc, err)
		}

		for _, href := range hrefs {
			if u, ok := Normalize(base, href); ok {
				seen[u] = struct{}{}
			}
		}
	}

	links := make([]string, 0, len(seen))
	for u := range seen {
		links = append(links, u)
	}

	sort.Strings(links)

	c.log.WithFields(logrus.Fields{
		"page":  pageURL,
		"links": len(links),
	}).Debug("Collected links")

	return links, nil
}

// Normalize resolves href against base. It rejects empty hrefs, non-http
// schemes such as javascript:, mailto: and tel:, and drops fragments.
func Normalize(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	u.Fragment = ""

	return u.String(), true
}

// Internal reports whether link belongs to the site, ignoring a leading
// "www.".
func Internal(site *catalog.Site, link string) bool {
	base, err := url.Parse(site.BaseURL)
	if err != nil {
		return false
	}

	u, err := url.Parse(link)
	if err != nil {
		return false
	}

	return strings.EqualFold(bareHost(base.Hostname()), bareHost(u.Hostname()))
}

func bareHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(h), "www.")
}

// Check fetches links in parallel. Results keep the order of links.
func (c *Checker) Check(ctx context.Context, site *catalog.Site, pageURL string, links []string) []Result {
	out := make([]Result, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, link := range links {
		g.Go(func() error {
			out[i] = c.fetch(gctx, link)
			out[i].Page = pageURL
			out[i].Internal = Internal(site, link)

			return nil
		})
	}

	_ = g.Wait()

	for _, r := range out {
		log := c.log.WithFields(logrus.Fields{"url": r.URL, "status": r.Status})

		switch {
		case r.Broken() && r.Internal:
			log.Error("Broken internal link")
		case r.Broken():
			log.Warn("Broken external link")
		case r.Redirect():
			log.WithField("location", r.Location).Info("Link redirects")
		}
	}

	return out
}

func (c *Checker) fetch(ctx context.Context, link string) Result {
	res := Result{URL: link, Status: -1}

	if err := c.limiter.Wait(ctx); err != nil {
		res.Error = err.Error()
		return res
	}

	resp, err := c.do(ctx, http.MethodHead, link)
	if err == nil && resp.StatusCode == http.StatusMethodNotAllowed {
		resp, err = c.do(ctx, http.MethodGet, link)
	}

	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Status = resp.StatusCode
	res.Location = resp.Header.Get("Location")

	return res
}

func (c *Checker) do(ctx context.Context, method, link string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, link, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("User-Agent", c.agent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	_ = resp.Body.Close()

	return resp, nil
}
