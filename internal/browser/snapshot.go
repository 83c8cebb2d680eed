package browser

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// Snapshot is an offline Page backed by saved HTML documents, keyed by URL
// path. No scripts run. Clicking follows href or data-href, and an element
// with data-reveal="<css>" removes the hidden attribute from its targets.
type Snapshot struct {
	log    logrus.FieldLogger
	routes map[string]string

	mu      sync.Mutex
	current *url.URL
	doc     *goquery.Document
}

var _ Page = (*Snapshot)(nil)

// NewSnapshot returns a snapshot page serving routes (URL or path to HTML).
func NewSnapshot(log logrus.FieldLogger, routes map[string]string) *Snapshot {
	normalized := make(map[string]string, len(routes))
	for key, html := range routes {
		normalized[routeKey(key)] = html
	}

	return &Snapshot{
		log:    log.WithField("component", "snapshot"),
		routes: normalized,
	}
}

// LoadSnapshotDir builds routes from the .html files under dir:
// index.html serves "/" and sport/football.html serves "/sport/football".
func LoadSnapshotDir(dir string) (map[string]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot engine requires a snapshot directory")
	}

	routes := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || filepath.Ext(path) != ".html" {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		// #nosec G304 -- walking an operator supplied directory
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		route := "/" + strings.TrimSuffix(filepath.ToSlash(rel), ".html")
		route = strings.TrimSuffix(route, "/index")
		if route == "" {
			route = "/"
		}

		routes[route] = string(data)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading snapshots from %s: %w", dir, err)
	}

	return routes, nil
}

func routeKey(raw string) string {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}

	if path == "" {
		return "/"
	}

	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	return path
}

func (s *Snapshot) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.navigate(rawURL)
}

func (s *Snapshot) navigate(rawURL string) error {
	target, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing url %q: %w", rawURL, err)
	}

	if s.current != nil {
		target = s.current.ResolveReference(target)
	}

	html, ok := s.routes[routeKey(target.String())]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRoute, target)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parsing snapshot for %s: %w", target, err)
	}

	s.current = target
	s.doc = doc

	s.log.WithField("url", target.String()).Debug("loaded snapshot")

	return nil
}

func (s *Snapshot) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return "about:blank", nil
	}

	return s.current.String(), nil
}

// find returns all matches of loc. The caller holds mu.
func (s *Snapshot) find(loc Locator) *goquery.Selection {
	if s.doc == nil {
		return &goquery.Selection{}
	}

	return s.doc.Find(loc.CSS).FilterFunction(func(_ int, el *goquery.Selection) bool {
		return loc.MatchText(el.Text())
	})
}

func (s *Snapshot) nth(loc Locator, index int) (*goquery.Selection, error) {
	matches := s.find(loc)
	if index < 0 || index >= matches.Length() {
		return nil, fmt.Errorf("%w: %s[%d]", ErrNoSuchElement, loc, index)
	}

	return matches.Eq(index), nil
}

func (s *Snapshot) Count(ctx context.Context, loc Locator) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.find(loc).Length(), nil
}

func (s *Snapshot) Text(ctx context.Context, loc Locator, index int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.nth(loc, index)
	if err != nil {
		return "", err
	}

	return strings.Join(strings.Fields(el.Text()), " "), nil
}

func (s *Snapshot) Attribute(ctx context.Context, loc Locator, index int, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.nth(loc, index)
	if err != nil {
		return "", err
	}

	return el.AttrOr(name, ""), nil
}

func (s *Snapshot) Visible(ctx context.Context, loc Locator, index int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.nth(loc, index)
	if err != nil {
		return false, err
	}

	return !hidden(el) && !hidden(el.Parents()), nil
}

// hidden reports whether any element of sel is hidden by attribute or inline style.
func hidden(sel *goquery.Selection) bool {
	found := false

	sel.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if _, ok := el.Attr("hidden"); ok {
			found = true
			return false
		}

		style := strings.ReplaceAll(strings.ToLower(el.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			found = true
			return false
		}

		return true
	})

	return found
}

func (s *Snapshot) Click(ctx context.Context, loc Locator, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.nth(loc, index)
	if err != nil {
		return err
	}

	if reveal, ok := el.Attr("data-reveal"); ok {
		s.doc.Find(reveal).RemoveAttr("hidden")
	}

	href, ok := el.Attr("data-href")
	if !ok {
		link := el.Closest("a[href]")
		href, ok = link.Attr("href")
	}

	if !ok || href == "" || strings.HasPrefix(href, "#") {
		return nil
	}

	return s.navigate(href)
}

func (s *Snapshot) Links(ctx context.Context, loc Locator) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var hrefs []string

	s.find(loc).Each(func(_ int, el *goquery.Selection) {
		href, ok := el.Attr("href")
		if !ok || href == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		if s.current != nil {
			ref = s.current.ResolveReference(ref)
		}

		hrefs = append(hrefs, ref.String())
	})

	return hrefs, nil
}

func (s *Snapshot) Close() error {
	return nil
}
