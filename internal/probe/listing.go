package probe

import (
	"github.com/ethpandaops/tracker-probe/internal/browser"
	"github.com/ethpandaops/tracker-probe/internal/catalog"
)

// Handle addresses one event link on a listing page at a given epoch.
type Handle struct {
	Index  int
	Title  string
	Window string
	Epoch  uint64

	locator  browser.Locator
	category *catalog.Category
}

// Listing is a forward-only iterator over the sampled events of one time
// window. Handles carry the epoch the listing was bound to; once the page
// navigates they are stale until the listing is rebound by ReturnToListing.
type Listing struct {
	Category *catalog.Category
	Window   string
	Found    int

	locator browser.Locator
	titles  []string
	limit   int
	epoch   uint64
	next    int
}

// Len is the number of events the listing will yield in total.
func (l *Listing) Len() int {
	return min(l.limit, len(l.titles))
}

// Remaining is the number of handles not yet yielded.
func (l *Listing) Remaining() int {
	return max(l.Len()-l.next, 0)
}

// Next yields the next handle, or false when the listing is exhausted.
func (l *Listing) Next() (Handle, bool) {
	if l.next >= l.Len() {
		return Handle{}, false
	}

	h := Handle{
		Index:  l.next,
		Title:  l.titles[l.next],
		Window: l.Window,
		Epoch:  l.epoch,

		locator:  l.locator,
		category: l.Category,
	}
	l.next++

	return h, true
}

// rebind attaches the listing to a new page epoch. A shorter page truncates
// the remaining handles.
func (l *Listing) rebind(epoch uint64, titles []string) {
	l.epoch = epoch

	if len(titles) < len(l.titles) {
		l.titles = l.titles[:len(titles)]
	}

	for i := l.next; i < len(l.titles); i++ {
		l.titles[i] = titles[i]
	}
}
