package probe

import (
	"errors"

	"github.com/ethpandaops/tracker-probe/internal/results"
)

var (
	// ErrNavigation means a page could not be reached or the expected URL never appeared.
	ErrNavigation = errors.New("navigation failed")
	// ErrElementNotFound means a required element did not show up in time.
	ErrElementNotFound = errors.New("element not found")
	// ErrWidgetValidation means the widget iframe did not match the trusted host or was hidden.
	ErrWidgetValidation = errors.New("widget validation failed")
	// ErrTabNotFound means a time window tab is missing from the listing.
	ErrTabNotFound = errors.New("time window tab not found")
	// ErrStaleHandle means the page moved on since the handle was enumerated.
	ErrStaleHandle = errors.New("stale event handle")
)

// outcomeFor maps an inspection error to its outcome. Missing elements and
// widget mismatches are site failures; everything else is a probe error.
func outcomeFor(err error) results.Outcome {
	switch {
	case err == nil:
		return results.OutcomePass
	case errors.Is(err, ErrElementNotFound), errors.Is(err, ErrWidgetValidation):
		return results.OutcomeFail
	default:
		return results.OutcomeError
	}
}
