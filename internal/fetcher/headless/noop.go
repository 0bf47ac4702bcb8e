package headless

import (
	"context"
	"errors"

	"github.com/JakeFAU/venue-scraper/internal/venue"
)

// ErrDisabled is returned by Noop.
var ErrDisabled = errors.New("headless fetcher not configured")

// Noop stands in for the browser when headless rendering is disabled, so the
// scraper keeps the probe response.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns an error since this is a stub implementation.
func (Noop) Fetch(_ context.Context, _ venue.FetchRequest) (venue.FetchResponse, error) {
	return venue.FetchResponse{}, ErrDisabled
}
