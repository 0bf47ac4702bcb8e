// Package venue defines core types shared across the scraper subsystems.
package venue

import (
	"errors"
	"net/http"
	"time"
)

// Status represents the lifecycle state of a scraping task.
type Status string

// Task status values persisted in the task store.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusReady, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

var (
	// ErrTaskNotFound is returned by stores when no task row matches an id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskFinalized is returned when a write targets a task that already
	// reached a terminal state or is no longer in the expected state.
	ErrTaskFinalized = errors.New("task already finalized")
)

// Task is one request to scrape a venue page for a space.
type Task struct {
	ID           string     `json:"id"`
	VenueURL     string     `json:"venue_url"`
	SpaceID      int64      `json:"space_id"`
	Status       Status     `json:"status"`
	CancelFlag   bool       `json:"cancel_flag"`
	VenueData    *Record    `json:"venue_data,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// Location is the free-form address breakdown of a venue.
type Location struct {
	City  string `json:"city"`
	Area  string `json:"area"`
	State string `json:"state"`
}

// GuestCapacity holds seated and standing headcounts.
type GuestCapacity struct {
	Seated   *int `json:"seated"`
	Floating *int `json:"floating"`
}

// PricePerPlate holds starting catering prices.
type PricePerPlate struct {
	Veg    *float64 `json:"veg"`
	NonVeg *float64 `json:"non_veg"`
}

// Record is the normalized structured description of a venue. Every field is
// always present: absent scalars are nil, absent lists are empty.
type Record struct {
	Name            string        `json:"name"`
	Location        Location      `json:"location"`
	Rating          *string       `json:"rating"`
	GuestCapacity   GuestCapacity `json:"guest_capacity"`
	PricePerPlate   PricePerPlate `json:"price_per_plate"`
	VenueType       []string      `json:"venue_type"`
	SpacesAvailable []string      `json:"spaces_available"`
	RoomsAvailable  *int          `json:"rooms_available"`
	CoverImageURLs  []string      `json:"cover_image_urls"`
	PhoneNumber     *string       `json:"phone_number"`
}

// PageMetadata carries the head-level descriptors of a scraped page.
type PageMetadata struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	OGTitle       string `json:"og_title"`
	OGDescription string `json:"og_description"`
	OGImage       string `json:"og_image"`
}

// ScrapedContent is the raw extraction of a single page.
type ScrapedContent struct {
	URL      string       `json:"url"`
	Text     string       `json:"text"`
	Images   []string     `json:"images"`
	Metadata PageMetadata `json:"metadata"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	TaskID        string
	URL           string
	Headers       http.Header
	UseHeadless   bool
	RespectRobots bool
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Event is published after a task reaches a terminal state.
type Event struct {
	TaskID      string    `json:"task_id"`
	Status      Status    `json:"status"`
	VenueItemID string    `json:"venue_item_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
