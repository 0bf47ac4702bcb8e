package venue

import (
	"context"
	"io"
	"time"
)

// TaskStore persists tasks and the venue items derived from them.
type TaskStore interface {
	// FindPending returns up to limit pending, non-canceled tasks, oldest first.
	FindPending(ctx context.Context, limit int) ([]Task, error)
	// GetTask returns nil and no error when the id is unknown.
	GetTask(ctx context.Context, id string) (*Task, error)
	// ClaimTask moves a pending task to processing. It reports false when the
	// task was not pending.
	ClaimTask(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status Status, record *Record, errMsg *string) error
	// IsCanceled reports the cancel flag and treats store errors as false.
	IsCanceled(ctx context.Context, id string) bool
	// CompleteTask marks the task ready with its record and inserts the item
	// atomically, returning the item id.
	CompleteTask(ctx context.Context, id string, record Record, item Item) (string, error)
	// RequestCancel sets the cancel flag.
	RequestCancel(ctx context.Context, id string) error
}

// PageScraper fetches a page and extracts its text, images, and metadata.
type PageScraper interface {
	Scrape(ctx context.Context, url string) (ScrapedContent, error)
}

// RecordExtractor turns scraped content into a normalized record. A nil
// record with a nil error means nothing usable was extracted.
type RecordExtractor interface {
	Extract(ctx context.Context, content ScrapedContent) (*Record, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a headless fetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// Limiter paces outbound requests per domain.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Queue provides enqueue/dequeue semantics for task ids.
type Queue interface {
	Enqueue(ctx context.Context, taskID string) error
	Dequeue(ctx context.Context) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for snapshot naming.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
