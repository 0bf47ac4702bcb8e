package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/venue-scraper/internal/venue"
)

// TaskStore keeps scraping tasks and venue items in maps guarded by a mutex.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]venue.Task
	items map[string]venue.Item
	clock venue.Clock
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// NewTaskStore constructs an empty store. A nil clock uses wall time.
func NewTaskStore(clock venue.Clock) *TaskStore {
	if clock == nil {
		clock = utcClock{}
	}
	return &TaskStore{
		tasks: make(map[string]venue.Task),
		items: make(map[string]venue.Item),
		clock: clock,
	}
}

// Create inserts a pending task and returns it with defaults filled in.
func (s *TaskStore) Create(_ context.Context, task venue.Task) (venue.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if _, exists := s.tasks[task.ID]; exists {
		return venue.Task{}, fmt.Errorf("task %s already exists", task.ID)
	}
	now := s.clock.Now()
	if task.Status == "" {
		task.Status = venue.StatusPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	s.tasks[task.ID] = task
	return task, nil
}

// FindPending returns pending, non-canceled tasks ordered by creation time.
func (s *TaskStore) FindPending(_ context.Context, limit int) ([]venue.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]venue.Task, 0)
	for _, task := range s.tasks {
		if task.Status == venue.StatusPending && !task.CancelFlag {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetTask returns a copy of the task, or nil when the id is unknown.
func (s *TaskStore) GetTask(_ context.Context, id string) (*venue.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

// ClaimTask moves a pending task to processing.
func (s *TaskStore) ClaimTask(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Status != venue.StatusPending {
		return false, nil
	}
	task.Status = venue.StatusProcessing
	task.UpdatedAt = s.clock.Now()
	s.tasks[id] = task
	return true, nil
}

// UpdateStatus applies a partial update. Terminal tasks are never rewritten.
func (s *TaskStore) UpdateStatus(
	_ context.Context,
	id string,
	status venue.Status,
	record *venue.Record,
	errMsg *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("update task %s: %w", id, venue.ErrTaskNotFound)
	}
	if task.Status.Terminal() {
		return fmt.Errorf("update task %s: %w", id, venue.ErrTaskFinalized)
	}
	now := s.clock.Now()
	task.Status = status
	task.UpdatedAt = now
	if record != nil {
		rec := *record
		task.VenueData = &rec
	}
	if errMsg != nil {
		msg := *errMsg
		task.ErrorMessage = &msg
	}
	if status.Terminal() {
		task.ProcessedAt = pointerTime(now)
	}
	s.tasks[id] = task
	return nil
}

// IsCanceled reports the cancel flag; unknown ids read as not canceled.
func (s *TaskStore) IsCanceled(_ context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks[id].CancelFlag
}

// CompleteTask marks a processing task ready and stores its item in one step.
func (s *TaskStore) CompleteTask(_ context.Context, id string, record venue.Record, item venue.Item) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return "", fmt.Errorf("complete task %s: %w", id, venue.ErrTaskNotFound)
	}
	if task.Status != venue.StatusProcessing {
		return "", fmt.Errorf("complete task %s: %w", id, venue.ErrTaskFinalized)
	}
	if _, exists := s.items[item.ID]; exists {
		return "", fmt.Errorf("venue item %s already exists", item.ID)
	}
	now := s.clock.Now()
	task.Status = venue.StatusReady
	task.VenueData = &record
	task.UpdatedAt = now
	task.ProcessedAt = pointerTime(now)
	s.tasks[id] = task
	s.items[item.ID] = item
	return item.ID, nil
}

// RequestCancel raises the cancel flag on a task.
func (s *TaskStore) RequestCancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("cancel task %s: %w", id, venue.ErrTaskNotFound)
	}
	task.CancelFlag = true
	task.UpdatedAt = s.clock.Now()
	s.tasks[id] = task
	return nil
}

// Items returns the stored venue items for a space.
func (s *TaskStore) Items(spaceID int64) []venue.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]venue.Item, 0)
	for _, item := range s.items {
		if item.SpaceID == spaceID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
