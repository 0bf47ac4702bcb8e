// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/venue-scraper/internal/venue"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Default table names.
const (
	DefaultTaskTable = "venue_scraping_tasks"
	DefaultItemTable = "venue_items"
)

// Config controls the Postgres connection pool and table names.
type Config struct {
	DSN             string
	TaskTable       string
	ItemTable       string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// TaskStore persists scraping tasks and venue items in Postgres.
type TaskStore struct {
	pool      pool
	taskTable string
	itemTable string
}

// NewTaskStore connects a pgx pool using cfg.
func NewTaskStore(ctx context.Context, cfg Config) (*TaskStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewTaskStoreWithPool(p, cfg.TaskTable, cfg.ItemTable)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewTaskStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewTaskStoreWithPool(p pool, taskTable, itemTable string) (*TaskStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if taskTable == "" {
		taskTable = DefaultTaskTable
	}
	if itemTable == "" {
		itemTable = DefaultItemTable
	}
	for _, table := range []string{taskTable, itemTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &TaskStore{pool: p, taskTable: taskTable, itemTable: itemTable}, nil
}

// Close releases the underlying pool resources.
func (s *TaskStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const taskColumns = `id, venue_url, space_id, status, cancel_flag, venue_data, error_message, created_at, updated_at, processed_at`

// FindPending returns pending, non-canceled tasks, oldest first.
func (s *TaskStore) FindPending(ctx context.Context, limit int) ([]venue.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s
WHERE status = $1 AND cancel_flag = FALSE
ORDER BY created_at ASC
LIMIT $2`, taskColumns, s.taskTable)

	rows, err := s.pool.Query(ctx, query, string(venue.StatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("find pending tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]venue.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending tasks: %w", err)
	}
	return tasks, nil
}

// GetTask loads a task by id; it returns nil, nil when no row matches.
func (s *TaskStore) GetTask(ctx context.Context, id string) (*venue.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, taskColumns, s.taskTable)
	task, err := scanTask(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// ClaimTask moves a pending task to processing with a conditional update.
func (s *TaskStore) ClaimTask(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET status = $2, updated_at = NOW()
WHERE id = $1 AND status = $3`, s.taskTable)
	tag, err := s.pool.Exec(ctx, query, id, string(venue.StatusProcessing), string(venue.StatusPending))
	if err != nil {
		return false, fmt.Errorf("claim task %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateStatus applies a partial update to a non-terminal task. It returns
// venue.ErrTaskFinalized when no row matched, which covers unknown ids too.
func (s *TaskStore) UpdateStatus(
	ctx context.Context,
	id string,
	status venue.Status,
	record *venue.Record,
	errMsg *string,
) error {
	sets := []string{"status = $2", "updated_at = NOW()"}
	args := []any{id, string(status)}
	if record != nil {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal venue data: %w", err)
		}
		args = append(args, data)
		sets = append(sets, fmt.Sprintf("venue_data = $%d", len(args)))
	}
	if errMsg != nil {
		args = append(args, *errMsg)
		sets = append(sets, fmt.Sprintf("error_message = $%d", len(args)))
	}
	if status.Terminal() {
		sets = append(sets, "processed_at = NOW()")
	}

	query := fmt.Sprintf(`UPDATE %s SET %s
WHERE id = $1 AND status NOT IN ('ready', 'failed', 'canceled')`, s.taskTable, strings.Join(sets, ", "))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update task %s: %w", id, venue.ErrTaskFinalized)
	}
	return nil
}

// IsCanceled reads the cancel flag. Lookup failures read as not canceled.
func (s *TaskStore) IsCanceled(ctx context.Context, id string) bool {
	query := fmt.Sprintf(`SELECT cancel_flag FROM %s WHERE id = $1`, s.taskTable)
	var canceled bool
	if err := s.pool.QueryRow(ctx, query, id).Scan(&canceled); err != nil {
		return false
	}
	return canceled
}

// CompleteTask marks the task ready and inserts its venue item in one
// transaction.
func (s *TaskStore) CompleteTask(ctx context.Context, id string, record venue.Record, item venue.Item) (string, error) {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal venue data: %w", err)
	}
	itemData, err := json.Marshal(item.VenueData)
	if err != nil {
		return "", fmt.Errorf("marshal item venue data: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin complete task %s: %w", id, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	update := fmt.Sprintf(`UPDATE %s SET status = $2, venue_data = $3, updated_at = NOW(), processed_at = NOW()
WHERE id = $1 AND status = $4`, s.taskTable)
	tag, err := tx.Exec(ctx, update, id, string(venue.StatusReady), recordJSON, string(venue.StatusProcessing))
	if err != nil {
		return "", fmt.Errorf("mark task %s ready: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("mark task %s ready: %w", id, venue.ErrTaskFinalized)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (
	id,
	space_id,
	name,
	address,
	price,
	available_dates,
	images,
	notes,
	category,
	is_finalized,
	is_favorite,
	venue_data,
	rating,
	spaces_available,
	link,
	phone_number,
	created_at,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$17
)`, s.itemTable)
	args := []any{
		item.ID,
		item.SpaceID,
		item.Name,
		item.Address,
		item.Price,
		item.AvailableDates,
		item.Images,
		item.Notes,
		item.Category,
		item.IsFinalized,
		item.IsFavorite,
		itemData,
		item.Rating,
		item.SpacesAvailable,
		item.Link,
		item.PhoneNumber,
		item.CreatedAt,
	}
	if _, err := tx.Exec(ctx, insert, args...); err != nil {
		return "", fmt.Errorf("insert venue item %s: %w", item.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit complete task %s: %w", id, err)
	}
	return item.ID, nil
}

// RequestCancel raises the cancel flag.
func (s *TaskStore) RequestCancel(ctx context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET cancel_flag = TRUE, updated_at = NOW() WHERE id = $1`, s.taskTable)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("cancel task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cancel task %s: %w", id, venue.ErrTaskNotFound)
	}
	return nil
}

// Ping verifies connectivity for readiness probes.
func (s *TaskStore) Ping(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func scanTask(row pgx.Row) (venue.Task, error) {
	var (
		task      venue.Task
		status    string
		venueData []byte
	)
	err := row.Scan(
		&task.ID,
		&task.VenueURL,
		&task.SpaceID,
		&status,
		&task.CancelFlag,
		&venueData,
		&task.ErrorMessage,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return venue.Task{}, err
		}
		return venue.Task{}, fmt.Errorf("scan task: %w", err)
	}
	task.Status = venue.Status(status)
	if len(venueData) > 0 && string(venueData) != "null" {
		var record venue.Record
		if err := json.Unmarshal(venueData, &record); err != nil {
			return venue.Task{}, fmt.Errorf("decode venue data for task %s: %w", task.ID, err)
		}
		task.VenueData = &record
	}
	return task, nil
}
