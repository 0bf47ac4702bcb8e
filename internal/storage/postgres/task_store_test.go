package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/venue-scraper/internal/venue"
)

var columns = []string{
	"id", "venue_url", "space_id", "status", "cancel_flag", "venue_data",
	"error_message", "created_at", "updated_at", "processed_at",
}

func newMockStore(t *testing.T) (*TaskStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewTaskStoreWithPool(mock, "", "")
	require.NoError(t, err)
	return store, mock
}

func TestNewTaskStoreWithPool_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewTaskStoreWithPool(nil, "", "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewTaskStoreWithPool(mock, "tasks; DROP TABLE x", "")
	require.ErrorContains(t, err, "invalid table name")
}

func TestClaimTask(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	claim := regexp.QuoteMeta("UPDATE venue_scraping_tasks SET status = $2")

	mock.ExpectExec(claim).
		WithArgs("t1", "processing", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(claim).
		WithArgs("t1", "processing", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	claimed, err := store.ClaimTask(context.Background(), "t1")
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = store.ClaimTask(context.Background(), "t1")
	require.NoError(t, err)
	require.False(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTask_NotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM venue_scraping_tasks WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	task, err := store.GetTask(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, task)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTask_DecodesVenueData(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM venue_scraping_tasks WHERE id").
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			"t1", "https://hall.example", int64(7), "ready", false,
			[]byte(`{"name":"Grand Hall","venue_type":[],"spaces_available":[],"cover_image_urls":[]}`),
			nil, created, created, nil,
		))

	task, err := store.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, venue.StatusReady, task.Status)
	require.Equal(t, int64(7), task.SpaceID)
	require.NotNil(t, task.VenueData)
	require.Equal(t, "Grand Hall", task.VenueData.Name)
	require.Nil(t, task.ErrorMessage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindPending(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND cancel_flag = FALSE")).
		WithArgs("pending", 5).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("a", "https://a.example", int64(1), "pending", false, nil, nil, created, created, nil).
			AddRow("b", "https://b.example", int64(2), "pending", false, nil, nil, created.Add(time.Minute), created, nil))

	tasks, err := store.FindPending(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, "a", tasks[0].ID)
	require.Nil(t, tasks[0].VenueData)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_TerminalStampsProcessedAt(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	msg := "Failed to extract venue data from webpage"
	mock.ExpectExec(regexp.QuoteMeta("SET status = $2, updated_at = NOW(), error_message = $3, processed_at = NOW()")).
		WithArgs("t1", "failed", msg).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.UpdateStatus(context.Background(), "t1", venue.StatusFailed, nil, &msg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_WithRecord(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("SET status = $2, updated_at = NOW(), venue_data = $3")).
		WithArgs("t1", "processing", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateStatus(context.Background(), "t1", venue.StatusProcessing, &venue.Record{Name: "Grand Hall"}, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_FinalizedTask(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE venue_scraping_tasks").
		WithArgs("t1", "canceled").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateStatus(context.Background(), "t1", venue.StatusCanceled, nil, nil)
	require.ErrorIs(t, err, venue.ErrTaskFinalized)
}

func TestIsCanceled(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT cancel_flag FROM venue_scraping_tasks").
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows([]string{"cancel_flag"}).AddRow(true))
	mock.ExpectQuery("SELECT cancel_flag FROM venue_scraping_tasks").
		WithArgs("t2").
		WillReturnError(errors.New("connection refused"))

	require.True(t, store.IsCanceled(context.Background(), "t1"))
	require.False(t, store.IsCanceled(context.Background(), "t2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func sampleItem() venue.Item {
	return venue.NewItem(venue.Record{
		Name:            "Grand Hall",
		VenueType:       []string{"ballroom"},
		SpacesAvailable: []string{},
		CoverImageURLs:  []string{"https://cdn.example/a.jpg"},
	}, 7, "https://hall.example", time.UnixMilli(1_700_000_000_000).UTC())
}

func TestCompleteTask_CommitsBothWrites(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	item := sampleItem()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE venue_scraping_tasks SET status = $2, venue_data = $3")).
		WithArgs("t1", "ready", pgxmock.AnyArg(), "processing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO venue_items").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	id, err := store.CompleteTask(context.Background(), "t1", item.VenueData, item)
	require.NoError(t, err)
	require.Equal(t, "venue_1700000000000_7", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteTask_RollsBackOnInsertFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	item := sampleItem()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE venue_scraping_tasks").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO venue_items").
		WillReturnError(errors.New("duplicate key value"))
	mock.ExpectRollback()

	_, err := store.CompleteTask(context.Background(), "t1", item.VenueData, item)
	require.ErrorContains(t, err, "duplicate key value")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteTask_NotProcessing(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	item := sampleItem()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE venue_scraping_tasks").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := store.CompleteTask(context.Background(), "t1", item.VenueData, item)
	require.ErrorIs(t, err, venue.ErrTaskFinalized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestCancel(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("SET cancel_flag = TRUE").
		WithArgs("t1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("SET cancel_flag = TRUE").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.RequestCancel(context.Background(), "t1"))
	require.ErrorIs(t, store.RequestCancel(context.Background(), "missing"), venue.ErrTaskNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnRows(pgxmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnError(errors.New("connection refused"))

	require.NoError(t, store.Ping(context.Background()))
	require.ErrorContains(t, store.Ping(context.Background()), "ping postgres")
	require.NoError(t, mock.ExpectationsWereMet())
}
