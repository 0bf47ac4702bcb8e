package cmd

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/venue-scraper/internal/venue"
)

type fakeApp struct {
	mu       sync.Mutex
	status   venue.Status
	swept    int
	sweepErr error
	ran      []string
	served   bool
	closed   bool
}

func (f *fakeApp) Run(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.served = true
	return nil
}

func (f *fakeApp) RunTask(_ context.Context, taskID string) venue.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, taskID)
	return f.status
}

func (f *fakeApp) Sweep(context.Context) (int, error) {
	return f.swept, f.sweepErr
}

func (f *fakeApp) Logger() *zap.Logger { return zap.NewNop() }

func (f *fakeApp) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// withFakeApp swaps the app factory; tests using it must not run in parallel.
func withFakeApp(t *testing.T, app *fakeApp, factoryErr error) *string {
	t.Helper()
	var gotPath string
	orig := newApp
	newApp = func(_ context.Context, cfgPath string) (App, error) {
		gotPath = cfgPath
		if factoryErr != nil {
			return nil, factoryErr
		}
		return app, nil
	}
	t.Cleanup(func() { newApp = orig })
	return &gotPath
}

func execute(args ...string) (string, error) {
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand_Ready(t *testing.T) {
	app := &fakeApp{status: venue.StatusReady}
	cfgPath := withFakeApp(t, app, nil)

	out, err := execute("run", "task-7", "--config", "venue.yaml")
	require.NoError(t, err)
	require.Contains(t, out, "task-7 ready")
	require.Equal(t, []string{"task-7"}, app.ran)
	require.Equal(t, "venue.yaml", *cfgPath)
	require.True(t, app.closed)
}

func TestRunCommand_FailedTaskExitsNonZero(t *testing.T) {
	app := &fakeApp{status: venue.StatusFailed}
	withFakeApp(t, app, nil)

	_, err := execute("run", "task-7")
	require.EqualError(t, err, "task task-7 failed")
}

func TestRunCommand_RequiresTaskID(t *testing.T) {
	withFakeApp(t, &fakeApp{}, nil)

	_, err := execute("run")
	require.Error(t, err)
}

func TestSweepCommand(t *testing.T) {
	app := &fakeApp{swept: 3}
	withFakeApp(t, app, nil)

	out, err := execute("sweep")
	require.NoError(t, err)
	require.Contains(t, out, "enqueued 3 pending tasks")

	app.sweepErr = errors.New("find pending: timeout")
	_, err = execute("sweep")
	require.ErrorContains(t, err, "timeout")
}

func TestServeCommand(t *testing.T) {
	app := &fakeApp{}
	withFakeApp(t, app, nil)

	_, err := execute("serve")
	require.NoError(t, err)
	require.True(t, app.served)
	require.True(t, app.closed)
}

func TestFactoryErrorSurfaces(t *testing.T) {
	withFakeApp(t, nil, errors.New("db.dsn is required"))

	_, err := execute("serve")
	require.ErrorContains(t, err, "failed to initialize application services")
}

func TestResolveAppWithoutApp(t *testing.T) {
	t.Parallel()

	_, err := resolveApp(context.Background())
	require.EqualError(t, err, "application services not initialized")
}
