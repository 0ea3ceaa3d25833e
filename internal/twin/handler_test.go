package twin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, runner *Runner) *httptest.Server {
	t.Helper()
	h := NewHandler(runner.logger, runner)
	r := chi.NewRouter()
	h.MountRoutes(r)
	h.MountStream(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandlerStreamsFramesThenDone(t *testing.T) {
	runner, _ := newTestRunner(RunnerConfig{})
	srv := newTestServer(t, runner)
	started, err := runner.Start(context.Background(), Options{Duration: 50 * time.Millisecond, FPS: 100}, nil)
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/twin/runs/" + started.ID + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "event: frame\ndata: {")
	assert.Contains(t, text, "event: done\n")
	assert.Contains(t, text, `"status":"completed"`)
}

func TestHandlerGetRun(t *testing.T) {
	runner, _ := newTestRunner(RunnerConfig{})
	srv := newTestServer(t, runner)
	started, err := runner.Start(context.Background(), Options{Duration: time.Minute, FPS: 10}, nil)
	require.NoError(t, err)
	defer runner.Stop(started.ID) //nolint:errcheck

	resp, err := http.Get(srv.URL + "/twin/runs/" + started.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, started.ID, got.ID)
	assert.Equal(t, 600, got.TotalFrames)

	missing, err := http.Get(srv.URL + "/twin/runs/nope/stream")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	b, _ := io.ReadAll(missing.Body)
	assert.True(t, strings.Contains(string(b), "not found"))
}
