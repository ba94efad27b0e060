package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/broadcast"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/database"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/reconcile"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/service"
)

type api struct {
	t       *testing.T
	handler http.Handler
	hub     *broadcast.Hub
}

func newAPI(t *testing.T, limiter *RateLimiter) *api {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := broadcast.NewHub(logger)
	eventStore := sqlite.NewEventRepository(db)

	return &api{
		t:   t,
		hub: hub,
		handler: NewRouter(Deps{
			Events: service.NewEventService(eventStore, sqlite.NewTeamRepository(db)),
			Records: service.NewRecordService(sqlite.NewRecordRepository(db), eventStore,
				service.WithPublisher(hub), service.WithLogger(logger)),
			Hub:        hub,
			Logger:     logger,
			CORSOrigin: "*",
			Limiter:    limiter,
		}),
	}
}

func (a *api) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// setupEvent creates an event on the default course with the given teams.
func (a *api) setupEvent(teams ...int) model.Event {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/events", map[string]any{
		"name": "City Ekiden",
		"date": "2025-11-03T00:00:00Z",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	event := decode[model.Event](a.t, rec)
	for _, n := range teams {
		rec := a.do(http.MethodPost, "/events/"+event.ID+"/teams", model.TeamRequest{TeamNumber: n, Name: "team"})
		require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	return event
}

func TestHealthCheck(t *testing.T) {
	a := newAPI(t, nil)
	rec := a.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSubmitRecord(t *testing.T) {
	a := newAPI(t, nil)
	event := a.setupEvent(1)
	path := "/events/" + event.ID + "/records"

	rec := a.do(http.MethodPost, path, model.SubmitRequest{TeamNumber: 1, CheckpointDistance: 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[model.SubmitResult](t, rec)
	assert.Equal(t, 1, res.Record.RunnerNumber)
	assert.Equal(t, 2, res.AutoCompletedCount)
	assert.Len(t, res.Records, 3)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		kind   string
	}{
		{"unknown checkpoint", path, model.SubmitRequest{TeamNumber: 1, CheckpointDistance: 8}, http.StatusNotFound, string(reconcile.KindCheckpointNotFound)},
		{"unknown team", path, model.SubmitRequest{TeamNumber: 4, CheckpointDistance: 1}, http.StatusNotFound, string(reconcile.KindTeamNotFound)},
		{"unknown event", "/events/nope/records", model.SubmitRequest{TeamNumber: 1, CheckpointDistance: 1}, http.StatusNotFound, string(reconcile.KindEventNotFound)},
		{"invalid team number", path, model.SubmitRequest{CheckpointDistance: 1}, http.StatusBadRequest, string(reconcile.KindValidation)},
		{"malformed body", path, `{"team_number": "one"}`, http.StatusBadRequest, kindBadRequest},
		{"unknown field", path, `{"team": 1}`, http.StatusBadRequest, kindBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decode[model.ErrorResponse](t, rec).Kind)
		})
	}
}

func TestSubmitRecord_AlreadyFinishedIsConflict(t *testing.T) {
	a := newAPI(t, nil)
	event := a.setupEvent(1)
	path := "/events/" + event.ID + "/records"

	for i := 0; i < model.MaxRunners; i++ {
		rec := a.do(http.MethodPost, path, model.SubmitRequest{TeamNumber: 1, CheckpointDistance: 4})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := a.do(http.MethodPost, path, model.SubmitRequest{TeamNumber: 1, CheckpointDistance: 4})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(reconcile.KindAlreadyFinished), decode[model.ErrorResponse](t, rec).Kind)
}

func TestSubmitBatch(t *testing.T) {
	a := newAPI(t, nil)
	event := a.setupEvent(1, 2)
	path := "/events/" + event.ID + "/records/batch"

	rec := a.do(http.MethodPost, path, model.BatchSubmitRequest{TeamNumbers: []int{1, 2, 3}, CheckpointDistance: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[model.BatchResult](t, rec)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.FailedCount)
	assert.Equal(t, 4, res.TotalRecordsCreated)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].TeamNumber)
	assert.Equal(t, string(reconcile.KindTeamNotFound), res.Errors[0].Kind)

	rec = a.do(http.MethodPost, path, model.BatchSubmitRequest{CheckpointDistance: 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(reconcile.KindValidation), decode[model.ErrorResponse](t, rec).Kind)
}

func TestRecordsListDeleteResetProgress(t *testing.T) {
	a := newAPI(t, nil)
	event := a.setupEvent(1, 2)
	base := "/events/" + event.ID

	rec := a.do(http.MethodPost, base+"/records/batch", model.BatchSubmitRequest{TeamNumbers: []int{1, 2}, CheckpointDistance: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, base+"/records", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]model.Record](t, rec)
	require.Len(t, records, 4)
	require.NotNil(t, records[0].Checkpoint)

	rec = a.do(http.MethodGet, base+"/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	progress := decode[[]model.TeamProgress](t, rec)
	require.Len(t, progress, 2)
	assert.Equal(t, 2, progress[0].Distance)

	rec = a.do(http.MethodDelete, base+"/records/"+records[0].ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodDelete, base+"/records/"+records[0].ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode[model.ResetResult](t, rec).Deleted)

	rec = a.do(http.MethodGet, base+"/records", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = a.do(http.MethodGet, "/events/nope/progress", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventAndTeamAdministration(t *testing.T) {
	a := newAPI(t, nil)
	event := a.setupEvent(1)
	base := "/events/" + event.ID

	assert.Len(t, event.Checkpoints, 4)

	rec := a.do(http.MethodPost, "/events", map[string]any{"name": "", "date": "2025-11-03T00:00:00Z"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Event](t, rec), 1)

	rec = a.do(http.MethodPatch, base, map[string]any{"status": "running"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "running", decode[model.Event](t, rec).Status)

	rec = a.do(http.MethodPost, base+"/teams", model.TeamRequest{TeamNumber: 1, Name: "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, kindConflict, decode[model.ErrorResponse](t, rec).Kind)

	rec = a.do(http.MethodGet, base+"/teams", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	teams := decode[[]model.Team](t, rec)
	require.Len(t, teams, 1)

	rec = a.do(http.MethodPatch, base+"/teams/"+teams[0].ID, model.TeamRequest{TeamNumber: 5, Name: "renamed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, decode[model.Team](t, rec).TeamNumber)

	rec = a.do(http.MethodDelete, base+"/teams/"+teams[0].ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodDelete, base+"/teams/"+teams[0].ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(reconcile.KindEventNotFound), decode[model.ErrorResponse](t, rec).Kind)
}

func TestWriteServiceError_HidesStoreFailures(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	writeServiceError(rec, req, errors.New("connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[model.ErrorResponse](t, rec)
	assert.Equal(t, kindInternal, body.Kind)
	assert.NotContains(t, body.Error, "refused")

	rec = httptest.NewRecorder()
	writeServiceError(rec, req, repository.ErrConflict)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	a := newAPI(t, nil)
	rec := a.do(http.MethodOptions, "/events", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a := newAPI(t, NewRateLimiter(ctx, 1, 2))
	body := map[string]any{"name": "x", "date": "2025-11-03T00:00:00Z"}

	assert.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/events", body).Code)
	assert.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/events", body).Code)

	rec := a.do(http.MethodPost, "/events", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, kindRateLimited, decode[model.ErrorResponse](t, rec).Kind)

	// Reads are never limited.
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/events", nil).Code)
}

func TestRateLimiter_SweepDropsIdleVisitors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rl := NewRateLimiter(ctx, 1, 1)
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.limiterFor("10.0.0.1")
	now = now.Add(5 * time.Minute)
	rl.limiterFor("10.0.0.2")
	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "10.0.0.1")
	assert.Contains(t, rl.visitors, "10.0.0.2")
}

func TestStream(t *testing.T) {
	a := newAPI(t, nil)
	event := a.setupEvent(1)

	srv := httptest.NewServer(a.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/"+event.ID+"/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewReader(resp.Body)
	first, err := lines.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", first)
	require.Eventually(t, func() bool { return a.hub.Subscribers(event.ID) == 1 }, time.Second, 10*time.Millisecond)

	rec := a.do(http.MethodPost, "/events/"+event.ID+"/records", model.SubmitRequest{TeamNumber: 1, CheckpointDistance: 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := lines.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimPrefix(line, "data: ")
		}
	}
	assert.Equal(t, broadcast.TypeRecordsCreated, eventLine)
	var msg broadcast.Message
	require.NoError(t, json.Unmarshal([]byte(dataLine), &msg))
	assert.Equal(t, event.ID, msg.EventID)
	require.Len(t, msg.Records, 1)

	cancel()
	require.Eventually(t, func() bool { return a.hub.Subscribers(event.ID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStream_UnknownEvent(t *testing.T) {
	a := newAPI(t, nil)
	rec := a.do(http.MethodGet, "/events/nope/stream", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
