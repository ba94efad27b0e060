package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/broadcast"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/database"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository/sqlite"
)

// recorder is a broadcast.Publisher that keeps every message.
type recorder struct {
	mu   sync.Mutex
	msgs []broadcast.Message
}

func (r *recorder) Publish(_ context.Context, msg broadcast.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) messages() []broadcast.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast.Message(nil), r.msgs...)
}

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type fixture struct {
	events  *EventService
	records *RecordService
	store   *sqlite.RecordRepository
	pub     *recorder
	event   *model.Event
}

// newFixture opens an in-memory database holding one event with the default
// four checkpoints and teams numbered 1 to teams.
func newFixture(t *testing.T, teams int) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	eventStore := sqlite.NewEventRepository(db)
	recordStore := sqlite.NewRecordRepository(db)
	pub := &recorder{}

	f := &fixture{
		events: NewEventService(eventStore, sqlite.NewTeamRepository(db)),
		records: NewRecordService(recordStore, eventStore,
			WithPublisher(pub),
			WithClock(tickingClock()),
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		),
		store: recordStore,
		pub:   pub,
	}

	f.event, err = f.events.CreateEvent(ctx, model.CreateEventRequest{
		Name: "Autumn Ekiden",
		Date: time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	for n := 1; n <= teams; n++ {
		_, err := f.events.CreateTeam(ctx, f.event.ID, model.TeamRequest{
			TeamNumber: n,
			Name:       "Team " + string(rune('A'+n-1)),
			Members:    []string{"a", "b", "c", "d", "e"},
		})
		require.NoError(t, err)
	}
	return f
}

// slot is a record reduced to what the engine decides.
type slot struct {
	Team     int
	Distance int
	Runner   int
}

func (f *fixture) slots(t *testing.T) map[slot]int {
	t.Helper()
	records, err := f.records.List(context.Background(), f.event.ID)
	require.NoError(t, err)
	out := make(map[slot]int, len(records))
	for _, r := range records {
		out[slot{r.Team.TeamNumber, r.Checkpoint.Distance, r.RunnerNumber}]++
	}
	return out
}
