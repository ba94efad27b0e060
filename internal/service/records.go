package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/broadcast"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/reconcile"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/telemetry"
)

// RecordService records checkpoint passages and answers progress queries.
type RecordService struct {
	records RecordStore
	events  EventStore
	pub     broadcast.Publisher
	metrics *telemetry.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// Option configures a RecordService.
type Option func(*RecordService)

// WithPublisher notifies p after every successful write.
func WithPublisher(p broadcast.Publisher) Option {
	return func(s *RecordService) { s.pub = p }
}

// WithMetrics reports created and rejected records to m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *RecordService) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *RecordService) { s.logger = l }
}

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *RecordService) { s.now = now }
}

// NewRecordService constructs a RecordService.
func NewRecordService(records RecordStore, events EventStore, opts ...Option) *RecordService {
	s := &RecordService{
		records: records,
		events:  events,
		logger:  slog.Default(),
		tracer:  otel.Tracer(telemetry.ScopeName),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// decide resolves one team against the snapshot and computes its plan.
func decide(snap *model.Snapshot, teamNumber, distance int, now time.Time) (model.Team, reconcile.Plan, error) {
	if !slices.ContainsFunc(snap.Checkpoints, func(c model.Checkpoint) bool { return c.Distance == distance }) {
		return model.Team{}, reconcile.Plan{}, reconcile.Errorf(reconcile.KindCheckpointNotFound,
			"no checkpoint at %dkm", distance)
	}
	team, ok := snap.Teams[teamNumber]
	if !ok {
		return model.Team{}, reconcile.Plan{}, reconcile.Errorf(reconcile.KindTeamNotFound,
			"team %d not found", teamNumber)
	}
	plan, err := reconcile.Compute(reconcile.Input{
		TeamID:         team.ID,
		Checkpoints:    snap.Checkpoints,
		Existing:       snap.Records[team.ID],
		TargetDistance: distance,
		Now:            now,
	})
	return team, plan, err
}

func (s *RecordService) rejected(ctx context.Context, eventID string, err error) {
	var rerr *reconcile.Error
	if s.metrics != nil && errors.As(err, &rerr) {
		s.metrics.Rejected(ctx, eventID, string(rerr.Kind))
	}
}

func (s *RecordService) created(ctx context.Context, eventID string, records []model.Record, auto int) {
	if len(records) == 0 {
		return
	}
	if s.metrics != nil {
		s.metrics.RecordsCreated(ctx, eventID, len(records), auto)
	}
	if s.pub != nil {
		s.pub.Publish(ctx, broadcast.Message{
			Type:    broadcast.TypeRecordsCreated,
			EventID: eventID,
			Records: records,
		})
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Submit records one team passing a checkpoint, backfilling any earlier
// checkpoints the same runner has not been recorded at. Nothing is written
// when the submission is rejected.
func (s *RecordService) Submit(ctx context.Context, eventID string, req model.SubmitRequest) (_ *model.SubmitResult, err error) {
	ctx, span := s.tracer.Start(ctx, "RecordService.Submit", trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.Int("team.number", req.TeamNumber),
		attribute.Int("checkpoint.distance", req.CheckpointDistance),
	))
	defer func() { endSpan(span, err) }()

	if req.TeamNumber <= 0 {
		return nil, invalid("team number must be positive")
	}

	snap, err := s.records.Snapshot(ctx, eventID, []int{req.TeamNumber})
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if !snap.EventExists {
		return nil, reconcile.ErrEventNotFound
	}

	team, plan, err := decide(snap, req.TeamNumber, req.CheckpointDistance, s.now())
	if err != nil {
		s.rejected(ctx, eventID, err)
		return nil, err
	}

	inserted, err := s.records.Insert(ctx, plan.Records(), false)
	switch {
	case errors.Is(err, repository.ErrConflict):
		err = reconcile.Errorf(reconcile.KindDuplicateRecord,
			"leg %d at %dkm is already recorded for team %d", plan.RunnerNumber, req.CheckpointDistance, team.TeamNumber)
		s.rejected(ctx, eventID, err)
		return nil, err
	case errors.Is(err, repository.ErrNotFound):
		err = reconcile.Errorf(reconcile.KindTeamNotFound, "team %d not found", team.TeamNumber)
		s.rejected(ctx, eventID, err)
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("insert records: %w", err)
	}

	s.created(ctx, eventID, inserted, len(plan.AutoCompleted))
	s.logger.InfoContext(ctx, "checkpoint recorded",
		"event_id", eventID,
		"team_number", team.TeamNumber,
		"distance", req.CheckpointDistance,
		"runner_number", plan.RunnerNumber,
		"auto_completed", len(plan.AutoCompleted),
	)

	return &model.SubmitResult{
		Record:             inserted[len(inserted)-1],
		AutoCompletedCount: len(plan.AutoCompleted),
		Records:            inserted,
	}, nil
}

// SubmitBatch records several teams passing the same checkpoint. All state
// is loaded in one snapshot and every accepted record is written in one
// insert that skips rows already present. A rejected team never affects the
// others; results are returned in request order.
func (s *RecordService) SubmitBatch(ctx context.Context, eventID string, req model.BatchSubmitRequest) (_ *model.BatchResult, err error) {
	ctx, span := s.tracer.Start(ctx, "RecordService.SubmitBatch", trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.Int("batch.size", len(req.TeamNumbers)),
		attribute.Int("checkpoint.distance", req.CheckpointDistance),
	))
	defer func() { endSpan(span, err) }()

	if len(req.TeamNumbers) == 0 {
		return nil, invalid("team_numbers must not be empty")
	}

	unique := make([]int, 0, len(req.TeamNumbers))
	seen := make(map[int]bool, len(req.TeamNumbers))
	for _, n := range req.TeamNumbers {
		if !seen[n] && n > 0 {
			unique = append(unique, n)
		}
		seen[n] = true
	}

	snap, err := s.records.Snapshot(ctx, eventID, unique)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if !snap.EventExists {
		return nil, reconcile.ErrEventNotFound
	}
	if !slices.ContainsFunc(snap.Checkpoints, func(c model.Checkpoint) bool { return c.Distance == req.CheckpointDistance }) {
		return nil, reconcile.Errorf(reconcile.KindCheckpointNotFound, "no checkpoint at %dkm", req.CheckpointDistance)
	}

	now := s.now()
	results := make([]model.TeamResult, len(req.TeamNumbers))
	plans := make(map[int]reconcile.Plan, len(unique))
	var pending []model.Record
	handled := make(map[int]bool, len(req.TeamNumbers))

	fail := func(i int, err error) {
		results[i].Error = err.Error()
		var rerr *reconcile.Error
		if errors.As(err, &rerr) {
			results[i].Kind = string(rerr.Kind)
		}
		s.rejected(ctx, eventID, err)
	}

	for i, n := range req.TeamNumbers {
		results[i].TeamNumber = n
		switch {
		case n <= 0:
			fail(i, invalid("team number must be positive, got %d", n))
			continue
		case handled[n]:
			fail(i, reconcile.Errorf(reconcile.KindDuplicateRecord, "team %d is listed more than once", n))
			continue
		}
		handled[n] = true

		_, plan, err := decide(snap, n, req.CheckpointDistance, now)
		if err != nil {
			fail(i, err)
			continue
		}
		plans[n] = plan
		pending = append(pending, plan.Records()...)
	}

	inserted, err := s.records.Insert(ctx, pending, true)
	if err != nil {
		return nil, fmt.Errorf("insert records: %w", err)
	}

	out := &model.BatchResult{
		Results:             results,
		Errors:              []model.TeamResult{},
		TotalRecordsCreated: len(inserted),
	}
	auto := 0
	for i := range results {
		plan, ok := plans[results[i].TeamNumber]
		if ok && results[i].Error == "" {
			results[i].Success = true
			results[i].RunnerNumber = plan.RunnerNumber
			results[i].AutoCompletedCount = len(plan.AutoCompleted)
			auto += len(plan.AutoCompleted)
			out.SuccessCount++
			continue
		}
		out.FailedCount++
		out.Errors = append(out.Errors, results[i])
	}

	s.created(ctx, eventID, inserted, auto)
	s.logger.InfoContext(ctx, "batch recorded",
		"event_id", eventID,
		"distance", req.CheckpointDistance,
		"teams", len(req.TeamNumbers),
		"succeeded", out.SuccessCount,
		"failed", out.FailedCount,
		"records_created", out.TotalRecordsCreated,
	)
	return out, nil
}

func (s *RecordService) requireEvent(ctx context.Context, eventID string) (*model.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, reconcile.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// List returns the event's records in timestamp order.
func (s *RecordService) List(ctx context.Context, eventID string) ([]model.Record, error) {
	if _, err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}
	records, err := s.records.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, nil
}

// Delete removes one record and tells viewers about it.
func (s *RecordService) Delete(ctx context.Context, eventID, recordID string) error {
	if err := s.records.Delete(ctx, eventID, recordID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if s.pub != nil {
		s.pub.Publish(ctx, broadcast.Message{Type: broadcast.TypeRecordDeleted, EventID: eventID, RecordID: recordID})
	}
	s.logger.InfoContext(ctx, "record deleted", "event_id", eventID, "record_id", recordID)
	return nil
}

// Reset removes every record of the event, keeping its teams and
// checkpoints.
func (s *RecordService) Reset(ctx context.Context, eventID string) (*model.ResetResult, error) {
	if _, err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}
	n, err := s.records.DeleteByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("reset records: %w", err)
	}
	if s.pub != nil {
		s.pub.Publish(ctx, broadcast.Message{Type: broadcast.TypeRecordsReset, EventID: eventID})
	}
	s.logger.WarnContext(ctx, "event records reset", "event_id", eventID, "deleted", n)
	return &model.ResetResult{Deleted: n}, nil
}

// Progress reports where every team of the event currently is.
func (s *RecordService) Progress(ctx context.Context, eventID string) ([]model.TeamProgress, error) {
	event, err := s.requireEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return reconcile.Progress(event.Teams, event.Checkpoints, records), nil
}
