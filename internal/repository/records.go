package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
)

// RecordRepository handles persistence for checkpoint records.
type RecordRepository struct {
	db *pgxpool.Pool
}

// NewRecordRepository constructs a RecordRepository.
func NewRecordRepository(db *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{db: db}
}

// Snapshot loads everything a submission for the given team numbers is
// decided against. It always issues four queries, however many teams are
// requested, inside one read-only repeatable-read transaction so the parts
// agree with each other.
func (r *RecordRepository) Snapshot(ctx context.Context, eventID string, teamNumbers []int) (*model.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	snap := &model.Snapshot{
		Teams:   make(map[int]model.Team, len(teamNumbers)),
		Records: make(map[string][]model.Record, len(teamNumbers)),
	}

	// ── 1. Event ──────────────────────────────────────────────────────────
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).
		Scan(&snap.EventExists)
	if err != nil {
		return nil, fmt.Errorf("check event: %w", err)
	}
	if !snap.EventExists {
		return snap, nil
	}

	// ── 2. Checkpoints ────────────────────────────────────────────────────
	if snap.Checkpoints, err = listCheckpoints(ctx, tx, eventID); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	// ── 3. Teams by number ────────────────────────────────────────────────
	numbers := make([]int32, len(teamNumbers))
	for i, n := range teamNumbers {
		numbers[i] = int32(n)
	}
	rows, err := tx.Query(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE event_id = $1 AND team_number = ANY($2)`,
		eventID, numbers,
	)
	if err != nil {
		return nil, fmt.Errorf("load teams: %w", err)
	}
	teams, err := collectTeams(rows)
	if err != nil {
		return nil, fmt.Errorf("scan team: %w", err)
	}
	if len(teams) == 0 {
		return snap, nil
	}
	teamIDs := make([]string, 0, len(teams))
	for _, t := range teams {
		snap.Teams[t.TeamNumber] = t
		teamIDs = append(teamIDs, t.ID)
	}

	// ── 4. Existing records of those teams ────────────────────────────────
	rows, err = tx.Query(ctx,
		`SELECT id, team_id, checkpoint_id, runner_number, timestamp
		 FROM records
		 WHERE team_id = ANY($1)
		 ORDER BY timestamp ASC`,
		teamIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec model.Record
		if err := rows.Scan(&rec.ID, &rec.TeamID, &rec.CheckpointID, &rec.RunnerNumber, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		snap.Records[rec.TeamID] = append(snap.Records[rec.TeamID], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return snap, nil
}

// Insert writes records in a single statement inside a transaction and
// returns the rows actually inserted, with IDs assigned.
//
// With skipDuplicates, rows that collide on (team, checkpoint, runner) are
// dropped silently. Without it, any collision aborts the whole insert and
// ErrConflict is returned; nothing is written.
func (r *RecordRepository) Insert(ctx context.Context, records []model.Record, skipDuplicates bool) ([]model.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var (
		ids         = make([]string, len(records))
		teamIDs     = make([]string, len(records))
		checkpoints = make([]string, len(records))
		runners     = make([]int32, len(records))
		timestamps  = make([]time.Time, len(records))
	)
	pending := make([]model.Record, len(records))
	for i, rec := range records {
		rec.ID = uuid.New().String()
		pending[i] = rec
		ids[i], teamIDs[i], checkpoints[i] = rec.ID, rec.TeamID, rec.CheckpointID
		runners[i], timestamps[i] = int32(rec.RunnerNumber), rec.Timestamp
	}

	query := `INSERT INTO records (id, team_id, checkpoint_id, runner_number, timestamp)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::int[], $5::timestamptz[])`
	if skipDuplicates {
		query += ` ON CONFLICT (team_id, checkpoint_id, runner_number) DO NOTHING`
	}
	query += ` RETURNING id`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, query, ids, teamIDs, checkpoints, runners, timestamps)
	if err != nil {
		if c := classify(err); c != err {
			return nil, c
		}
		return nil, fmt.Errorf("insert records: %w", err)
	}
	inserted := make(map[string]bool, len(records))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan inserted id: %w", err)
		}
		inserted[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		if c := classify(err); c != err {
			return nil, c
		}
		return nil, fmt.Errorf("insert records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	out := make([]model.Record, 0, len(inserted))
	for _, rec := range pending {
		if inserted[rec.ID] {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListByEvent returns the event's records by ascending timestamp, each with
// its team summary and checkpoint embedded.
func (r *RecordRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Record, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.team_id, r.checkpoint_id, r.runner_number, r.timestamp,
		        t.team_number, t.name,
		        c.event_id, c.distance, c.name
		 FROM records r
		 JOIN teams t ON t.id = r.team_id
		 JOIN checkpoints c ON c.id = r.checkpoint_id
		 WHERE t.event_id = $1
		 ORDER BY r.timestamp ASC, c.distance ASC, r.runner_number ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var (
			rec  model.Record
			team model.TeamSummary
			cp   model.Checkpoint
		)
		if err := rows.Scan(&rec.ID, &rec.TeamID, &rec.CheckpointID, &rec.RunnerNumber, &rec.Timestamp,
			&team.TeamNumber, &team.Name, &cp.EventID, &cp.Distance, &cp.Name); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		team.ID, cp.ID = rec.TeamID, rec.CheckpointID
		rec.Team, rec.Checkpoint = &team, &cp
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes one record of the event.
func (r *RecordRepository) Delete(ctx context.Context, eventID, recordID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM records r
		 USING teams t
		 WHERE r.id = $1 AND t.id = r.team_id AND t.event_id = $2`,
		recordID, eventID,
	)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByEvent removes every record of the event and reports how many.
func (r *RecordRepository) DeleteByEvent(ctx context.Context, eventID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM records
		 WHERE team_id IN (SELECT id FROM teams WHERE event_id = $1)`,
		eventID,
	)
	if err != nil {
		return 0, fmt.Errorf("reset records: %w", err)
	}
	return tag.RowsAffected(), nil
}
