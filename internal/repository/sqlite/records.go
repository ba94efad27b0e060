package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository"
)

// RecordRepository handles persistence for checkpoint records.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository constructs a RecordRepository.
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Snapshot loads everything a submission for the given team numbers is
// decided against, with at most four queries inside one transaction.
func (r *RecordRepository) Snapshot(ctx context.Context, eventID string, teamNumbers []int) (*model.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	snap := &model.Snapshot{
		Teams:   make(map[int]model.Team, len(teamNumbers)),
		Records: make(map[string][]model.Record, len(teamNumbers)),
	}

	err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = ?)`, eventID).
		Scan(&snap.EventExists)
	if err != nil {
		return nil, fmt.Errorf("check event: %w", err)
	}
	if !snap.EventExists {
		return snap, nil
	}

	if snap.Checkpoints, err = listCheckpoints(ctx, tx, eventID); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(teamNumbers) == 0 {
		return snap, nil
	}

	args := make([]any, 0, len(teamNumbers)+1)
	args = append(args, eventID)
	for _, n := range teamNumbers {
		args = append(args, n)
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT `+teamColumns+` FROM teams
		 WHERE event_id = ? AND team_number IN (`+placeholders(len(teamNumbers))+`)`,
		args...,
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

	ids := make([]any, 0, len(teams))
	for _, t := range teams {
		snap.Teams[t.TeamNumber] = t
		ids = append(ids, t.ID)
	}
	rows, err = tx.QueryContext(ctx,
		`SELECT id, team_id, checkpoint_id, runner_number, timestamp
		 FROM records
		 WHERE team_id IN (`+placeholders(len(ids))+`)
		 ORDER BY timestamp ASC`,
		ids...,
	)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rec model.Record
			ts  int64
		)
		if err := rows.Scan(&rec.ID, &rec.TeamID, &rec.CheckpointID, &rec.RunnerNumber, &ts); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Timestamp = fromUnix(ts)
		snap.Records[rec.TeamID] = append(snap.Records[rec.TeamID], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return snap, nil
}

// Insert writes records in one transaction and returns the rows actually
// inserted, with IDs assigned. With skipDuplicates colliding rows are
// ignored; otherwise a collision rolls everything back and
// repository.ErrConflict is returned.
func (r *RecordRepository) Insert(ctx context.Context, records []model.Record, skipDuplicates bool) ([]model.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	verb := "INSERT"
	if skipDuplicates {
		verb = "INSERT OR IGNORE"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		verb+` INTO records (id, team_id, checkpoint_id, runner_number, timestamp) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	out := make([]model.Record, 0, len(records))
	for _, rec := range records {
		rec.ID = uuid.New().String()
		res, err := stmt.ExecContext(ctx, rec.ID, rec.TeamID, rec.CheckpointID, rec.RunnerNumber, toUnix(rec.Timestamp))
		if err != nil {
			if c := classify(err); c != err {
				return nil, c
			}
			return nil, fmt.Errorf("insert record: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			out = append(out, rec)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return out, nil
}

// ListByEvent returns the event's records by ascending timestamp with team
// summary and checkpoint embedded.
func (r *RecordRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.team_id, r.checkpoint_id, r.runner_number, r.timestamp,
		        t.team_number, t.name,
		        c.event_id, c.distance, c.name
		 FROM records r
		 JOIN teams t ON t.id = r.team_id
		 JOIN checkpoints c ON c.id = r.checkpoint_id
		 WHERE t.event_id = ?
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
			ts   int64
			team model.TeamSummary
			cp   model.Checkpoint
		)
		if err := rows.Scan(&rec.ID, &rec.TeamID, &rec.CheckpointID, &rec.RunnerNumber, &ts,
			&team.TeamNumber, &team.Name, &cp.EventID, &cp.Distance, &cp.Name); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Timestamp = fromUnix(ts)
		team.ID, cp.ID = rec.TeamID, rec.CheckpointID
		rec.Team, rec.Checkpoint = &team, &cp
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes one record of the event.
func (r *RecordRepository) Delete(ctx context.Context, eventID, recordID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM records
		 WHERE id = ? AND team_id IN (SELECT id FROM teams WHERE event_id = ?)`,
		recordID, eventID,
	)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByEvent removes every record of the event and reports how many.
func (r *RecordRepository) DeleteByEvent(ctx context.Context, eventID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE team_id IN (SELECT id FROM teams WHERE event_id = ?)`, eventID)
	if err != nil {
		return 0, fmt.Errorf("reset records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset records: %w", err)
	}
	return n, nil
}
