// Package repository implements the PostgreSQL store for the ekiden tracker.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint:
// a repeated team number, checkpoint distance, or (team, checkpoint,
// runner) record.
var ErrConflict = errors.New("already exists")

// Postgres error codes we translate into sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// querier is the subset of pgxpool.Pool and pgx.Tx the queries need.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// classify maps constraint violations onto the package sentinels and
// returns any other error unchanged.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return ErrConflict
		case codeForeignKeyViolation:
			return ErrNotFound
		}
	}
	return err
}

func listCheckpoints(ctx context.Context, q querier, eventID string) ([]model.Checkpoint, error) {
	rows, err := q.Query(ctx,
		`SELECT id, event_id, distance, name
		 FROM checkpoints
		 WHERE event_id = $1
		 ORDER BY distance ASC`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cps []model.Checkpoint
	for rows.Next() {
		var cp model.Checkpoint
		if err := rows.Scan(&cp.ID, &cp.EventID, &cp.Distance, &cp.Name); err != nil {
			return nil, err
		}
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

const teamColumns = `id, event_id, team_number, name, member1, member2, member3, member4, member5`

func scanTeam(row pgx.Row, t *model.Team) error {
	return row.Scan(&t.ID, &t.EventID, &t.TeamNumber, &t.Name,
		&t.Members[0], &t.Members[1], &t.Members[2], &t.Members[3], &t.Members[4])
}

func collectTeams(rows pgx.Rows) ([]model.Team, error) {
	defer rows.Close()
	var teams []model.Team
	for rows.Next() {
		var t model.Team
		if err := scanTeam(rows, &t); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}
