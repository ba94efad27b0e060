// Package sqlite implements the ekiden tracker store on an embedded SQLite
// database, for venues where no database server is available. It honours
// the same contract as the PostgreSQL repositories, including the sentinel
// errors of package repository.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository"
)

// querier is the subset of *sql.DB and *sql.Tx the queries need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// classify maps constraint violations onto the repository sentinels and
// returns any other error unchanged.
func classify(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return repository.ErrConflict
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return repository.ErrNotFound
	}
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := se.Error()
		switch {
		case strings.Contains(msg, "UNIQUE"):
			return repository.ErrConflict
		case strings.Contains(msg, "FOREIGN KEY"):
			return repository.ErrNotFound
		}
	}
	return err
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func listCheckpoints(ctx context.Context, q querier, eventID string) ([]model.Checkpoint, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, event_id, distance, name
		 FROM checkpoints
		 WHERE event_id = ?
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

type scanner interface {
	Scan(dest ...any) error
}

func scanTeam(row scanner, t *model.Team) error {
	return row.Scan(&t.ID, &t.EventID, &t.TeamNumber, &t.Name,
		&t.Members[0], &t.Members[1], &t.Members[2], &t.Members[3], &t.Members[4])
}

func collectTeams(rows *sql.Rows) ([]model.Team, error) {
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
