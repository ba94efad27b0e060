package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository"
)

// TeamRepository handles persistence for teams.
type TeamRepository struct {
	db *sql.DB
}

// NewTeamRepository constructs a TeamRepository.
func NewTeamRepository(db *sql.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// Create inserts a team. It returns repository.ErrNotFound when the event
// does not exist and repository.ErrConflict when the team number is taken.
func (r *TeamRepository) Create(ctx context.Context, eventID string, team model.Team) (*model.Team, error) {
	team.ID = uuid.New().String()
	team.EventID = eventID

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO teams (`+teamColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		team.ID, team.EventID, team.TeamNumber, team.Name,
		team.Members[0], team.Members[1], team.Members[2], team.Members[3], team.Members[4],
	)
	if err != nil {
		if c := classify(err); c != err {
			return nil, c
		}
		return nil, fmt.Errorf("insert team: %w", err)
	}
	return &team, nil
}

// ListByEvent returns the event's teams by ascending team number.
func (r *TeamRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Team, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE event_id = ? ORDER BY team_number ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	teams, err := collectTeams(rows)
	if err != nil {
		return nil, fmt.Errorf("scan team: %w", err)
	}
	return teams, nil
}

// Update replaces the team's number, name and members.
func (r *TeamRepository) Update(ctx context.Context, eventID string, team model.Team) (*model.Team, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE teams SET
		   team_number = ?, name = ?,
		   member1 = ?, member2 = ?, member3 = ?, member4 = ?, member5 = ?
		 WHERE id = ? AND event_id = ?`,
		team.TeamNumber, team.Name,
		team.Members[0], team.Members[1], team.Members[2], team.Members[3], team.Members[4],
		team.ID, eventID,
	)
	if err != nil {
		if c := classify(err); c != err {
			return nil, c
		}
		return nil, fmt.Errorf("update team: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, repository.ErrNotFound
	}
	team.EventID = eventID
	return &team, nil
}

// Delete removes a team of the event together with its records.
func (r *TeamRepository) Delete(ctx context.Context, eventID, teamID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ? AND event_id = ?`, teamID, eventID)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
