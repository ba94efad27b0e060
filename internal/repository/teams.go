package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
)

// TeamRepository handles persistence for teams.
type TeamRepository struct {
	db *pgxpool.Pool
}

// NewTeamRepository constructs a TeamRepository.
func NewTeamRepository(db *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{db: db}
}

// Create inserts a team. It returns ErrNotFound when the event does not
// exist and ErrConflict when the team number is taken.
func (r *TeamRepository) Create(ctx context.Context, eventID string, team model.Team) (*model.Team, error) {
	team.ID = uuid.New().String()
	team.EventID = eventID

	_, err := r.db.Exec(ctx,
		`INSERT INTO teams (`+teamColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
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
	rows, err := r.db.Query(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE event_id = $1 ORDER BY team_number ASC`,
		eventID,
	)
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
	var out model.Team
	err := scanTeam(r.db.QueryRow(ctx,
		`UPDATE teams SET
		   team_number = $3, name = $4,
		   member1 = $5, member2 = $6, member3 = $7, member4 = $8, member5 = $9
		 WHERE id = $1 AND event_id = $2
		 RETURNING `+teamColumns,
		team.ID, eventID, team.TeamNumber, team.Name,
		team.Members[0], team.Members[1], team.Members[2], team.Members[3], team.Members[4],
	), &out)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if c := classify(err); c != err {
			return nil, c
		}
		return nil, fmt.Errorf("update team: %w", err)
	}
	return &out, nil
}

// Delete removes a team of the event together with its records.
func (r *TeamRepository) Delete(ctx context.Context, eventID, teamID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM teams WHERE id = $1 AND event_id = $2`, teamID, eventID)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
