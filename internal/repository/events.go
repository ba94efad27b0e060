package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
)

// EventRepository handles persistence for events and their checkpoints.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, name, date, status, link1_name, link1_url, link2_name, link2_url, created_at`

func scanEvent(row pgx.Row, e *model.Event) error {
	return row.Scan(&e.ID, &e.Name, &e.Date, &e.Status,
		&e.Link1Name, &e.Link1URL, &e.Link2Name, &e.Link2URL, &e.CreatedAt)
}

// Create inserts the event and its checkpoints in one transaction.
// req.Distances must already be validated.
func (r *EventRepository) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	event := &model.Event{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Date:      req.Date,
		Status:    req.Status,
		Link1Name: req.Link1Name,
		Link1URL:  req.Link1URL,
		Link2Name: req.Link2Name,
		Link2URL:  req.Link2URL,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.Name, event.Date, event.Status,
		event.Link1Name, event.Link1URL, event.Link2Name, event.Link2URL, event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	for _, d := range req.Distances {
		cp := model.Checkpoint{
			ID:       uuid.New().String(),
			EventID:  event.ID,
			Distance: d,
			Name:     fmt.Sprintf("%dkm", d),
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO checkpoints (id, event_id, distance, name) VALUES ($1, $2, $3, $4)`,
			cp.ID, cp.EventID, cp.Distance, cp.Name,
		)
		if err != nil {
			if errors.Is(classify(err), ErrConflict) {
				return nil, ErrConflict
			}
			return nil, fmt.Errorf("insert checkpoint: %w", err)
		}
		event.Checkpoints = append(event.Checkpoints, cp)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return event, nil
}

// List returns all events, most recent race day first.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 ORDER BY date DESC, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetByID returns a single event with its checkpoints (ascending distance)
// and teams (ascending team number), or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id,
	), &e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	if e.Checkpoints, err = listCheckpoints(ctx, r.db, id); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE event_id = $1 ORDER BY team_number ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	if e.Teams, err = collectTeams(rows); err != nil {
		return nil, fmt.Errorf("scan team: %w", err)
	}
	return &e, nil
}

// Update applies the non-nil fields of req. An empty link string clears
// the link.
func (r *EventRepository) Update(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	var e model.Event
	err := scanEvent(r.db.QueryRow(ctx,
		`UPDATE events SET
		   name       = COALESCE($2, name),
		   date       = COALESCE($3, date),
		   status     = COALESCE($4, status),
		   link1_name = CASE WHEN $5::text IS NULL THEN link1_name ELSE NULLIF($5, '') END,
		   link1_url  = CASE WHEN $6::text IS NULL THEN link1_url  ELSE NULLIF($6, '') END,
		   link2_name = CASE WHEN $7::text IS NULL THEN link2_name ELSE NULLIF($7, '') END,
		   link2_url  = CASE WHEN $8::text IS NULL THEN link2_url  ELSE NULLIF($8, '') END
		 WHERE id = $1
		 RETURNING `+eventColumns,
		id, req.Name, req.Date, req.Status, req.Link1Name, req.Link1URL, req.Link2Name, req.Link2URL,
	), &e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return &e, nil
}

// Delete removes the event; teams, checkpoints and records cascade.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
