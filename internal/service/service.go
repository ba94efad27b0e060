// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the store.
package service

import (
	"context"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
)

// EventStore persists events and their checkpoints.
type EventStore interface {
	Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
	Update(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error)
	Delete(ctx context.Context, id string) error
}

// TeamStore persists teams.
type TeamStore interface {
	Create(ctx context.Context, eventID string, team model.Team) (*model.Team, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Team, error)
	Update(ctx context.Context, eventID string, team model.Team) (*model.Team, error)
	Delete(ctx context.Context, eventID, teamID string) error
}

// RecordStore persists checkpoint records. Insert must enforce
// (team, checkpoint, runner) uniqueness.
type RecordStore interface {
	Snapshot(ctx context.Context, eventID string, teamNumbers []int) (*model.Snapshot, error)
	Insert(ctx context.Context, records []model.Record, skipDuplicates bool) ([]model.Record, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Record, error)
	Delete(ctx context.Context, eventID, recordID string) error
	DeleteByEvent(ctx context.Context, eventID string) (int64, error)
}
