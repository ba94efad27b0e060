package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/reconcile"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository"
)

// DefaultDistances is the course created when an event names none.
var DefaultDistances = []int{1, 2, 3, 4}

// DefaultStatus is the status of a newly created event.
const DefaultStatus = "scheduled"

// EventService orchestrates event and team administration.
type EventService struct {
	events EventStore
	teams  TeamStore
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore, teams TeamStore) *EventService {
	return &EventService{events: events, teams: teams}
}

func invalid(format string, args ...any) error {
	return reconcile.Errorf(reconcile.KindValidation, format, args...)
}

// CreateEvent validates the request, fills defaults and creates the event
// with its checkpoints.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, invalid("event name is required")
	}
	if req.Date.IsZero() {
		return nil, invalid("event date is required")
	}
	req.Status = strings.TrimSpace(req.Status)
	if req.Status == "" {
		req.Status = DefaultStatus
	}
	for _, link := range []*string{req.Link1URL, req.Link2URL} {
		if err := validateLink(link); err != nil {
			return nil, err
		}
	}

	if len(req.Distances) == 0 {
		req.Distances = slices.Clone(DefaultDistances)
	}
	req.Distances = slices.Clone(req.Distances)
	slices.Sort(req.Distances)
	for i, d := range req.Distances {
		if d <= 0 {
			return nil, invalid("checkpoint distance must be positive, got %d", d)
		}
		if i > 0 && req.Distances[i-1] == d {
			return nil, invalid("checkpoint distance %d is listed twice", d)
		}
	}

	event, err := s.events.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

func validateLink(link *string) error {
	if link == nil || *link == "" {
		return nil
	}
	u, err := url.Parse(*link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("link %q must be an http(s) URL", *link)
	}
	return nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// GetEvent returns one event with its checkpoints and teams.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, invalid("event id is required")
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, reconcile.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// UpdateEvent changes the event's descriptive fields.
func (s *EventService) UpdateEvent(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("event name cannot be empty")
		}
		req.Name = &name
	}
	if req.Date != nil && req.Date.IsZero() {
		return nil, invalid("event date cannot be empty")
	}
	for _, link := range []*string{req.Link1URL, req.Link2URL} {
		if err := validateLink(link); err != nil {
			return nil, err
		}
	}

	event, err := s.events.Update(ctx, id, req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, reconcile.ErrEventNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

// DeleteEvent removes the event and everything it owns.
func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	if err := s.events.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return reconcile.ErrEventNotFound
		}
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// teamFromRequest validates and normalises a team payload.
func teamFromRequest(req model.TeamRequest) (model.Team, error) {
	var team model.Team
	if req.TeamNumber <= 0 {
		return team, invalid("team number must be positive")
	}
	team.TeamNumber = req.TeamNumber
	team.Name = strings.TrimSpace(req.Name)
	if team.Name == "" {
		return team, invalid("team name is required")
	}
	if len(req.Members) > model.MaxRunners {
		return team, invalid("a team has at most %d runners, got %d", model.MaxRunners, len(req.Members))
	}
	for i, m := range req.Members {
		team.Members[i] = strings.TrimSpace(m)
	}
	return team, nil
}

// CreateTeam registers a team for the event.
func (s *EventService) CreateTeam(ctx context.Context, eventID string, req model.TeamRequest) (*model.Team, error) {
	team, err := teamFromRequest(req)
	if err != nil {
		return nil, err
	}
	created, err := s.teams.Create(ctx, eventID, team)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, reconcile.ErrEventNotFound
	case errors.Is(err, repository.ErrConflict):
		return nil, repository.ErrConflict
	case err != nil:
		return nil, fmt.Errorf("create team: %w", err)
	}
	return created, nil
}

// ListTeams returns the event's teams ordered by team number.
func (s *EventService) ListTeams(ctx context.Context, eventID string) ([]model.Team, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.teams.ListByEvent(ctx, eventID)
}

// UpdateTeam replaces a team's number, name and members.
func (s *EventService) UpdateTeam(ctx context.Context, eventID, teamID string, req model.TeamRequest) (*model.Team, error) {
	team, err := teamFromRequest(req)
	if err != nil {
		return nil, err
	}
	team.ID = teamID
	updated, err := s.teams.Update(ctx, eventID, team)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, reconcile.ErrTeamNotFound
	case errors.Is(err, repository.ErrConflict):
		return nil, repository.ErrConflict
	case err != nil:
		return nil, fmt.Errorf("update team: %w", err)
	}
	return updated, nil
}

// DeleteTeam removes a team and its records.
func (s *EventService) DeleteTeam(ctx context.Context, eventID, teamID string) error {
	if err := s.teams.Delete(ctx, eventID, teamID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return reconcile.ErrTeamNotFound
		}
		return fmt.Errorf("delete team: %w", err)
	}
	return nil
}
