// Package seed loads event definitions from YAML, for demo data and for
// setting up a race day ahead of time.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/service"
)

// File is one event with its course and teams.
type File struct {
	Event       EventDef  `yaml:"event"`
	Checkpoints []int     `yaml:"checkpoints,omitempty"`
	Teams       []TeamDef `yaml:"teams"`
}

// EventDef describes the event. Date is YYYY-MM-DD or RFC 3339.
type EventDef struct {
	Name   string    `yaml:"name"`
	Date   string    `yaml:"date"`
	Status string    `yaml:"status,omitempty"`
	Links  []LinkDef `yaml:"links,omitempty"`
}

// LinkDef is an external link shown with the event.
type LinkDef struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// TeamDef is one team and its runners in leg order.
type TeamDef struct {
	Number  int      `yaml:"number"`
	Name    string   `yaml:"name"`
	Members []string `yaml:"members,omitempty"`
}

// Load parses and validates a seed file.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads a seed file from disk.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed %q: %w", path, err)
	}
	defer fh.Close()
	return Load(fh)
}

// Validate checks what the services would otherwise reject half-way
// through applying the file.
func (f *File) Validate() error {
	if strings.TrimSpace(f.Event.Name) == "" {
		return fmt.Errorf("event.name is required")
	}
	if _, err := f.date(); err != nil {
		return err
	}
	if len(f.Event.Links) > 2 {
		return fmt.Errorf("event.links holds at most 2 links, got %d", len(f.Event.Links))
	}
	seen := make(map[int]bool, len(f.Teams))
	for i, t := range f.Teams {
		if t.Number <= 0 {
			return fmt.Errorf("teams[%d].number must be positive", i)
		}
		if seen[t.Number] {
			return fmt.Errorf("teams[%d]: team number %d is listed twice", i, t.Number)
		}
		seen[t.Number] = true
		if len(t.Members) > model.MaxRunners {
			return fmt.Errorf("teams[%d]: at most %d members, got %d", i, model.MaxRunners, len(t.Members))
		}
	}
	return nil
}

func (f *File) date() (time.Time, error) {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if d, err := time.Parse(layout, f.Event.Date); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("event.date %q is not YYYY-MM-DD or RFC 3339", f.Event.Date)
}

// Apply creates the event and its teams and returns the created event.
func Apply(ctx context.Context, svc *service.EventService, f *File) (*model.Event, error) {
	date, err := f.date()
	if err != nil {
		return nil, err
	}
	req := model.CreateEventRequest{
		Name:      f.Event.Name,
		Date:      date,
		Status:    f.Event.Status,
		Distances: f.Checkpoints,
	}
	if len(f.Event.Links) > 0 {
		req.Link1Name, req.Link1URL = &f.Event.Links[0].Name, &f.Event.Links[0].URL
	}
	if len(f.Event.Links) > 1 {
		req.Link2Name, req.Link2URL = &f.Event.Links[1].Name, &f.Event.Links[1].URL
	}

	event, err := svc.CreateEvent(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create event %q: %w", f.Event.Name, err)
	}
	for _, t := range f.Teams {
		team, err := svc.CreateTeam(ctx, event.ID, model.TeamRequest{
			TeamNumber: t.Number,
			Name:       t.Name,
			Members:    t.Members,
		})
		if err != nil {
			return nil, fmt.Errorf("create team %d: %w", t.Number, err)
		}
		event.Teams = append(event.Teams, *team)
	}
	return event, nil
}
