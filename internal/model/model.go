// Package model defines the core domain types for the ekiden tracker.
package model

import "time"

// MaxRunners is the number of legs in a relay team.
const MaxRunners = 5

// Event is a single relay race day.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	Status    string    `json:"status"`
	Link1Name *string   `json:"link1_name,omitempty"`
	Link1URL  *string   `json:"link1_url,omitempty"`
	Link2Name *string   `json:"link2_name,omitempty"`
	Link2URL  *string   `json:"link2_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Checkpoints []Checkpoint `json:"checkpoints,omitempty"`
	Teams       []Team       `json:"teams,omitempty"`
}

// Checkpoint is a fixed distance marker on the course. Distance orders
// checkpoints within an event.
type Checkpoint struct {
	ID       string `json:"id"`
	EventID  string `json:"event_id"`
	Distance int    `json:"distance"`
	Name     string `json:"name"`
}

// Team is one relay team. Members holds one name per leg, leg 1 first.
type Team struct {
	ID         string             `json:"id"`
	EventID    string             `json:"event_id"`
	TeamNumber int                `json:"team_number"`
	Name       string             `json:"name"`
	Members    [MaxRunners]string `json:"members"`
}

// Record is a single "runner N of team T passed checkpoint C" fact.
// (TeamID, CheckpointID, RunnerNumber) is unique.
type Record struct {
	ID           string    `json:"id"`
	TeamID       string    `json:"team_id"`
	CheckpointID string    `json:"checkpoint_id"`
	RunnerNumber int       `json:"runner_number"`
	Timestamp    time.Time `json:"timestamp"`

	Team       *TeamSummary `json:"team,omitempty"`
	Checkpoint *Checkpoint  `json:"checkpoint,omitempty"`
}

// TeamSummary is the slice of a team embedded into record listings.
type TeamSummary struct {
	ID         string `json:"id"`
	TeamNumber int    `json:"team_number"`
	Name       string `json:"name"`
}

// Snapshot is the state a submission is decided against, loaded with a
// bounded number of queries.
type Snapshot struct {
	EventExists bool
	// Checkpoints is ordered by ascending distance.
	Checkpoints []Checkpoint
	// Teams is keyed by team number.
	Teams map[int]Team
	// Records is keyed by team id.
	Records map[string][]Record
}

// TeamProgress is where a team currently is on the course.
type TeamProgress struct {
	Team         Team    `json:"team"`
	Latest       *Record `json:"latest,omitempty"`
	Distance     int     `json:"distance"`
	RunnerNumber int     `json:"runner_number"`
	RecordCount  int     `json:"record_count"`
}

// ─── Requests ─────────────────────────────────────────────────────────────────

// CreateEventRequest is the payload for creating an event. An empty
// Distances list creates the default 1–4 km course.
type CreateEventRequest struct {
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	Status    string    `json:"status"`
	Link1Name *string   `json:"link1_name"`
	Link1URL  *string   `json:"link1_url"`
	Link2Name *string   `json:"link2_name"`
	Link2URL  *string   `json:"link2_url"`
	Distances []int     `json:"distances"`
}

// UpdateEventRequest carries optional event changes; nil fields are kept.
type UpdateEventRequest struct {
	Name      *string    `json:"name"`
	Date      *time.Time `json:"date"`
	Status    *string    `json:"status"`
	Link1Name *string    `json:"link1_name"`
	Link1URL  *string    `json:"link1_url"`
	Link2Name *string    `json:"link2_name"`
	Link2URL  *string    `json:"link2_url"`
}

// TeamRequest is the payload for creating or replacing a team.
type TeamRequest struct {
	TeamNumber int      `json:"team_number"`
	Name       string   `json:"name"`
	Members    []string `json:"members"`
}

// SubmitRequest records one team passing a checkpoint.
type SubmitRequest struct {
	TeamNumber         int `json:"team_number"`
	CheckpointDistance int `json:"checkpoint_distance"`
}

// BatchSubmitRequest records several teams passing the same checkpoint.
type BatchSubmitRequest struct {
	TeamNumbers        []int `json:"team_numbers"`
	CheckpointDistance int   `json:"checkpoint_distance"`
}

// ─── Responses ────────────────────────────────────────────────────────────────

// SubmitResult is the outcome of a single submission.
type SubmitResult struct {
	Record             Record   `json:"record"`
	AutoCompletedCount int      `json:"auto_completed_count"`
	Records            []Record `json:"records"`
}

// TeamResult is the per-team outcome inside a batch.
type TeamResult struct {
	TeamNumber         int    `json:"team_number"`
	Success            bool   `json:"success"`
	RunnerNumber       int    `json:"runner_number,omitempty"`
	AutoCompletedCount int    `json:"auto_completed_count,omitempty"`
	Error              string `json:"error,omitempty"`
	Kind               string `json:"kind,omitempty"`
}

// BatchResult summarises a batch submission.
type BatchResult struct {
	SuccessCount        int          `json:"success_count"`
	FailedCount         int          `json:"failed_count"`
	Results             []TeamResult `json:"results"`
	Errors              []TeamResult `json:"errors"`
	TotalRecordsCreated int          `json:"total_records_created"`
}

// ResetResult reports how many records a reset removed.
type ResetResult struct {
	Deleted int64 `json:"deleted"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
