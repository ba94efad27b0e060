// Package reconcile decides which checkpoint records a submission creates.
//
// Given everything already recorded for a team and the event's checkpoints,
// Compute works out which leg the passage belongs to, rejects submissions
// that would over-complete the race or repeat an existing record, and fills
// in the earlier checkpoints the same runner must already have passed. It
// performs no I/O; store adapters load the inputs and persist the Plan.
package reconcile

import (
	"cmp"
	"slices"
	"time"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
)

// Input is everything needed to decide one team's submission.
type Input struct {
	TeamID string
	// Checkpoints of the event, in any order.
	Checkpoints []model.Checkpoint
	// Existing records of the team.
	Existing       []model.Record
	TargetDistance int
	Now            time.Time
}

// Plan is the set of records a submission creates. Records carry no ID yet.
type Plan struct {
	RunnerNumber  int
	Target        model.Record
	AutoCompleted []model.Record
}

// Records returns the auto-completed records followed by the target record.
func (p Plan) Records() []model.Record {
	out := make([]model.Record, 0, len(p.AutoCompleted)+1)
	out = append(out, p.AutoCompleted...)
	return append(out, p.Target)
}

type slot struct {
	checkpointID string
	runner       int
}

// Compute derives the runner number for the target checkpoint and the
// records to create, or returns an *Error explaining the rejection.
//
// The runner number is one more than the highest runner already recorded
// at the target checkpoint, on the assumption that runners pass each
// checkpoint in leg order.
func Compute(in Input) (Plan, error) {
	if len(in.Checkpoints) == 0 {
		return Plan{}, Errorf(KindCheckpointNotFound, "no checkpoint at %dkm", in.TargetDistance)
	}
	ordered := SortCheckpoints(in.Checkpoints)

	targetIdx := slices.IndexFunc(ordered, func(c model.Checkpoint) bool {
		return c.Distance == in.TargetDistance
	})
	if targetIdx < 0 {
		return Plan{}, Errorf(KindCheckpointNotFound, "no checkpoint at %dkm", in.TargetDistance)
	}
	target := ordered[targetIdx]
	final := ordered[len(ordered)-1]

	maxRunner := make(map[string]int, len(ordered))
	have := make(map[slot]bool, len(in.Existing))
	for _, r := range in.Existing {
		have[slot{r.CheckpointID, r.RunnerNumber}] = true
		if r.RunnerNumber > maxRunner[r.CheckpointID] {
			maxRunner[r.CheckpointID] = r.RunnerNumber
		}
	}

	runner := maxRunner[target.ID] + 1
	if runner > model.MaxRunners {
		return Plan{}, Errorf(KindAlreadyFinished,
			"team has already finished (leg %d passed %dkm)", model.MaxRunners, target.Distance)
	}
	if have[slot{final.ID, model.MaxRunners}] {
		return Plan{}, Errorf(KindAlreadyRecordedAtFinalLeg,
			"team has already finished (leg %d passed %dkm)", model.MaxRunners, final.Distance)
	}
	if have[slot{target.ID, runner}] {
		return Plan{}, Errorf(KindDuplicateRecord,
			"leg %d at %dkm is already recorded", runner, target.Distance)
	}

	plan := Plan{
		RunnerNumber: runner,
		Target: model.Record{
			TeamID:       in.TeamID,
			CheckpointID: target.ID,
			RunnerNumber: runner,
			Timestamp:    in.Now,
		},
	}
	for _, cp := range ordered[:targetIdx] {
		if have[slot{cp.ID, runner}] {
			continue
		}
		plan.AutoCompleted = append(plan.AutoCompleted, model.Record{
			TeamID:       in.TeamID,
			CheckpointID: cp.ID,
			RunnerNumber: runner,
			Timestamp:    in.Now,
		})
	}
	return plan, nil
}

// SortCheckpoints returns a copy of cps ordered by ascending distance.
func SortCheckpoints(cps []model.Checkpoint) []model.Checkpoint {
	out := slices.Clone(cps)
	slices.SortStableFunc(out, func(a, b model.Checkpoint) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	return out
}
