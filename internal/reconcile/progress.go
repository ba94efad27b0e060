package reconcile

import (
	"cmp"
	"slices"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
)

// Latest returns the team's current position: the record with the latest
// timestamp, ties going to the higher runner number and then the farther
// checkpoint. distances maps checkpoint id to distance. ok is false when
// records is empty.
func Latest(records []model.Record, distances map[string]int) (latest model.Record, ok bool) {
	for i, r := range records {
		if i == 0 || later(r, latest, distances) {
			latest = r
		}
	}
	return latest, len(records) > 0
}

func later(a, b model.Record, distances map[string]int) bool {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c > 0
	}
	if a.RunnerNumber != b.RunnerNumber {
		return a.RunnerNumber > b.RunnerNumber
	}
	return distances[a.CheckpointID] > distances[b.CheckpointID]
}

// Progress projects every team's current position from the event's records.
// The result is ordered by team number.
func Progress(teams []model.Team, checkpoints []model.Checkpoint, records []model.Record) []model.TeamProgress {
	distances := make(map[string]int, len(checkpoints))
	for _, cp := range checkpoints {
		distances[cp.ID] = cp.Distance
	}
	byTeam := make(map[string][]model.Record, len(teams))
	for _, r := range records {
		byTeam[r.TeamID] = append(byTeam[r.TeamID], r)
	}

	out := make([]model.TeamProgress, 0, len(teams))
	for _, t := range teams {
		p := model.TeamProgress{Team: t, RecordCount: len(byTeam[t.ID])}
		if latest, ok := Latest(byTeam[t.ID], distances); ok {
			p.Latest = &latest
			p.Distance = distances[latest.CheckpointID]
			p.RunnerNumber = latest.RunnerNumber
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.TeamProgress) int {
		return cmp.Compare(a.Team.TeamNumber, b.Team.TeamNumber)
	})
	return out
}
