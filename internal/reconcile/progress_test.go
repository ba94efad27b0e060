package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
)

func TestLatest(t *testing.T) {
	distances := map[string]int{"cp-1": 1, "cp-2": 2, "cp-3": 3}

	_, ok := Latest(nil, distances)
	assert.False(t, ok)

	early := model.Record{ID: "a", CheckpointID: "cp-3", RunnerNumber: 1, Timestamp: t0}
	late := model.Record{ID: "b", CheckpointID: "cp-1", RunnerNumber: 2, Timestamp: t0.Add(time.Minute)}
	got, ok := Latest([]model.Record{late, early}, distances)
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)
}

func TestLatest_TieBreak(t *testing.T) {
	distances := map[string]int{"cp-1": 1, "cp-2": 2, "cp-3": 3}
	batch := []model.Record{
		{ID: "auto-1", CheckpointID: "cp-1", RunnerNumber: 2, Timestamp: t0},
		{ID: "target", CheckpointID: "cp-3", RunnerNumber: 2, Timestamp: t0},
		{ID: "auto-2", CheckpointID: "cp-2", RunnerNumber: 2, Timestamp: t0},
		{ID: "prev-leg", CheckpointID: "cp-3", RunnerNumber: 1, Timestamp: t0},
	}

	for i := 0; i < len(batch); i++ {
		rotated := append(append([]model.Record{}, batch[i:]...), batch[:i]...)
		got, ok := Latest(rotated, distances)
		require.True(t, ok)
		assert.Equal(t, "target", got.ID, "rotation %d", i)
	}
}

func TestProgress(t *testing.T) {
	cps := course(1, 2)
	teams := []model.Team{
		{ID: "t2", TeamNumber: 2, Name: "Dev B"},
		{ID: "t1", TeamNumber: 1, Name: "Sales A"},
	}
	records := []model.Record{
		{ID: "r1", TeamID: "t1", CheckpointID: "cp-1", RunnerNumber: 1, Timestamp: t0},
		{ID: "r2", TeamID: "t1", CheckpointID: "cp-2", RunnerNumber: 1, Timestamp: t0.Add(time.Minute)},
	}

	got := Progress(teams, cps, records)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Team.TeamNumber)
	require.NotNil(t, got[0].Latest)
	assert.Equal(t, "r2", got[0].Latest.ID)
	assert.Equal(t, 2, got[0].Distance)
	assert.Equal(t, 1, got[0].RunnerNumber)
	assert.Equal(t, 2, got[0].RecordCount)

	assert.Equal(t, 2, got[1].Team.TeamNumber)
	assert.Nil(t, got[1].Latest)
	assert.Zero(t, got[1].Distance)
	assert.Zero(t, got[1].RecordCount)
}
