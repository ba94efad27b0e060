package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/database"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/service"
)

const demo = `
event:
  name: Office Ekiden
  date: 2024-10-10
  status: running
  links:
    - name: Results
      url: https://example.org/results
checkpoints: [1, 2, 3, 4]
teams:
  - number: 1
    name: Sales A
    members: [Yamada, Sato, Suzuki, Tanaka, Takahashi]
  - number: 2
    name: Dev B
    members: [Ito, Watanabe]
`

func TestLoad(t *testing.T) {
	f, err := Load(strings.NewReader(demo))
	require.NoError(t, err)
	assert.Equal(t, "Office Ekiden", f.Event.Name)
	assert.Equal(t, []int{1, 2, 3, 4}, f.Checkpoints)
	require.Len(t, f.Teams, 2)
	assert.Equal(t, "Takahashi", f.Teams[0].Members[4])
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "event: {date: 2024-10-10}", "event.name"},
		{"bad date", "event: {name: x, date: tomorrow}", "event.date"},
		{"unknown field", "event: {name: x, date: 2024-10-10, venue: park}", "venue"},
		{"repeated team", "event: {name: x, date: 2024-10-10}\nteams: [{number: 1, name: a}, {number: 1, name: b}]", "listed twice"},
		{"too many members", "event: {name: x, date: 2024-10-10}\nteams: [{number: 1, name: a, members: [a, b, c, d, e, f]}]", "at most 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	svc := service.NewEventService(sqlite.NewEventRepository(db), sqlite.NewTeamRepository(db))

	f, err := Load(strings.NewReader(demo))
	require.NoError(t, err)
	event, err := Apply(ctx, svc, f)
	require.NoError(t, err)

	got, err := svc.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "running", got.Status)
	assert.Equal(t, 2024, got.Date.Year())
	require.NotNil(t, got.Link1URL)
	assert.Equal(t, "https://example.org/results", *got.Link1URL)
	assert.Nil(t, got.Link2URL)
	assert.Len(t, got.Checkpoints, 4)
	require.Len(t, got.Teams, 2)
	assert.Equal(t, "Ito", got.Teams[1].Members[0])
	assert.Empty(t, got.Teams[1].Members[4])
}
