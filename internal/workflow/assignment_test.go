package workflow

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

func TestSelectTeamPrefersUnderloadedTeam(t *testing.T) {
	loads := []TeamLoad{{"A", 0}, {"B", 3}, {"C", 3}}
	assert.Equal(t, 3.0, FairnessThreshold(loads))

	picker := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		id, err := SelectTeam(loads, picker)
		require.NoError(t, err)
		assert.Equal(t, "A", id)
	}
}

func TestSelectTeamSingleTeamShortCircuits(t *testing.T) {
	called := false
	picker := PickerFunc(func(n int) int {
		called = true
		return 0
	})
	id, err := SelectTeam([]TeamLoad{{"only", 99}}, picker)
	require.NoError(t, err)
	assert.Equal(t, "only", id)
	assert.False(t, called)
}

func TestSelectTeamNoTeams(t *testing.T) {
	_, err := SelectTeam(nil, nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestEligibleTeamsEqualLoads(t *testing.T) {
	loads := []TeamLoad{{"A", 2}, {"B", 2}}
	assert.ElementsMatch(t, loads, EligibleTeams(loads))
}

func TestSelectTeamRespectsBound(t *testing.T) {
	picker := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		n := 2 + picker.Intn(5)
		loads := make([]TeamLoad, n)
		for i := range loads {
			loads[i] = TeamLoad{TeamID: string(rune('A' + i)), Workload: picker.Intn(10)}
		}
		id, err := SelectTeam(loads, picker)
		require.NoError(t, err)

		threshold := FairnessThreshold(loads)
		anyBelow := false
		var chosen TeamLoad
		for _, load := range loads {
			if float64(load.Workload) < threshold {
				anyBelow = true
			}
			if load.TeamID == id {
				chosen = load
			}
		}
		if anyBelow {
			assert.Less(t, float64(chosen.Workload), threshold)
		}
	}
}

func TestSelectTeamUsesPickerIndex(t *testing.T) {
	loads := []TeamLoad{{"A", 1}, {"B", 1}, {"C", 1}}
	id, err := SelectTeam(loads, PickerFunc(func(n int) int { return n - 1 }))
	require.NoError(t, err)
	assert.Equal(t, "C", id)
}
