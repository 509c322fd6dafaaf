package brackets

import (
	"context"
	"fmt"
	"testing"

	"github.com/adilp/bhmhockey/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTeams returns n teams in seed order with IDs 101, 102, ...
func makeTeams(n int) []*models.TournamentTeam {
	teams := make([]*models.TournamentTeam, 0, n)
	for i := 0; i < n; i++ {
		teams = append(teams, &models.TournamentTeam{
			ID:           101 + i,
			TournamentID: 1,
			Name:         fmt.Sprintf("Team %d", i+1),
		})
	}
	return teams
}

func genParams(format models.TournamentFormat, n int) GenerateParams {
	return GenerateParams{
		Tournament: &models.Tournament{ID: 1, Format: format},
		Teams:      makeTeams(n),
	}
}

func matchByUID(t *testing.T, matches []*GeneratedMatch, uid string) *GeneratedMatch {
	t.Helper()
	for _, m := range matches {
		if m.UID == uid {
			return m
		}
	}
	t.Fatalf("match %s not found", uid)
	return nil
}

func TestSeedOrder(t *testing.T) {
	testCases := []struct {
		size     int
		expected []int
	}{
		{2, []int{0, 1}},
		{4, []int{0, 3, 1, 2}},
		{8, []int{0, 7, 3, 4, 1, 6, 2, 5}},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("size %d", tc.size), func(t *testing.T) {
			assert.Equal(t, tc.expected, seedOrder(tc.size))
		})
	}
}

func TestSingleEliminationMatchCounts(t *testing.T) {
	g := NewSingleEliminationGenerator()

	for n := 2; n <= 16; n++ {
		t.Run(fmt.Sprintf("%d teams", n), func(t *testing.T) {
			matches, err := g.Generate(context.Background(), genParams(models.FormatSingleElimination, n))
			require.NoError(t, err)

			nonBye := 0
			finals := 0
			for _, m := range matches {
				if !m.IsBye {
					nonBye++
				}
				if m.WinnerNextUID == nil {
					finals++
				}
			}
			assert.Equal(t, n-1, nonBye, "non-bye match count")
			assert.Equal(t, 1, finals, "exactly one match without an outgoing pointer")
		})
	}
}

func TestSingleEliminationRejectsTooFewTeams(t *testing.T) {
	g := NewSingleEliminationGenerator()

	for _, n := range []int{0, 1} {
		_, err := g.Generate(context.Background(), genParams(models.FormatSingleElimination, n))
		assert.ErrorIs(t, err, ErrInsufficientTeams)
	}
}

func TestSingleEliminationByesGoToTopSeeds(t *testing.T) {
	g := NewSingleEliminationGenerator()

	// 6 teams in an 8 slot bracket: seeds 1 and 2 sit out round 1.
	matches, err := g.Generate(context.Background(), genParams(models.FormatSingleElimination, 6))
	require.NoError(t, err)

	byeTeams := make(map[int]bool)
	for _, m := range matches {
		if m.IsBye {
			require.NotNil(t, m.ByeTeamID)
			byeTeams[*m.ByeTeamID] = true
		}
	}
	assert.Equal(t, map[int]bool{101: true, 102: true}, byeTeams)
}

func TestSingleEliminationByeWinnersAdvanceEagerly(t *testing.T) {
	g := NewSingleEliminationGenerator()

	matches, err := g.Generate(context.Background(), genParams(models.FormatSingleElimination, 3))
	require.NoError(t, err)

	// W1M1 is seed 1's bye; its team must already occupy the final's slot.
	bye := matchByUID(t, matches, "W1M1")
	require.True(t, bye.IsBye)
	require.NotNil(t, bye.WinnerNextUID)

	final := matchByUID(t, matches, *bye.WinnerNextUID)
	occupant := final.TeamInSlot(*bye.WinnerNextSlot)
	require.NotNil(t, occupant)
	assert.Equal(t, 101, *occupant)
}

func TestSingleEliminationSuccessorWiring(t *testing.T) {
	g := NewSingleEliminationGenerator()

	matches, err := g.Generate(context.Background(), genParams(models.FormatSingleElimination, 8))
	require.NoError(t, err)

	byUID := make(map[string]*GeneratedMatch)
	for _, m := range matches {
		byUID[m.UID] = m
	}

	for _, m := range matches {
		if m.WinnerNextUID == nil {
			assert.Equal(t, "W3M1", m.UID, "only the final lacks a successor")
			continue
		}
		next, ok := byUID[*m.WinnerNextUID]
		require.True(t, ok, "successor %s of %s exists", *m.WinnerNextUID, m.UID)
		assert.Equal(t, m.Round+1, next.Round)
		assert.Equal(t, (m.Number+1)/2, next.Number)
		if m.Number%2 == 0 {
			assert.Equal(t, models.SlotHome, *m.WinnerNextSlot)
		} else {
			assert.Equal(t, models.SlotAway, *m.WinnerNextSlot)
		}
	}
}

func TestSingleEliminationThirdPlaceMatch(t *testing.T) {
	g := NewSingleEliminationGenerator()

	params := genParams(models.FormatSingleElimination, 4)
	params.Tournament.ThirdPlaceMatch = true

	matches, err := g.Generate(context.Background(), params)
	require.NoError(t, err)

	third := matchByUID(t, matches, "3P")
	assert.Nil(t, third.WinnerNextUID)

	for _, uid := range []string{"W1M1", "W1M2"} {
		semi := matchByUID(t, matches, uid)
		require.NotNil(t, semi.LoserNextUID)
		assert.Equal(t, "3P", *semi.LoserNextUID)
	}

	semi1 := matchByUID(t, matches, "W1M1")
	semi2 := matchByUID(t, matches, "W1M2")
	assert.Equal(t, models.SlotAway, *semi1.LoserNextSlot)
	assert.Equal(t, models.SlotHome, *semi2.LoserNextSlot)
}
