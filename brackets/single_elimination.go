package brackets

import (
	"context"
	"fmt"
	"math"

	"github.com/adilp/bhmhockey/models"
)

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() Generator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) Name() string { return "SingleElimination" }

// Generate builds a fully wired single elimination tree. Teams that do not
// fill the power-of-two bracket receive first-round byes, and the fold
// pairing puts those byes against the highest seeds (1 vs N, 2 vs N-1, ...).
// Bye matches are emitted already decided and their winner is placed into
// the next round at generation time.
func (g *SingleEliminationGenerator) Generate(ctx context.Context, params GenerateParams) ([]*GeneratedMatch, error) {
	if len(params.Teams) < 2 {
		return nil, ErrInsufficientTeams
	}

	matches, byUID, totalRounds := buildEliminationTree(params.Teams, models.SideWinners, "W")

	if params.Tournament != nil && params.Tournament.ThirdPlaceMatch && totalRounds >= 2 {
		matches = append(matches, attachThirdPlaceMatch(byUID, totalRounds))
	}

	return matches, nil
}

// buildEliminationTree generates rounds 1..log2(size) of one elimination
// bracket with the given side tag and UID prefix, wiring each match's
// winner pointer to round+1, match ceil(number/2). The final match of the
// tree is left without an outgoing pointer.
func buildEliminationTree(teams []*models.TournamentTeam, side models.BracketSide, prefix string) ([]*GeneratedMatch, map[string]*GeneratedMatch, int) {
	n := len(teams)
	bracketSize := nextPowerOfTwo(n)
	totalRounds := int(math.Log2(float64(bracketSize)))

	byUID := make(map[string]*GeneratedMatch)
	matches := make([]*GeneratedMatch, 0, bracketSize-1)

	// Round 1 from the seed fold.
	order := seedOrder(bracketSize)
	for i := 0; i < len(order); i += 2 {
		number := i/2 + 1
		m := &GeneratedMatch{
			UID:      eliminationUID(prefix, 1, number),
			Side:     sidePtr(side),
			Round:    1,
			Number:   number,
			Position: strPtr(roundLabel(totalRounds, 1, number)),
		}
		if a := order[i]; a < n {
			m.HomeTeamID = intPtr(teams[a].ID)
		}
		if b := order[i+1]; b < n {
			m.AwayTeamID = intPtr(teams[b].ID)
		}
		// The fold never pairs two byes: bye count is below bracketSize/2.
		if m.HomeTeamID == nil || m.AwayTeamID == nil {
			m.IsBye = true
			if m.HomeTeamID != nil {
				m.ByeTeamID = m.HomeTeamID
			} else {
				m.ByeTeamID = m.AwayTeamID
			}
		}
		matches = append(matches, m)
		byUID[m.UID] = m
	}

	// Later rounds are placeholders filled by advancement.
	for r := 2; r <= totalRounds; r++ {
		count := bracketSize >> uint(r)
		for number := 1; number <= count; number++ {
			m := &GeneratedMatch{
				UID:      eliminationUID(prefix, r, number),
				Side:     sidePtr(side),
				Round:    r,
				Number:   number,
				Position: strPtr(roundLabel(totalRounds, r, number)),
			}
			matches = append(matches, m)
			byUID[m.UID] = m
		}
	}

	// Winner wiring, all rounds except the tree's final.
	for _, m := range matches {
		if m.Round == totalRounds {
			continue
		}
		nextUID := eliminationUID(prefix, m.Round+1, (m.Number+1)/2)
		m.WinnerNextUID = strPtr(nextUID)
		m.WinnerNextSlot = intPtr(successorSlot(m.Number))
	}

	// Eager bye advancement into round 2.
	for _, m := range matches {
		if !m.IsBye || m.WinnerNextUID == nil {
			continue
		}
		next := byUID[*m.WinnerNextUID]
		if *m.WinnerNextSlot == models.SlotHome {
			next.HomeTeamID = m.ByeTeamID
		} else {
			next.AwayTeamID = m.ByeTeamID
		}
	}

	return matches, byUID, totalRounds
}

// attachThirdPlaceMatch wires both semifinal losers into an extra match
// played alongside the final.
func attachThirdPlaceMatch(byUID map[string]*GeneratedMatch, totalRounds int) *GeneratedMatch {
	third := &GeneratedMatch{
		UID:      "3P",
		Side:     sidePtr(models.SideWinners),
		Round:    totalRounds,
		Number:   2,
		Position: strPtr("Third Place"),
	}
	for number := 1; number <= 2; number++ {
		semi := byUID[eliminationUID("W", totalRounds-1, number)]
		semi.LoserNextUID = strPtr(third.UID)
		semi.LoserNextSlot = intPtr(successorSlot(number))
	}
	return third
}

func eliminationUID(prefix string, round, number int) string {
	return fmt.Sprintf("%s%dM%d", prefix, round, number)
}

// nextPowerOfTwo rounds up, so 5 becomes 8.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

// seedOrder returns 0-based seed indices in first-round slot order, folded
// so that the expected strong-vs-weak matchups are deferred to the latest
// possible round: 2 -> [0 1], 4 -> [0 3 1 2], 8 -> [0 7 3 4 1 6 2 5].
func seedOrder(bracketSize int) []int {
	order := []int{0}
	for len(order) < bracketSize {
		doubled := len(order) * 2
		next := make([]int, 0, doubled)
		for _, seed := range order {
			next = append(next, seed, doubled-1-seed)
		}
		order = next
	}
	return order
}

func roundLabel(totalRounds, round, number int) string {
	switch totalRounds - round {
	case 0:
		return "Final"
	case 1:
		return fmt.Sprintf("Semifinal %d", number)
	case 2:
		return fmt.Sprintf("Quarterfinal %d", number)
	default:
		return fmt.Sprintf("Round %d Match %d", round, number)
	}
}
