package brackets

import "context"

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() Generator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) Name() string { return "RoundRobin" }

// Generate schedules every unique pairing with the circle method: one team
// is fixed and the rest rotate one position per round, so no team plays
// twice in the same round. With an odd team count a ghost slot joins the
// rotation and whoever draws it sits the round out; no match row is
// emitted for the bye, and the slot rotates like any other. Round robin
// matches carry no successor pointers; final placement comes from the
// standings calculator.
func (g *RoundRobinGenerator) Generate(ctx context.Context, params GenerateParams) ([]*GeneratedMatch, error) {
	teams := params.Teams
	if len(teams) < 2 {
		return nil, ErrInsufficientTeams
	}

	// Circle positions hold team indices; -1 is the ghost.
	positions := make([]int, 0, len(teams)+1)
	for i := range teams {
		positions = append(positions, i)
	}
	if len(positions)%2 == 1 {
		positions = append(positions, -1)
	}
	n := len(positions)
	rounds := n - 1

	matches := make([]*GeneratedMatch, 0, len(teams)*(len(teams)-1)/2)
	for r := 1; r <= rounds; r++ {
		number := 0
		for i := 0; i < n/2; i++ {
			a, b := positions[i], positions[n-1-i]
			if a == -1 || b == -1 {
				continue
			}
			number++
			home, away := teams[a], teams[b]
			// Alternate who hosts the fixed seed so home games even out.
			if i == 0 && r%2 == 0 {
				home, away = away, home
			}
			matches = append(matches, &GeneratedMatch{
				UID:        roundRobinUID(r, number),
				Round:      r,
				Number:     number,
				HomeTeamID: intPtr(home.ID),
				AwayTeamID: intPtr(away.ID),
			})
		}
		positions = rotateCircle(positions)
	}

	return matches, nil
}

// rotateCircle keeps position 0 fixed and rotates everything else one step
// clockwise.
func rotateCircle(positions []int) []int {
	n := len(positions)
	next := make([]int, n)
	next[0] = positions[0]
	next[1] = positions[n-1]
	copy(next[2:], positions[1:n-1])
	return next
}

func roundRobinUID(round, number int) string {
	return eliminationUID("RR", round, number)
}
