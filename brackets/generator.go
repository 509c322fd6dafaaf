package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/adilp/bhmhockey/models"
)

var ErrInsufficientTeams = errors.New("at least 2 teams are required to generate a bracket")

// GenerateParams carries the tournament and its seeded team list.
// Teams[0] is seed 1, Teams[1] seed 2, and so on.
type GenerateParams struct {
	Tournament *models.Tournament
	Teams      []*models.TournamentTeam
}

// GeneratedMatch is the generator's in-memory match node. UIDs are local to
// one generation run; the bracket service maps them to DB identifiers when
// it persists the set and wires the successor pointers.
//
// Slot convention, used everywhere a team moves between matches: a match
// with an even Number feeds the home slot of its successor, an odd Number
// feeds the away slot.
type GeneratedMatch struct {
	UID      string
	Side     *models.BracketSide
	Round    int
	Number   int
	Position *string

	HomeTeamID *int
	AwayTeamID *int

	// Bye matches are emitted with the receiving team already set as the
	// winner; the generator also places that team into the successor slot
	// so advancement happens eagerly at generation time.
	IsBye     bool
	ByeTeamID *int

	WinnerNextUID  *string
	WinnerNextSlot *int
	LoserNextUID   *string
	LoserNextSlot  *int
}

// TeamInSlot returns the team currently placed in the given slot.
func (m *GeneratedMatch) TeamInSlot(slot int) *int {
	if slot == models.SlotHome {
		return m.HomeTeamID
	}
	return m.AwayTeamID
}

type Generator interface {
	Generate(ctx context.Context, params GenerateParams) ([]*GeneratedMatch, error)
	Name() string
}

// ForFormat selects the generator for a tournament format.
func ForFormat(format models.TournamentFormat) (Generator, error) {
	switch format {
	case models.FormatSingleElimination:
		return NewSingleEliminationGenerator(), nil
	case models.FormatDoubleElimination:
		return NewDoubleEliminationGenerator(), nil
	case models.FormatRoundRobin:
		return NewRoundRobinGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported tournament format %q", format)
	}
}

// successorSlot implements the documented convention: even match number
// feeds home, odd feeds away.
func successorSlot(matchNumber int) int {
	if matchNumber%2 == 0 {
		return models.SlotHome
	}
	return models.SlotAway
}

func sidePtr(s models.BracketSide) *models.BracketSide { return &s }

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
