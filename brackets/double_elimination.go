package brackets

import (
	"context"
	"fmt"

	"github.com/adilp/bhmhockey/models"
)

type DoubleEliminationGenerator struct{}

func NewDoubleEliminationGenerator() Generator {
	return &DoubleEliminationGenerator{}
}

func (g *DoubleEliminationGenerator) Name() string { return "DoubleElimination" }

// Generate builds a winners bracket, a mirrored losers bracket sized to
// receive the drops from each winners round, and a grand final between the
// two bracket champions.
//
// Losers bracket layout for a bracket of size 2^N (N >= 2), rounds
// 1..2N-2:
//
//	round 1        pairs the winners round 1 losers, size/4 matches
//	round 2k-2     "drop" round: losers round survivor (home) meets the
//	               winners round k loser (away), size/2^k matches, k=2..N
//	round 2k-1     "minor" round: drop round winners pair up among
//	               themselves, size/2^(k+1) matches, k=2..N-1
//
// Drops from even winners rounds are mapped in reverse match order; drops
// from odd rounds map directly. The alternation keeps teams from the same
// winners pairing apart until the losers bracket forces a rematch.
//
// Winners-bracket byes never produce a drop. Losers matches left with a
// permanently empty slot are removed here and the surviving feeder is
// rewired past them, so the persisted bracket has no dead nodes.
func (g *DoubleEliminationGenerator) Generate(ctx context.Context, params GenerateParams) ([]*GeneratedMatch, error) {
	if len(params.Teams) < 2 {
		return nil, ErrInsufficientTeams
	}

	matches, byUID, totalRounds := buildEliminationTree(params.Teams, models.SideWinners, "W")
	size := nextPowerOfTwo(len(params.Teams))

	grandFinal := &GeneratedMatch{
		UID:      "GF",
		Side:     sidePtr(models.SideGrandFinal),
		Round:    1,
		Number:   1,
		Position: strPtr("Grand Final"),
	}

	wbFinal := byUID[eliminationUID("W", totalRounds, 1)]
	wbFinal.WinnerNextUID = strPtr(grandFinal.UID)
	wbFinal.WinnerNextSlot = intPtr(models.SlotHome)

	if totalRounds == 1 {
		// Two teams: the loser of the only match gets a second chance in
		// the grand final directly.
		wbFinal.LoserNextUID = strPtr(grandFinal.UID)
		wbFinal.LoserNextSlot = intPtr(models.SlotAway)
		return append(matches, grandFinal), nil
	}

	lbRounds := 2*totalRounds - 2
	for r := 1; r <= lbRounds; r++ {
		count := losersRoundSize(size, r)
		for number := 1; number <= count; number++ {
			m := &GeneratedMatch{
				UID:      eliminationUID("L", r, number),
				Side:     sidePtr(models.SideLosers),
				Round:    r,
				Number:   number,
				Position: strPtr(losersLabel(lbRounds, r, number)),
			}
			matches = append(matches, m)
			byUID[m.UID] = m
		}
	}

	// Internal losers-bracket advancement.
	for _, m := range matches {
		if m.Side == nil || *m.Side != models.SideLosers {
			continue
		}
		switch {
		case m.Round == lbRounds:
			m.WinnerNextUID = strPtr(grandFinal.UID)
			m.WinnerNextSlot = intPtr(models.SlotAway)
		case m.Round%2 == 1:
			// Into the next drop round, same match number; the winners
			// bracket drop takes the away slot there.
			m.WinnerNextUID = strPtr(eliminationUID("L", m.Round+1, m.Number))
			m.WinnerNextSlot = intPtr(models.SlotHome)
		default:
			m.WinnerNextUID = strPtr(eliminationUID("L", m.Round+1, (m.Number+1)/2))
			m.WinnerNextSlot = intPtr(successorSlot(m.Number))
		}
	}

	// Winners-bracket drops.
	for _, m := range matches {
		if m.Side == nil || *m.Side != models.SideWinners {
			continue
		}
		if m.Round == 1 {
			m.LoserNextUID = strPtr(eliminationUID("L", 1, (m.Number+1)/2))
			m.LoserNextSlot = intPtr(successorSlot(m.Number))
			continue
		}
		dropRound := 2*m.Round - 2
		count := losersRoundSize(size, dropRound)
		target := m.Number
		if m.Round%2 == 0 {
			target = count + 1 - m.Number
		}
		m.LoserNextUID = strPtr(eliminationUID("L", dropRound, target))
		m.LoserNextSlot = intPtr(models.SlotAway)
	}

	matches = append(matches, grandFinal)
	return pruneVoidLosersMatches(matches), nil
}

// losersRoundSize returns the match count of one losers bracket round.
func losersRoundSize(size, round int) int {
	if round == 1 {
		return size / 4
	}
	if round%2 == 0 {
		k := (round + 2) / 2
		return size >> uint(k)
	}
	k := (round + 1) / 2
	return size >> uint(k+1)
}

func losersLabel(lbRounds, round, number int) string {
	if round == lbRounds {
		return "Losers Final"
	}
	return fmt.Sprintf("Losers Round %d Match %d", round, number)
}

type slotRef struct {
	uid  string
	slot int
}

// pruneVoidLosersMatches removes losers matches that can never fill both
// slots because a winners-bracket bye produces no drop. A match with one
// void slot is a structural bye: its surviving feeder is rewired straight
// to the match's own destination. A match with two void slots disappears
// and voids its destination slot in turn.
func pruneVoidLosersMatches(matches []*GeneratedMatch) []*GeneratedMatch {
	void := make(map[slotRef]bool)
	for _, m := range matches {
		if m.IsBye && m.LoserNextUID != nil {
			void[slotRef{*m.LoserNextUID, *m.LoserNextSlot}] = true
			m.LoserNextUID = nil
			m.LoserNextSlot = nil
		}
	}

	removed := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for _, x := range matches {
			if removed[x.UID] || x.Side == nil || *x.Side != models.SideLosers {
				continue
			}
			homeVoid := void[slotRef{x.UID, models.SlotHome}]
			awayVoid := void[slotRef{x.UID, models.SlotAway}]
			if !homeVoid && !awayVoid {
				continue
			}
			removed[x.UID] = true
			changed = true

			dest := slotRef{*x.WinnerNextUID, *x.WinnerNextSlot}
			if homeVoid && awayVoid {
				void[dest] = true
				continue
			}
			for _, src := range matches {
				if removed[src.UID] {
					continue
				}
				if src.WinnerNextUID != nil && *src.WinnerNextUID == x.UID {
					src.WinnerNextUID = strPtr(dest.uid)
					src.WinnerNextSlot = intPtr(dest.slot)
				}
				if src.LoserNextUID != nil && *src.LoserNextUID == x.UID {
					src.LoserNextUID = strPtr(dest.uid)
					src.LoserNextSlot = intPtr(dest.slot)
				}
			}
		}
	}

	if len(removed) == 0 {
		return matches
	}
	kept := make([]*GeneratedMatch, 0, len(matches)-len(removed))
	for _, m := range matches {
		if !removed[m.UID] {
			kept = append(kept, m)
		}
	}
	return kept
}
