package models

import "time"

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchCancelled  MatchStatus = "cancelled"
	MatchForfeit    MatchStatus = "forfeit"
	MatchBye        MatchStatus = "bye"
)

// Decided reports whether the match produced a result.
func (s MatchStatus) Decided() bool {
	return s == MatchCompleted || s == MatchForfeit || s == MatchBye
}

// BracketSide tags a match's tree in double elimination.
type BracketSide string

const (
	SideWinners    BracketSide = "winners"
	SideLosers     BracketSide = "losers"
	SideGrandFinal BracketSide = "grand_final"
)

// Successor slot numbers. A match with an even MatchNumber feeds the home
// slot of its successor, an odd one feeds the away slot.
const (
	SlotHome = 1
	SlotAway = 2
)

// TournamentMatch is a node in the bracket tree. Successor relationships are
// stored as optional identifiers, never embedded structures, so the match
// graph stays a forward-only DAG traversed by repository lookup.
type TournamentMatch struct {
	ID           int `json:"id" db:"id"`
	TournamentID int `json:"tournament_id" db:"tournament_id"`

	Round           int          `json:"round" db:"round"`
	MatchNumber     int          `json:"match_number" db:"match_number"`
	BracketSide     *BracketSide `json:"bracket_side,omitempty" db:"bracket_side"`
	BracketPosition *string      `json:"bracket_position,omitempty" db:"bracket_position"`

	// Nil team slots are byes or TBD feeds from earlier matches.
	HomeTeamID *int `json:"home_team_id,omitempty" db:"home_team_id"`
	AwayTeamID *int `json:"away_team_id,omitempty" db:"away_team_id"`

	HomeScore *int        `json:"home_score,omitempty" db:"home_score"`
	AwayScore *int        `json:"away_score,omitempty" db:"away_score"`
	Status    MatchStatus `json:"status" db:"status"`

	WinnerTeamID  *int    `json:"winner_team_id,omitempty" db:"winner_team_id"`
	ForfeitTeamID *int    `json:"forfeit_team_id,omitempty" db:"forfeit_team_id"`
	ForfeitReason *string `json:"forfeit_reason,omitempty" db:"forfeit_reason"`

	NextMatchID      *int `json:"next_match_id,omitempty" db:"next_match_id"`
	NextMatchSlot    *int `json:"next_match_slot,omitempty" db:"next_match_slot"`
	LoserNextMatchID *int `json:"loser_next_match_id,omitempty" db:"loser_next_match_id"`
	LoserNextSlot    *int `json:"loser_next_slot,omitempty" db:"loser_next_slot"`

	ScheduledAt time.Time `json:"scheduled_at" db:"scheduled_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TeamInSlot returns the team occupying the given slot, nil if unset.
func (m *TournamentMatch) TeamInSlot(slot int) *int {
	if slot == SlotHome {
		return m.HomeTeamID
	}
	return m.AwayTeamID
}

// LoserTeamID returns the losing side of a decided match, nil for byes.
func (m *TournamentMatch) LoserTeamID() *int {
	if m.WinnerTeamID == nil || m.Status == MatchBye {
		return nil
	}
	if m.HomeTeamID != nil && *m.HomeTeamID == *m.WinnerTeamID {
		return m.AwayTeamID
	}
	return m.HomeTeamID
}
