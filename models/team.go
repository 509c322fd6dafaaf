package models

import "time"

type TeamStatus string

const (
	TeamRegistered TeamStatus = "registered"
	TeamWaitlisted TeamStatus = "waitlisted"
	TeamActive     TeamStatus = "active"
	TeamEliminated TeamStatus = "eliminated"
	TeamWinner     TeamStatus = "winner"
)

// TournamentTeam belongs to exactly one tournament. The running statistics
// are mutated only by the match result processor and the standings updater.
type TournamentTeam struct {
	ID           int        `json:"id" db:"id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	Name         string     `json:"name" db:"name"`
	CaptainID    *int       `json:"captain_id,omitempty" db:"captain_id"`
	Status       TeamStatus `json:"status" db:"status"`

	// Seed is assigned at bracket generation, nil before that.
	Seed *int `json:"seed,omitempty" db:"seed"`

	Wins         int `json:"wins" db:"wins"`
	Losses       int `json:"losses" db:"losses"`
	Ties         int `json:"ties" db:"ties"`
	Points       int `json:"points" db:"points"`
	GoalsFor     int `json:"goals_for" db:"goals_for"`
	GoalsAgainst int `json:"goals_against" db:"goals_against"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (t *TournamentTeam) GoalDifference() int {
	return t.GoalsFor - t.GoalsAgainst
}
