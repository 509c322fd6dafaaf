package models

import "time"

// TeamStanding is one row of a round-robin table. Persisted rows are a
// cache recomputed from completed matches; ComputeStandings is the source
// of truth.
type TeamStanding struct {
	ID           int       `json:"id,omitempty" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	TeamID       int       `json:"team_id" db:"team_id"`
	TeamName     string    `json:"team_name,omitempty" db:"-"`
	GamesPlayed  int       `json:"games_played" db:"games_played"`
	Wins         int       `json:"wins" db:"wins"`
	Ties         int       `json:"ties" db:"ties"`
	Losses       int       `json:"losses" db:"losses"`
	Points       int       `json:"points" db:"points"`
	GoalsFor     int       `json:"goals_for" db:"goals_for"`
	GoalsAgainst int       `json:"goals_against" db:"goals_against"`
	Rank         int       `json:"rank" db:"rank"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

func (s *TeamStanding) GoalDifference() int {
	return s.GoalsFor - s.GoalsAgainst
}
