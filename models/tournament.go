package models

import "time"

// TournamentFormat matches the ENUM in the DB.
type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single_elimination"
	FormatDoubleElimination TournamentFormat = "double_elimination"
	FormatRoundRobin        TournamentFormat = "round_robin"
)

type TournamentStatus string

const (
	TournamentDraft              TournamentStatus = "draft"
	TournamentOpen               TournamentStatus = "open"
	TournamentRegistrationClosed TournamentStatus = "registration_closed"
	TournamentInProgress         TournamentStatus = "in_progress"
	TournamentCompleted          TournamentStatus = "completed"
	TournamentPostponed          TournamentStatus = "postponed"
	TournamentCancelled          TournamentStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s TournamentStatus) Terminal() bool {
	return s == TournamentCompleted || s == TournamentCancelled
}

// TournamentAction is a state machine action, not a status.
type TournamentAction string

const (
	ActionPublish           TournamentAction = "publish"
	ActionCloseRegistration TournamentAction = "close_registration"
	ActionStart             TournamentAction = "start"
	ActionPostpone          TournamentAction = "postpone"
	ActionResume            TournamentAction = "resume"
	ActionCancel            TournamentAction = "cancel"
	ActionComplete          TournamentAction = "complete"
)

// TiebreakCriterion orders round-robin teams with equal points.
type TiebreakCriterion string

const (
	TiebreakHeadToHead     TiebreakCriterion = "head_to_head"
	TiebreakGoalDifference TiebreakCriterion = "goal_difference"
	TiebreakGoalsScored    TiebreakCriterion = "goals_scored"
)

func DefaultTiebreakerOrder() []TiebreakCriterion {
	return []TiebreakCriterion{TiebreakHeadToHead, TiebreakGoalDifference, TiebreakGoalsScored}
}

type Tournament struct {
	ID          int              `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Description *string          `json:"description,omitempty" db:"description"`
	OrganizerID int              `json:"organizer_id" db:"organizer_id"`
	Format      TournamentFormat `json:"format" db:"format"`
	Status      TournamentStatus `json:"status" db:"status"`

	// PriorStatus is set while Status is postponed so Resume can restore it.
	PriorStatus *TournamentStatus `json:"prior_status,omitempty" db:"prior_status"`

	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`
	Location  *string   `json:"location,omitempty" db:"location"`

	MinTeamSize int `json:"min_team_size" db:"min_team_size"`
	MaxTeamSize int `json:"max_team_size" db:"max_team_size"`
	MaxTeams    int `json:"max_teams" db:"max_teams"`
	FeeCents    int `json:"fee_cents" db:"fee_cents"`

	// Round-robin point weights.
	PointsWin  int `json:"points_win" db:"points_win"`
	PointsTie  int `json:"points_tie" db:"points_tie"`
	PointsLoss int `json:"points_loss" db:"points_loss"`

	// Persisted as a JSON array column; empty means DefaultTiebreakerOrder.
	TiebreakerOrder []TiebreakCriterion `json:"tiebreaker_order,omitempty" db:"-"`

	ThirdPlaceMatch bool `json:"third_place_match" db:"third_place_match"`
	GrandFinalReset bool `json:"grand_final_reset" db:"grand_final_reset"`

	WinnerTeamID *int      `json:"winner_team_id,omitempty" db:"winner_team_id"`
	LogoKey      *string   `json:"-" db:"logo_key"`
	LogoURL      *string   `json:"logo_url,omitempty" db:"-"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	// Optional linked entities, populated by services.
	Teams   []TournamentTeam  `json:"teams,omitempty" db:"-"`
	Matches []TournamentMatch `json:"matches,omitempty" db:"-"`
}

// Tiebreakers returns the configured order, falling back to the default.
func (t *Tournament) Tiebreakers() []TiebreakCriterion {
	if len(t.TiebreakerOrder) == 0 {
		return DefaultTiebreakerOrder()
	}
	return t.TiebreakerOrder
}

func (t *Tournament) ChargesFee() bool {
	return t.FeeCents > 0
}
