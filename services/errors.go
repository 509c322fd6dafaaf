package services

import "errors"

// Errors shared across services and the HTTP mapping layer.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	// Authentication and authorization
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Tournament lifecycle
	ErrTournamentNotFound       = errors.New("tournament not found")
	ErrInvalidStatusTransition  = errors.New("invalid tournament status transition")
	ErrTournamentNotEditable    = errors.New("tournament can no longer be edited")
	ErrTournamentNotDeletable   = errors.New("only draft tournaments can be deleted")
	ErrTournamentDatesRequired  = errors.New("tournament start and end dates are required")
	ErrTournamentInvalidDates   = errors.New("tournament start date must be before end date")
	ErrBracketRequired          = errors.New("tournament cannot start without a bracket")
	ErrMatchesStillUnfinished   = errors.New("tournament has unfinished matches")
	ErrTournamentNameConflict   = errors.New("tournament name already exists for this organizer")
	ErrInvalidTeamSizeRange     = errors.New("minimum team size cannot exceed maximum team size")
	ErrInvalidTournamentForStep = errors.New("tournament status does not allow this operation")

	// Bracket generation
	ErrNotEnoughTeams      = errors.New("not enough teams to generate a bracket")
	ErrUnsupportedFormat   = errors.New("unsupported tournament format")
	ErrStandingsNotEnabled = errors.New("standings are only kept for round robin tournaments")

	// Match results
	ErrMatchNotFound         = errors.New("match not found")
	ErrMatchAlreadyDecided   = errors.New("match result has already been recorded")
	ErrMatchNotPlayable      = errors.New("match is not in a playable state")
	ErrTeamsNotAssigned      = errors.New("both teams must be assigned before reporting a result")
	ErrTieNotAllowed         = errors.New("ties are only allowed in round robin tournaments")
	ErrNegativeScore         = errors.New("scores cannot be negative")
	ErrSlotAlreadyTaken      = errors.New("advancement slot is already occupied")
	ErrForfeitTeamNotInMatch = errors.New("forfeiting team is not part of this match")

	// Teams
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamNameConflict = errors.New("team name is already taken in this tournament")
	ErrTournamentFull   = errors.New("tournament has reached its team limit")

	// Registrations and waitlist
	ErrRegistrationNotOpen    = errors.New("registration is not open")
	ErrAlreadyRegistered      = errors.New("user already has an active registration")
	ErrRegistrationNotFound   = errors.New("registration not found")
	ErrRegistrationNotPayable = errors.New("registration has no pending payment")

	// Events
	ErrEventNotFound     = errors.New("event not found")
	ErrEventNotEditable  = errors.New("event can no longer be edited")
	ErrEventInPast       = errors.New("event start time is in the past")
	ErrInvalidCapacity   = errors.New("capacity must be positive")
	ErrEventNotCancelled = errors.New("event is not cancelled")

	// Users
	ErrUserNotFound      = errors.New("user not found")
	ErrUserEmailConflict = errors.New("email address is already in use")
)
