package service

import "github.com/AdamBeresnev/courtside/internal/apperr"

// Errors returned by the services. Each carries an apperr.Kind so the HTTP
// boundary can map it without reading the message.
var (
	ErrUnauthenticated = apperr.New(apperr.KindAuthentication, "no authenticated actor")
	ErrForbidden       = apperr.New(apperr.KindAuthorization, "operation not allowed for the current user")

	ErrInvalidSide        = apperr.New(apperr.KindValidation, "side must be A or B")
	ErrInvalidCourt       = apperr.New(apperr.KindValidation, "court number must be positive")
	ErrInvalidScore       = apperr.New(apperr.KindValidation, "game counts must not be negative")
	ErrInvalidStatus      = apperr.New(apperr.KindValidation, "invalid match status")
	ErrInvalidRole        = apperr.New(apperr.KindValidation, "invalid role type")
	ErrInvalidUmpireMode  = apperr.New(apperr.KindValidation, "invalid umpire mode")
	ErrNameRequired       = apperr.New(apperr.KindValidation, "name is required")
	ErrTeamNotInMatch     = apperr.New(apperr.KindValidation, "team does not play in this match")
	ErrDuplicateTeamEntry = apperr.New(apperr.KindValidation, "team entered more than once")

	ErrVersionConflict  = apperr.New(apperr.KindConflict, "match was modified concurrently")
	ErrAlreadyCheckedIn = apperr.New(apperr.KindConflict, "entry is already checked in")
	ErrTokenExhausted   = apperr.New(apperr.KindConflict, "could not allocate a unique day token")
	ErrDayTokenTaken    = apperr.New(apperr.KindConflict, "day token is held by another active entry")

	ErrMatchNotFound        = apperr.New(apperr.KindNotFound, "match not found")
	ErrTournamentNotFound   = apperr.New(apperr.KindNotFound, "tournament not found")
	ErrEntryNotFound        = apperr.New(apperr.KindNotFound, "entry not found")
	ErrTeamNotFound         = apperr.New(apperr.KindNotFound, "team not found")
	ErrUserNotFound         = apperr.New(apperr.KindNotFound, "user not found")
	ErrPermissionNotFound   = apperr.New(apperr.KindNotFound, "permission not found")
	ErrNotificationNotFound = apperr.New(apperr.KindNotFound, "notification not found")

	ErrInvalidTransition  = apperr.New(apperr.KindStateViolation, "transition not allowed from the current status")
	ErrNoWinner           = apperr.New(apperr.KindStateViolation, "score is tied, no winner can be determined")
	ErrMatchClosed        = apperr.New(apperr.KindStateViolation, "match is finished")
	ErrNotFinished        = apperr.New(apperr.KindStateViolation, "match is not finished")
	ErrNothingToUndo      = apperr.New(apperr.KindStateViolation, "nothing to undo")
	ErrMatchStarted       = apperr.New(apperr.KindStateViolation, "match has already started")
	ErrDownstreamFinished = apperr.New(apperr.KindStateViolation, "downstream match has already finished")
	ErrTournamentNotOpen  = apperr.New(apperr.KindStateViolation, "tournament is not published")
	ErrNoActiveEntries    = apperr.New(apperr.KindStateViolation, "tournament has no active entries")
	ErrTournamentStatus   = apperr.New(apperr.KindStateViolation, "tournament status can only move forward")
	ErrEntryInactive      = apperr.New(apperr.KindStateViolation, "entry is not active")
	ErrSideVacant         = apperr.New(apperr.KindStateViolation, "winning side has no team")

	ErrPropagation = apperr.New(apperr.KindDependency, "bracket propagation failed")
)
