package service

import "errors"

var (
	ErrTournamentNotFound    = errors.New("tournament not found")
	ErrTeamNotFound          = errors.New("team not found")
	ErrTeamAlreadyRegistered = errors.New("team is already registered in this tournament")
	ErrTeamNotRegistered     = errors.New("team is not registered in this tournament")
	ErrValidationFailed      = errors.New("validation failed")
	ErrStaleBracket          = errors.New("bracket changed concurrently, retry")
	ErrInvalidStatus         = errors.New("invalid tournament status")
	ErrStatusConflict        = errors.New("tournament status does not match its bracket")
)
