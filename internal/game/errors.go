package game

import "errors"

var (
	// ErrBusy is returned when an exchange is already in flight. State is unchanged.
	ErrBusy = errors.New("game: an exchange is already in progress")

	// ErrNoSession is returned when an operation needs a game id and none is assigned.
	ErrNoSession = errors.New("game: no active session")

	// ErrNotReady is returned when the session is not in a phase that accepts the operation.
	ErrNotReady = errors.New("game: session is not ready for this operation")

	// ErrCharacterRequired is returned when a character has no name.
	ErrCharacterRequired = errors.New("game: character name is required")

	// ErrSessionActive is returned when starting an adventure over an established session.
	ErrSessionActive = errors.New("game: session already established; end it first")

	// ErrSessionEnded is returned when EndGame ran while the operation was in flight.
	ErrSessionEnded = errors.New("game: session ended during the operation")

	// ErrEmptyAction is returned for blank player input.
	ErrEmptyAction = errors.New("game: action text is empty")
)
