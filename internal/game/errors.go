package game

import (
	"errors"
	"fmt"
)

// ErrInvalidSession is the parent of every session-state error.
var ErrInvalidSession = errors.New("invalid session")

var (
	ErrNoQuestions      = fmt.Errorf("%w: no questions", ErrInvalidSession)
	ErrNoActiveSession  = fmt.Errorf("%w: no active session", ErrInvalidSession)
	ErrSessionExhausted = fmt.Errorf("%w: all questions answered", ErrInvalidSession)
	ErrAlreadyCompleted = fmt.Errorf("%w: session already completed", ErrInvalidSession)
	ErrSessionExpired   = fmt.Errorf("%w: session expired", ErrInvalidSession)
)
