package session

import "errors"

// Failure taxonomy for the session engine and its collaborators. Every
// operation reports failures synchronously with one of these sentinels
// (possibly wrapped); callers classify with errors.Is.
var (
	// ErrMissingCredential: no API key configured for the requested
	// provider. Raised before any network call; nothing is created.
	ErrMissingCredential = errors.New("missing API key for provider")

	// ErrEmptyResult: the question source returned zero usable questions.
	ErrEmptyResult = errors.New("question source returned no usable questions")

	// ErrSourceFailure: the question source failed outright.
	ErrSourceFailure = errors.New("question source failure")

	// ErrMalformedQuestion: manual input failed structural validation.
	ErrMalformedQuestion = errors.New("malformed question")

	// ErrNoIncorrectAnswers: retry requested but every answer was correct.
	ErrNoIncorrectAnswers = errors.New("no incorrect answers to retry")

	// ErrStoreUnavailable: persisting a completed session failed. The
	// session stays completed; the record is not assumed saved.
	ErrStoreUnavailable = errors.New("quiz store unavailable")

	ErrStartPending     = errors.New("a quiz start is already in progress")
	ErrStaleAttempt     = errors.New("start attempt superseded")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionCompleted = errors.New("session already completed")
	ErrSessionActive    = errors.New("session still in progress")
	ErrAlreadyAnswered  = errors.New("current question already answered")
	ErrAnswerRequired   = errors.New("current question not answered yet")
)
