package domain

import "errors"

var (
	// ErrQuizNotFound indicates the question set could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz indicates a quiz loaded with no questions; a session cannot start on it.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrAttemptNotFound indicates an attempt id is unknown to the store.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptSealed is returned when a write targets a completed or abandoned attempt.
	ErrAttemptSealed = errors.New("attempt already finalized")
	// ErrSessionComplete is returned when an action arrives after the session finished.
	ErrSessionComplete = errors.New("session already complete")
	// ErrAlreadySubmitted is returned when the current question was already answered.
	ErrAlreadySubmitted = errors.New("question already submitted")
	// ErrNotSubmitted is returned when advancing past an unanswered question.
	ErrNotSubmitted = errors.New("current question not yet submitted")
	// ErrEmptyAnswer is returned for an explicit submission with no content.
	ErrEmptyAnswer = errors.New("answer is empty")
	// ErrMoodNotOffered is returned when mood data arrives outside the check-in window.
	ErrMoodNotOffered = errors.New("mood check-in not offered")
	// ErrQuestionNotFound indicates a referenced question ID is not part of the session.
	ErrQuestionNotFound = errors.New("question not found")
)
