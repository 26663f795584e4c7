package app

import (
	"context"
	"fmt"
	"time"

	"passai-session-service/internal/domain"
)

// QuestionRepository loads the ordered question set for a quiz
// (from cache/backing store).
type QuestionRepository interface {
	GetQuestions(ctx context.Context, quizID, userID string) ([]domain.Question, error)
}

// SaveResponseParams carries one question's outcome to the store.
type SaveResponseParams struct {
	AttemptID        string
	UserID           string
	QuestionID       string
	Answer           string
	IsCorrect        bool
	TimeSpentSeconds int
	PointsEarned     int
}

// AttemptStore is the client-facing contract of the attempt lifecycle:
// it is the only writer of persisted attempt state.
type AttemptStore interface {
	// StartAttempt creates a new in-progress attempt with zeroed score and time.
	StartAttempt(ctx context.Context, quizID, userID string) (domain.Attempt, error)
	// SaveResponse persists one question's result, idempotent per question.
	SaveResponse(ctx context.Context, params SaveResponseParams) error
	// UpdateProgress checkpoints cumulative elapsed time without changing status.
	UpdateProgress(ctx context.Context, attemptID, userID string, timeSpentSeconds int) error
	// SubmitAttempt seals the attempt as completed and computes the final
	// score and percentage from the persisted responses.
	SubmitAttempt(ctx context.Context, attemptID, userID string, timeSpentSeconds int) (domain.Attempt, error)
	// AbandonAttempt seals the attempt as abandoned.
	AbandonAttempt(ctx context.Context, attemptID, userID string) error
	// UpdateMood attaches the mid-session affective snapshot.
	UpdateMood(ctx context.Context, attemptID, userID, mood string, energyLevel int) error
}

// Config holds the session timing knobs.
type Config struct {
	// QuestionDuration is the per-question countdown. Defaults to 120s.
	QuestionDuration time.Duration
	// CheckpointInterval is the progress-save period. Defaults to 30s.
	CheckpointInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.QuestionDuration <= 0 {
		c.QuestionDuration = 120 * time.Second
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = 30 * time.Second
	}
	return c
}

// SessionService starts attempt sessions over a question source and an
// attempt store.
type SessionService struct {
	questions QuestionRepository
	attempts  AttemptStore
	cfg       Config
}

func NewSessionService(questions QuestionRepository, attempts AttemptStore, cfg Config) *SessionService {
	return &SessionService{questions: questions, attempts: attempts, cfg: cfg.withDefaults()}
}

// Begin loads the question set, creates the attempt record, and starts
// the session's countdown and checkpoint loops. Any failure here aborts
// the session before any timer starts.
func (s *SessionService) Begin(ctx context.Context, quizID, userID string) (*Session, error) {
	questions, err := s.questions.GetQuestions(ctx, quizID, userID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, domain.ErrEmptyQuiz
	}

	attempt, err := s.attempts.StartAttempt(ctx, quizID, userID)
	if err != nil {
		return nil, fmt.Errorf("start attempt: %w", err)
	}

	session := newSession(attempt, questions, s.attempts, s.cfg, time.Now)
	session.start()
	return session, nil
}
