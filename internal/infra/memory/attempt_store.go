package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"passai-session-service/internal/app"
	"passai-session-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore
// (useful for tests/demos). Attempts validate against a QuizLoader at
// start so unknown quizzes are rejected and the total possible points
// are known for the final percentage.
type AttemptStore struct {
	loader QuizLoader
	clock  func() time.Time

	mu        sync.Mutex
	seq       int
	attempts  map[string]*domain.Attempt
	possible  map[string]int
	responses map[string]map[string]app.SaveResponseParams
}

func NewAttemptStore(loader QuizLoader) *AttemptStore {
	return &AttemptStore{
		loader:    loader,
		clock:     time.Now,
		attempts:  make(map[string]*domain.Attempt),
		possible:  make(map[string]int),
		responses: make(map[string]map[string]app.SaveResponseParams),
	}
}

// NewAttemptStoreWithClock is test-only for deterministic timestamps.
func NewAttemptStoreWithClock(loader QuizLoader, now func() time.Time) *AttemptStore {
	store := NewAttemptStore(loader)
	store.clock = now
	return store
}

func (s *AttemptStore) StartAttempt(ctx context.Context, quizID, userID string) (domain.Attempt, error) {
	quiz, err := s.loader.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	attempt := &domain.Attempt{
		ID:        fmt.Sprintf("attempt-%d", s.seq),
		UserID:    userID,
		QuizID:    quizID,
		Status:    domain.AttemptInProgress,
		StartedAt: s.clock(),
	}
	s.attempts[attempt.ID] = attempt
	s.possible[attempt.ID] = quiz.TotalPoints()
	s.responses[attempt.ID] = make(map[string]app.SaveResponseParams)
	return *attempt, nil
}

// SaveResponse overwrites any previous response for the same question.
func (s *AttemptStore) SaveResponse(_ context.Context, params app.SaveResponseParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[params.AttemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if attempt.Status != domain.AttemptInProgress {
		return domain.ErrAttemptSealed
	}
	s.responses[params.AttemptID][params.QuestionID] = params
	return nil
}

func (s *AttemptStore) UpdateProgress(_ context.Context, attemptID, userID string, timeSpentSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok || attempt.UserID != userID {
		return domain.ErrAttemptNotFound
	}
	if attempt.Status != domain.AttemptInProgress {
		return domain.ErrAttemptSealed
	}
	attempt.TimeSpentSeconds = timeSpentSeconds
	return nil
}

// SubmitAttempt seals the attempt and derives score and percentage from
// the saved responses. Submitting an already completed attempt is a
// no-op returning the sealed record, so a retried finalize is safe.
func (s *AttemptStore) SubmitAttempt(_ context.Context, attemptID, userID string, timeSpentSeconds int) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok || attempt.UserID != userID {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if attempt.Status == domain.AttemptAbandoned {
		return domain.Attempt{}, domain.ErrAttemptSealed
	}
	if attempt.Status == domain.AttemptCompleted {
		return *attempt, nil
	}

	score := 0
	for _, resp := range s.responses[attemptID] {
		score += resp.PointsEarned
	}
	attempt.Score = score
	if possible := s.possible[attemptID]; possible > 0 {
		attempt.Percentage = float64(score) / float64(possible) * 100
	}
	attempt.TimeSpentSeconds = timeSpentSeconds
	attempt.Status = domain.AttemptCompleted
	completed := s.clock()
	attempt.CompletedAt = &completed
	return *attempt, nil
}

func (s *AttemptStore) AbandonAttempt(_ context.Context, attemptID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok || attempt.UserID != userID {
		return domain.ErrAttemptNotFound
	}
	if attempt.Status != domain.AttemptInProgress {
		return domain.ErrAttemptSealed
	}
	attempt.Status = domain.AttemptAbandoned
	return nil
}

func (s *AttemptStore) UpdateMood(_ context.Context, attemptID, userID, mood string, energyLevel int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok || attempt.UserID != userID {
		return domain.ErrAttemptNotFound
	}
	attempt.Mood = mood
	attempt.EnergyLevel = energyLevel
	return nil
}

// Get returns a copy of an attempt for inspection in tests.
func (s *AttemptStore) Get(attemptID string) (domain.Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, false
	}
	return *attempt, true
}

// Responses returns a copy of the saved responses for an attempt.
func (s *AttemptStore) Responses(attemptID string) map[string]app.SaveResponseParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]app.SaveResponseParams, len(s.responses[attemptID]))
	for id, resp := range s.responses[attemptID] {
		out[id] = resp
	}
	return out
}
