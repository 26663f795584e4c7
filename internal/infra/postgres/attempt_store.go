package postgres

import (
	"context"
	"errors"
	"fmt"

	"passai-session-service/internal/app"
	"passai-session-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptStore is the Postgres implementation of app.AttemptStore. The
// total possible points are captured on the attempt row at start so
// SubmitAttempt can derive the percentage without reloading the quiz.
type AttemptStore struct {
	pool   *pgxpool.Pool
	loader *QuizLoader
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool, loader: NewQuizLoader(pool)}
}

func (s *AttemptStore) StartAttempt(ctx context.Context, quizID, userID string) (domain.Attempt, error) {
	quiz, err := s.loader.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	attempt := domain.Attempt{
		UserID: userID,
		QuizID: quizID,
		Status: domain.AttemptInProgress,
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO attempts (quiz_id, user_id, status, possible_points)
		VALUES ($1, $2, $3, $4)
		RETURNING id, started_at`,
		quizID, userID, string(domain.AttemptInProgress), quiz.TotalPoints(),
	).Scan(&attempt.ID, &attempt.StartedAt)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return attempt, nil
}

func (s *AttemptStore) SaveResponse(ctx context.Context, params app.SaveResponseParams) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempt_responses (attempt_id, question_id, answer, is_correct, time_spent_seconds, points_earned)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
			answer = EXCLUDED.answer,
			is_correct = EXCLUDED.is_correct,
			time_spent_seconds = EXCLUDED.time_spent_seconds,
			points_earned = EXCLUDED.points_earned`,
		params.AttemptID, params.QuestionID, params.Answer, params.IsCorrect,
		params.TimeSpentSeconds, params.PointsEarned,
	)
	if err != nil {
		return fmt.Errorf("save response: %w", err)
	}
	return nil
}

func (s *AttemptStore) UpdateProgress(ctx context.Context, attemptID, userID string, timeSpentSeconds int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE attempts SET time_spent_seconds = $3
		WHERE id = $1 AND user_id = $2 AND status = 'in-progress'`,
		attemptID, userID, timeSpentSeconds,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

// SubmitAttempt seals the attempt as completed and derives score and
// percentage from the persisted responses. Re-submitting a completed
// attempt recomputes the same values, so a retried finalize is safe.
func (s *AttemptStore) SubmitAttempt(ctx context.Context, attemptID, userID string, timeSpentSeconds int) (domain.Attempt, error) {
	attempt := domain.Attempt{ID: attemptID, UserID: userID}
	var status string
	var mood *string
	var energy *int
	err := s.pool.QueryRow(ctx, `
		UPDATE attempts SET
			status = 'completed',
			score = COALESCE((SELECT SUM(points_earned) FROM attempt_responses WHERE attempt_id = attempts.id), 0),
			time_spent_seconds = $3,
			completed_at = COALESCE(completed_at, now())
		WHERE id = $1 AND user_id = $2 AND status <> 'abandoned'
		RETURNING quiz_id, status, score,
			CASE WHEN possible_points > 0 THEN score::float8 / possible_points * 100 ELSE 0 END,
			time_spent_seconds, mood, energy_level, started_at, completed_at`,
		attemptID, userID, timeSpentSeconds,
	).Scan(&attempt.QuizID, &status, &attempt.Score, &attempt.Percentage,
		&attempt.TimeSpentSeconds, &mood, &energy, &attempt.StartedAt, &attempt.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("submit attempt: %w", err)
	}
	attempt.Status = domain.AttemptStatus(status)
	if mood != nil {
		attempt.Mood = *mood
	}
	if energy != nil {
		attempt.EnergyLevel = *energy
	}
	return attempt, nil
}

func (s *AttemptStore) AbandonAttempt(ctx context.Context, attemptID, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE attempts SET status = 'abandoned'
		WHERE id = $1 AND user_id = $2 AND status = 'in-progress'`,
		attemptID, userID,
	)
	if err != nil {
		return fmt.Errorf("abandon attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (s *AttemptStore) UpdateMood(ctx context.Context, attemptID, userID, mood string, energyLevel int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE attempts SET mood = $3, energy_level = $4
		WHERE id = $1 AND user_id = $2`,
		attemptID, userID, mood, energyLevel,
	)
	if err != nil {
		return fmt.Errorf("update mood: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}
