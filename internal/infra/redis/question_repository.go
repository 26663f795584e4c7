package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"passai-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuestionRepository caches each quiz's question set in Redis as a JSON
// blob (SET quiz:{quizID}:questions) and falls back to a loader on cache miss.
type QuestionRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, quizID, _ string) ([]domain.Question, error) {
	key := r.questionsKey(quizID)

	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err == nil {
			return quiz.Questions, nil
		}
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
			var quiz domain.Quiz
			if err := json.Unmarshal(raw, &quiz); err == nil {
				return quiz, nil
			}
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		if raw, err := json.Marshal(quiz); err == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.Quiz).Questions, nil
}

func (r *QuestionRepository) questionsKey(quizID string) string {
	return "quiz:" + quizID + ":questions"
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
