package redis

import (
	"context"
	"testing"
	"time"

	"passai-session-service/internal/domain"
	"passai-session-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuestionRepository(client, loader, time.Minute)

	questions, err := repo.GetQuestions(context.Background(), "quiz-1", "u1")
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 1 || questions[0].ID != "q1" {
		t.Fatalf("unexpected questions %+v", questions)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:quiz-1:questions") {
		t.Fatalf("expected cached blob in redis")
	}

	// Second call should hit cache, loader not incremented.
	_, _ = repo.GetQuestions(context.Background(), "quiz-1", "u1")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				ID:      "q1",
				Prompt:  "What is 2 + 2?",
				Type:    domain.SingleChoice,
				Options: []string{"3", "4", "5"},
				Answer:  domain.AnswerKey{Values: []string{"4"}},
				Points:  1,
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
