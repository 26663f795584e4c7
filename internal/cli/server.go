package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"passai-session-service/internal/app"
	"passai-session-service/internal/config"
	"passai-session-service/internal/domain"
	"passai-session-service/internal/infra/memory"
	pgstore "passai-session-service/internal/infra/postgres"
	redisstore "passai-session-service/internal/infra/redis"
	transport "passai-session-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var questionRepo app.QuestionRepository
	if redisClient != nil {
		questionRepo = redisstore.NewQuestionRepository(redisClient, loader, quizTTL)
	} else {
		questionRepo = memory.NewQuestionRepository(loader, quizTTL)
	}

	var attempts app.AttemptStore
	if pool != nil {
		attempts = pgstore.NewAttemptStore(pool)
	} else {
		attempts = memory.NewAttemptStore(loader)
	}
	if redisClient != nil {
		attempts = redisstore.NewAttemptStore(attempts, redisClient, redisTTL)
	}

	sessionCfg := app.Config{
		QuestionDuration:   config.SecondsDuration(cfg.Session.QuestionSeconds, 120*time.Second),
		CheckpointInterval: config.TTLDuration(cfg.Session.CheckpointInterval, 30*time.Second),
	}
	service := app.NewSessionService(questionRepo, attempts, sessionCfg)
	handler := transport.NewSessionHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/session", handler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides a minimal question set; configure Postgres to
// serve real content in production.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Arithmetic warm-up",
			Questions: []domain.Question{
				{
					ID:      "q1",
					Prompt:  "What is 2 + 2?",
					Type:    domain.SingleChoice,
					Options: []string{"3", "4", "5"},
					Answer:  domain.AnswerKey{Values: []string{"4"}},
					Points:  1,
				},
				{
					ID:     "q2",
					Prompt: "7 is a prime number.",
					Type:   domain.TrueFalse,
					Answer: domain.AnswerKey{Values: []string{"true"}},
					Points: 1,
				},
				{
					ID:     "q3",
					Prompt: "In your own words, what does it mean for a number to be prime?",
					Type:   domain.ShortAnswer,
					Points: 2,
				},
			},
		},
	}
}
