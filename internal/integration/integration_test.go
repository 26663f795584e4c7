package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"passai-session-service/internal/app"
	"passai-session-service/internal/domain"
	pgstore "passai-session-service/internal/infra/postgres"
	pgmigrations "passai-session-service/internal/infra/postgres/migrations"
	redisstore "passai-session-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestAttemptSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()
	seedQuiz(t, ctx, db, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pgstore.NewQuizLoader(pool)
	questionRepo := redisstore.NewQuestionRepository(redisClient, loader, 5*time.Minute)
	attempts := redisstore.NewAttemptStore(pgstore.NewAttemptStore(pool), redisClient, 5*time.Minute)
	service := app.NewSessionService(questionRepo, attempts, app.Config{})

	session, err := service.Begin(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("begin session: %v", err)
	}
	attemptID := session.Attempt().ID
	if attemptID == "" {
		t.Fatalf("expected attempt id")
	}

	if _, err := session.Submit(ctx, "4"); err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	if err := session.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}

	if _, err := session.Submit(ctx, "Primes have exactly two divisors."); err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	// Second of two questions is the midpoint; the check-in window is open now.
	if err := session.Mood(ctx, "focused", 7); err != nil {
		t.Fatalf("mood: %v", err)
	}

	// Response saves are fire-and-forget; wait for both rows before finalizing
	// so the server-side score includes them.
	waitResponses(t, ctx, db, attemptID, 2)

	if err := session.Advance(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}

	sealed := session.Attempt()
	if sealed.Status != domain.AttemptCompleted {
		t.Fatalf("expected completed attempt, got %s", sealed.Status)
	}
	if sealed.Score != 3 {
		t.Fatalf("expected score 3 (1 + 2), got %d", sealed.Score)
	}
	if sealed.Percentage != 100 {
		t.Fatalf("expected 100%%, got %f", sealed.Percentage)
	}
	if sealed.Mood != "focused" || sealed.EnergyLevel != 7 {
		t.Fatalf("expected mood persisted, got %+v", sealed)
	}
	if sealed.CompletedAt == nil {
		t.Fatalf("expected completion timestamp")
	}

	// Live mirror keys are cleared once the attempt is sealed.
	if n, err := redisClient.Exists(ctx, "attempt:live:"+attemptID).Result(); err != nil || n != 0 {
		t.Fatalf("expected live mirror removed, exists=%d err=%v", n, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func openBun(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedQuiz(t *testing.T, ctx context.Context, db *bun.DB, quiz domain.Quiz) {
	t.Helper()
	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func waitResponses(t *testing.T, ctx context.Context, db *bun.DB, attemptID string, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var count int
		row := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempt_responses WHERE attempt_id = ?`, attemptID)
		if err := row.Scan(&count); err == nil && count >= want {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("responses for attempt %s never reached %d", attemptID, want)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
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
				Prompt: "In your own words, what makes a number prime?",
				Type:   domain.ShortAnswer,
				Points: 2,
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
