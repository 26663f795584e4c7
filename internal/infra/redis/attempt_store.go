package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"passai-session-service/internal/app"
	"passai-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AttemptStore decorates an inner app.AttemptStore with a Redis mirror
// of live attempt state for crash/interruption recovery:
//   - SET attempt:live:{id}       JSON snapshot of the in-progress attempt
//   - SET attempt:live:{id}:time  last checkpointed cumulative seconds
//
// Keys expire on TTL and are removed when the attempt is sealed. All
// mirror writes are best-effort; the inner store stays authoritative.
type AttemptStore struct {
	inner  app.AttemptStore
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptStore(inner app.AttemptStore, client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{inner: inner, client: client, ttl: ttl}
}

func (s *AttemptStore) StartAttempt(ctx context.Context, quizID, userID string) (domain.Attempt, error) {
	attempt, err := s.inner.StartAttempt(ctx, quizID, userID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if raw, err := json.Marshal(attempt); err == nil {
		_ = s.client.Set(ctx, s.liveKey(attempt.ID), raw, s.ttl).Err()
	}
	return attempt, nil
}

func (s *AttemptStore) SaveResponse(ctx context.Context, params app.SaveResponseParams) error {
	return s.inner.SaveResponse(ctx, params)
}

func (s *AttemptStore) UpdateProgress(ctx context.Context, attemptID, userID string, timeSpentSeconds int) error {
	if err := s.inner.UpdateProgress(ctx, attemptID, userID, timeSpentSeconds); err != nil {
		return err
	}
	_ = s.client.Set(ctx, s.timeKey(attemptID), strconv.Itoa(timeSpentSeconds), s.ttl).Err()
	_ = s.client.Expire(ctx, s.liveKey(attemptID), s.ttl).Err()
	return nil
}

func (s *AttemptStore) SubmitAttempt(ctx context.Context, attemptID, userID string, timeSpentSeconds int) (domain.Attempt, error) {
	attempt, err := s.inner.SubmitAttempt(ctx, attemptID, userID, timeSpentSeconds)
	if err != nil {
		return domain.Attempt{}, err
	}
	s.clearMirror(ctx, attemptID)
	return attempt, nil
}

func (s *AttemptStore) AbandonAttempt(ctx context.Context, attemptID, userID string) error {
	if err := s.inner.AbandonAttempt(ctx, attemptID, userID); err != nil {
		return err
	}
	s.clearMirror(ctx, attemptID)
	return nil
}

func (s *AttemptStore) UpdateMood(ctx context.Context, attemptID, userID, mood string, energyLevel int) error {
	return s.inner.UpdateMood(ctx, attemptID, userID, mood, energyLevel)
}

func (s *AttemptStore) clearMirror(ctx context.Context, attemptID string) {
	_ = s.client.Del(ctx, s.liveKey(attemptID), s.timeKey(attemptID)).Err()
}

func (s *AttemptStore) liveKey(attemptID string) string {
	return "attempt:live:" + attemptID
}

func (s *AttemptStore) timeKey(attemptID string) string {
	return "attempt:live:" + attemptID + ":time"
}
