package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"passai-session-service/internal/domain"
)

// Session drives a single user through one timed quiz attempt. It owns
// the question sequence, the per-question countdown, the local result
// list, and the mood check-in window, and talks to the AttemptStore for
// all persisted state. All methods are safe for concurrent use.
type Session struct {
	cfg       Config
	store     AttemptStore
	attempt   domain.Attempt
	questions []domain.Question
	now       func() time.Time

	mu                sync.Mutex
	idx               int
	submitted         bool
	remaining         int
	results           []domain.QuestionResult
	moodOffered       bool
	moodResolved      bool
	moodLabel         string
	moodEnergy        int
	complete          bool
	aborted           bool
	accumulated       time.Duration
	questionStartedAt time.Time
	subscribers       map[chan Event]struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

func newSession(attempt domain.Attempt, questions []domain.Question, store AttemptStore, cfg Config, now func() time.Time) *Session {
	return &Session{
		cfg:               cfg,
		store:             store,
		attempt:           attempt,
		questions:         questions,
		now:               now,
		remaining:         int(cfg.QuestionDuration / time.Second),
		questionStartedAt: now(),
		subscribers:       make(map[chan Event]struct{}),
		stop:              make(chan struct{}),
	}
}

// NewSessionWithClock builds a session without starting its countdown or
// checkpoint loops. Test-only; production sessions come from
// SessionService.Begin.
func NewSessionWithClock(attempt domain.Attempt, questions []domain.Question, store AttemptStore, cfg Config, now func() time.Time) *Session {
	return newSession(attempt, questions, store, cfg.withDefaults(), now)
}

// start launches the countdown and checkpoint loops for the session's lifetime.
func (s *Session) start() {
	go s.runCountdown()
	go s.runCheckpoint()
}

func (s *Session) runCountdown() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Tick()
		case <-s.stop:
			return
		}
	}
}

func (s *Session) runCheckpoint() {
	ticker := time.NewTicker(s.cfg.CheckpointInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Checkpoint(context.Background())
		case <-s.stop:
			return
		}
	}
}

func (s *Session) stopTimers() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Attempt returns a copy of the attempt record as last confirmed by the store.
func (s *Session) Attempt() domain.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Results returns a copy of the session-local result list, in question order.
func (s *Session) Results() []domain.QuestionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.QuestionResult, len(s.results))
	copy(out, s.results)
	return out
}

// CurrentIndex reports the zero-based index of the question on screen.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

// IsComplete reports whether the attempt has been finalized.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

// Subscribe returns a channel of session events, primed with the current
// question (or the completion summary if the session already finished).
// The caller must invoke the cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	var initial Event
	if s.complete {
		initial = Event{Type: EventCompleted, Payload: s.summaryLocked()}
	} else {
		initial = Event{Type: EventQuestion, Payload: s.questionViewLocked()}
	}
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Submit records an explicit answer for the current question. The answer
// must be non-empty; timer expiry is the only path that records an empty
// one. Returns the recorded result.
func (s *Session) Submit(ctx context.Context, answer string) (domain.QuestionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.complete || s.aborted {
		return domain.QuestionResult{}, domain.ErrSessionComplete
	}
	if s.submitted {
		return domain.QuestionResult{}, domain.ErrAlreadySubmitted
	}
	if strings.TrimSpace(answer) == "" {
		return domain.QuestionResult{}, domain.ErrEmptyAnswer
	}
	return s.recordResultLocked(answer, true), nil
}

// Tick advances the presentational countdown by one second. At zero it
// forces a submission with an empty answer, exactly once per question;
// the submitted flag guards against re-firing.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.complete || s.aborted || s.submitted {
		return
	}
	s.remaining--
	if s.remaining > 0 {
		s.broadcastLocked(Event{Type: EventTick, Payload: TickPayload{
			QuestionID:       s.questions[s.idx].ID,
			RemainingSeconds: s.remaining,
		}})
		return
	}
	s.remaining = 0
	s.recordResultLocked("", false)
}

// recordResultLocked appends exactly one QuestionResult for the current
// question, initiates the response save, and opens the mood check-in
// window when the midpoint question has just been submitted.
func (s *Session) recordResultLocked(answer string, answered bool) domain.QuestionResult {
	q := s.questions[s.idx]
	now := s.now()
	spent := now.Sub(s.questionStartedAt)

	correct, points := false, 0
	if answered {
		correct, points = domain.Evaluate(q, answer)
	}

	result := domain.QuestionResult{
		QuestionID:       q.ID,
		UserAnswer:       answer,
		CorrectAnswer:    q.Answer.Canonical(),
		IsCorrect:        correct,
		TimeSpentSeconds: int(spent / time.Second),
		WasAnswered:      answered,
	}
	s.results = append(s.results, result)
	s.submitted = true
	s.accumulated += spent
	s.questionStartedAt = now

	// Best-effort: local results stay authoritative for the in-session
	// view even if this write never lands.
	params := SaveResponseParams{
		AttemptID:        s.attempt.ID,
		UserID:           s.attempt.UserID,
		QuestionID:       q.ID,
		Answer:           answer,
		IsCorrect:        correct,
		TimeSpentSeconds: result.TimeSpentSeconds,
		PointsEarned:     points,
	}
	go func() {
		if err := s.store.SaveResponse(context.Background(), params); err != nil {
			log.Printf("save response for question %s: %v", q.ID, err)
		}
	}()

	s.broadcastLocked(Event{Type: EventAnswerResult, Payload: AnswerOutcome{
		QuestionID:    q.ID,
		Correct:       correct,
		PointsEarned:  points,
		CorrectAnswer: result.CorrectAnswer,
		Explanation:   q.Explanation,
		WasAnswered:   answered,
	}})

	if !s.moodOffered && s.idx == len(s.questions)/2 {
		s.moodOffered = true
		s.broadcastLocked(Event{Type: EventMoodCheckIn, Payload: MoodPrompt{
			AccuracyPercent: s.accuracyLocked(),
		}})
	}
	return result
}

// Advance moves to the next question, or finalizes the attempt when the
// last question has been submitted. On finalize failure the session stays
// on the last question and Advance may be called again.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	if s.complete || s.aborted {
		s.mu.Unlock()
		return domain.ErrSessionComplete
	}
	if !s.submitted {
		s.mu.Unlock()
		return domain.ErrNotSubmitted
	}

	if s.idx < len(s.questions)-1 {
		s.idx++
		s.submitted = false
		s.remaining = int(s.cfg.QuestionDuration / time.Second)
		s.questionStartedAt = s.now()
		s.broadcastLocked(Event{Type: EventQuestion, Payload: s.questionViewLocked()})
		s.mu.Unlock()
		return nil
	}

	total := s.totalSecondsLocked()
	attemptID, userID := s.attempt.ID, s.attempt.UserID
	s.mu.Unlock()

	sealed, err := s.store.SubmitAttempt(ctx, attemptID, userID, total)
	if err != nil {
		return fmt.Errorf("submit attempt: %w", err)
	}

	s.mu.Lock()
	s.attempt = sealed
	s.complete = true
	s.broadcastLocked(Event{Type: EventCompleted, Payload: s.summaryLocked()})
	s.mu.Unlock()

	s.stopTimers()
	return nil
}

// Mood persists the mid-session check-in. Valid only while the check-in
// window is open.
func (s *Session) Mood(ctx context.Context, label string, energyLevel int) error {
	s.mu.Lock()
	if !s.moodOffered || s.moodResolved {
		s.mu.Unlock()
		return domain.ErrMoodNotOffered
	}
	attemptID, userID := s.attempt.ID, s.attempt.UserID
	s.mu.Unlock()

	if err := s.store.UpdateMood(ctx, attemptID, userID, label, energyLevel); err != nil {
		return fmt.Errorf("update mood: %w", err)
	}

	s.mu.Lock()
	s.moodResolved = true
	s.moodLabel = label
	s.moodEnergy = energyLevel
	s.broadcastLocked(Event{Type: EventMoodSaved, Payload: MoodSaved{Mood: label, EnergyLevel: energyLevel}})
	s.mu.Unlock()
	return nil
}

// DismissMood closes the check-in window without recording anything.
// Dismissing is never an error; the prompt is not re-offered.
func (s *Session) DismissMood() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.moodOffered {
		s.moodResolved = true
	}
}

// SaveFeedback attaches a thumbs-up/down reaction to an already answered
// question. Session-local only.
func (s *Session) SaveFeedback(questionID string, fb domain.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.results {
		if s.results[i].QuestionID == questionID {
			s.results[i].Feedback = fb
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}

// Exit tears the session down. If the attempt is not complete it is
// abandoned, best-effort; navigation away is never blocked on the call.
func (s *Session) Exit(ctx context.Context) {
	s.mu.Lock()
	if s.complete || s.aborted {
		s.mu.Unlock()
		s.stopTimers()
		return
	}
	s.aborted = true
	attemptID, userID := s.attempt.ID, s.attempt.UserID
	s.mu.Unlock()

	s.stopTimers()
	if err := s.store.AbandonAttempt(ctx, attemptID, userID); err != nil {
		log.Printf("abandon attempt %s: %v", attemptID, err)
	}
}

// Checkpoint reports cumulative wall-clock time to the store. Runs
// periodically for the session's lifetime; silent on failure beyond a
// log line.
func (s *Session) Checkpoint(ctx context.Context) {
	s.mu.Lock()
	if s.complete || s.aborted {
		s.mu.Unlock()
		return
	}
	total := s.totalSecondsLocked()
	attemptID, userID := s.attempt.ID, s.attempt.UserID
	s.mu.Unlock()

	if err := s.store.UpdateProgress(ctx, attemptID, userID, total); err != nil {
		log.Printf("progress checkpoint for attempt %s: %v", attemptID, err)
	}
}

// totalSecondsLocked is the authoritative elapsed time, computed from
// wall-clock timestamps rather than the integer countdown.
func (s *Session) totalSecondsLocked() int {
	return int((s.accumulated + s.now().Sub(s.questionStartedAt)) / time.Second)
}

func (s *Session) accuracyLocked() float64 {
	if len(s.results) == 0 {
		return 0
	}
	correct := 0
	for _, r := range s.results {
		if r.IsCorrect {
			correct++
		}
	}
	return float64(correct) / float64(len(s.results)) * 100
}

func (s *Session) questionViewLocked() QuestionView {
	q := s.questions[s.idx]
	return QuestionView{
		Index:            s.idx,
		Total:            len(s.questions),
		QuestionID:       q.ID,
		Prompt:           q.Prompt,
		Type:             q.Type,
		Options:          q.Options,
		Points:           q.PointValue(),
		RemainingSeconds: s.remaining,
	}
}

func (s *Session) summaryLocked() CompletionSummary {
	correct, score := 0, 0
	for i, r := range s.results {
		if r.IsCorrect {
			correct++
			score += s.questions[i].PointValue()
		}
	}
	return CompletionSummary{
		AttemptID:        s.attempt.ID,
		CorrectCount:     correct,
		TotalQuestions:   len(s.questions),
		Score:            score,
		TimeSpentSeconds: s.attempt.TimeSpentSeconds,
	}
}

func (s *Session) broadcastLocked(ev Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop the oldest update so a slow reader cannot stall the session.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
