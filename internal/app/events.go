package app

import "passai-session-service/internal/domain"

// EventType tags the session events pushed to subscribers.
type EventType string

const (
	EventQuestion     EventType = "question"
	EventTick         EventType = "tick"
	EventAnswerResult EventType = "answerResult"
	EventMoodCheckIn  EventType = "moodCheckIn"
	EventMoodSaved    EventType = "moodSaved"
	EventCompleted    EventType = "completed"
)

// Event is one session update delivered to subscribers.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// QuestionView is the client-facing shape of the current question. The
// answer key and explanation are withheld until after submission.
type QuestionView struct {
	Index            int                 `json:"index"`
	Total            int                 `json:"total"`
	QuestionID       string              `json:"questionId"`
	Prompt           string              `json:"prompt"`
	Type             domain.QuestionType `json:"type"`
	Options          []string            `json:"options,omitempty"`
	Points           int                 `json:"points"`
	RemainingSeconds int                 `json:"remainingSeconds"`
}

// TickPayload carries one countdown second for display.
type TickPayload struct {
	QuestionID       string `json:"questionId"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

// AnswerOutcome reveals the result of a submission, including the
// canonical answer and explanation for review.
type AnswerOutcome struct {
	QuestionID    string `json:"questionId"`
	Correct       bool   `json:"correct"`
	PointsEarned  int    `json:"pointsEarned"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation,omitempty"`
	WasAnswered   bool   `json:"wasAnswered"`
}

// MoodPrompt asks the client to collect a mood check-in, carrying the
// running in-session accuracy so far.
type MoodPrompt struct {
	AccuracyPercent float64 `json:"accuracyPercent"`
}

// MoodSaved confirms a persisted mood check-in.
type MoodSaved struct {
	Mood        string `json:"mood"`
	EnergyLevel int    `json:"energyLevel"`
}

// CompletionSummary hands control to the results view. The renderer
// fetches full results by attempt ID; the counts here are the
// session-local summary shown immediately after submission.
type CompletionSummary struct {
	AttemptID        string `json:"attemptId"`
	CorrectCount     int    `json:"correctCount"`
	TotalQuestions   int    `json:"totalQuestions"`
	Score            int    `json:"score"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}
