package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
)

// FreeText reports whether the type accepts arbitrary typed input
// rather than a selection from Options.
func (t QuestionType) FreeText() bool {
	return t == ShortAnswer || t == Essay
}

// AnswerKey holds a question's correct answer, which arrives on the wire
// as either a single string or an array of strings.
type AnswerKey struct {
	Values []string
}

func (k AnswerKey) MarshalJSON() ([]byte, error) {
	if len(k.Values) == 1 {
		return json.Marshal(k.Values[0])
	}
	return json.Marshal(k.Values)
}

func (k *AnswerKey) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		k.Values = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	k.Values = many
	return nil
}

// Canonical renders the key as a single comparable string. Multi-valued
// keys are joined with ", " in stored order.
func (k AnswerKey) Canonical() string {
	return strings.Join(k.Values, ", ")
}

// Question is one entry of a quiz's ordered question set. Immutable once
// loaded for a session.
type Question struct {
	ID          string       `json:"id"`
	Prompt      string       `json:"prompt"`
	Type        QuestionType `json:"type"`
	Options     []string     `json:"options,omitempty"`
	Answer      AnswerKey    `json:"answer"`
	Points      int          `json:"points"` // defaults to 1 if zero
	Explanation string       `json:"explanation,omitempty"`
	Topics      []string     `json:"topics,omitempty"`
	MaterialIDs []string     `json:"materialIds,omitempty"`
}

// PointValue returns the question's worth, applying the default of 1.
func (q Question) PointValue() int {
	if q.Points > 0 {
		return q.Points
	}
	return 1
}

// Quiz is an identified, ordered question set.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// TotalPoints sums the point value of every question.
func (q Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.PointValue()
	}
	return total
}

// AttemptStatus is the lifecycle state of a persisted attempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in-progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// Attempt is the persisted record of one user's pass through a quiz.
// It is mutated only through AttemptStore operations; the session holds
// it for display and identifier passing.
type Attempt struct {
	ID               string        `json:"id"`
	UserID           string        `json:"userId"`
	QuizID           string        `json:"quizId"`
	Status           AttemptStatus `json:"status"`
	Score            int           `json:"score"`
	TimeSpentSeconds int           `json:"timeSpentSeconds"`
	Percentage       float64       `json:"percentage"`
	Mood             string        `json:"mood,omitempty"`
	EnergyLevel      int           `json:"energyLevel,omitempty"`
	StartedAt        time.Time     `json:"startedAt"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
}

// Feedback is an optional reviewer reaction attached to an answered question.
type Feedback string

const (
	FeedbackUp   Feedback = "thumbs-up"
	FeedbackDown Feedback = "thumbs-down"
)

// QuestionResult is the session-local record of one answered or timed-out
// question. The list of these is the session's working memory and is
// discarded once the attempt is finalized.
type QuestionResult struct {
	QuestionID       string   `json:"questionId"`
	UserAnswer       string   `json:"userAnswer"`
	CorrectAnswer    string   `json:"correctAnswer"`
	IsCorrect        bool     `json:"isCorrect"`
	TimeSpentSeconds int      `json:"timeSpentSeconds"`
	WasAnswered      bool     `json:"wasAnswered"`
	Feedback         Feedback `json:"feedback,omitempty"`
}
