package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"passai-session-service/internal/app"
	"passai-session-service/internal/domain"
	"passai-session-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestWebSocketSessionFlow(t *testing.T) {
	loader := memory.NewStaticQuizLoader(sampleQuizzes())
	service := app.NewSessionService(
		memory.NewQuestionRepository(loader, time.Minute),
		memory.NewAttemptStore(loader),
		app.Config{},
	)
	handler := NewSessionHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/session", handler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/session?quizId=quiz-1&userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial question frame.
	if typ, _ := readNext(conn, t, "question"); typ != "question" {
		t.Fatalf("expected question, got %s", typ)
	}

	writeMsg(conn, t, "answer", map[string]any{"answer": "4"})
	waitFor(conn, t, "answerResult")

	writeMsg(conn, t, "next", nil)
	waitFor(conn, t, "question")

	writeMsg(conn, t, "answer", map[string]any{"answer": "Because the parts sum."})
	waitFor(conn, t, "answerResult")
	// Second of two questions is the midpoint; the check-in follows its submission.
	waitFor(conn, t, "moodCheckIn")

	writeMsg(conn, t, "mood", map[string]any{"mood": "focused", "energyLevel": 8})
	waitFor(conn, t, "moodSaved")

	writeMsg(conn, t, "finish", nil)
	payload := waitFor(conn, t, "completed")

	var summary app.CompletionSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.AttemptID == "" || summary.CorrectCount != 2 || summary.TotalQuestions != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestWebSocketUnknownQuiz(t *testing.T) {
	loader := memory.NewStaticQuizLoader(sampleQuizzes())
	service := app.NewSessionService(
		memory.NewQuestionRepository(loader, time.Minute),
		memory.NewAttemptStore(loader),
		app.Config{},
	)
	handler := NewSessionHandler(service)

	server := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "?quizId=missing&userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if typ, _ := readNext(conn, t, ""); typ != "error" {
		t.Fatalf("expected error frame, got %s", typ)
	}
}

func writeMsg(conn *websocket.Conn, t *testing.T, typ string, payload map[string]any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// waitFor reads frames until one of the wanted type arrives, skipping
// countdown ticks and other interleaved events.
func waitFor(conn *websocket.Conn, t *testing.T, want string) json.RawMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == want {
			return payload
		}
		if typ == "error" {
			t.Fatalf("unexpected error frame while waiting for %s: %s", want, payload)
		}
	}
	t.Fatalf("never received %s", want)
	return nil
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
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
				{
					ID:     "q2",
					Prompt: "Explain why.",
					Type:   domain.Essay,
					Points: 1,
				},
			},
		},
	}
}
