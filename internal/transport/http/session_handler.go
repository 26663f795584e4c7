package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"passai-session-service/internal/app"
	"passai-session-service/internal/domain"
	"github.com/gorilla/websocket"
)

type SessionHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewSessionHandler(service *app.SessionService) *SessionHandler {
	return &SessionHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type feedbackPayload struct {
	QuestionID string `json:"questionId"`
	Feedback   string `json:"feedback"`
}

type moodPayload struct {
	Mood        string `json:"mood"`
	EnergyLevel int    `json:"energyLevel"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and runs one attempt
// session per connection. A load or attempt-creation failure produces a
// single error frame and closes the socket; disconnecting before the
// attempt completes abandons it.
func (h *SessionHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.Begin(r.Context(), quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	// Abandons the attempt unless it completed first.
	defer session.Exit(context.Background())

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(update.Type), Payload: update.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

readLoop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			if _, err := session.Submit(r.Context(), payload.Answer); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "next", "finish":
			if err := session.Advance(r.Context()); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "feedback":
			var payload feedbackPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid feedback payload"}}
				continue
			}
			if err := session.SaveFeedback(payload.QuestionID, domain.Feedback(payload.Feedback)); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "mood":
			var payload moodPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid mood payload"}}
				continue
			}
			if err := session.Mood(r.Context(), payload.Mood, payload.EnergyLevel); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "dismissMood":
			session.DismissMood()
		case "exit":
			break readLoop
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
