package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"medquiz-service/internal/app"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/logger"
)

type WSHandler struct {
	service  *app.QuestionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuestionService) *WSHandler {
	return &WSHandler{
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

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ServeWS streams vote tallies of one question. Viewers identified by the proxy headers may also
// vote over the socket; the resulting question is echoed back to the voter and the tally reaches
// every viewer.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	questionID, err := strconv.Atoi(r.URL.Query().Get("questionId"))
	if err != nil || questionID <= 0 {
		http.Error(w, "missing or invalid questionId", http.StatusBadRequest)
		return
	}
	user := UserFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.SubscribeTallies(r.Context(), questionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: wsError(err)})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer goroutine; gorilla connections do not support concurrent writes.
	// A failed write closes the connection so the read loop below ends too.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("ws write failed", "question_id", questionID, "error", err)
				_ = conn.Close()
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case tally, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "tally", Payload: tally}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply outboundMessage[any]
		switch inbound.Type {
		case "vote":
			var req domain.VoteRequest
			if err := json.Unmarshal(inbound.Payload, &req); err != nil {
				reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Type: domain.ErrorTypeBadRequest, Message: "invalid vote payload"}}
				break
			}
			q, err := h.service.Vote(r.Context(), questionID, req, user)
			if err != nil {
				reply = outboundMessage[any]{Type: "error", Payload: wsError(err)}
				break
			}
			reply = outboundMessage[any]{Type: "question", Payload: q}
		default:
			reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Type: domain.ErrorTypeBadRequest, Message: "unsupported message type"}}
		}
		if !push(reply) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// wsError masks server errors the same way the REST handlers do.
func wsError(err error) errorPayload {
	errType := domain.ErrorType(err)
	if errType == domain.ErrorTypeServer {
		logger.Error("ws request failed", "error", err)
		return errorPayload{Type: errType, Message: "internal server error"}
	}
	return errorPayload{Type: errType, Message: err.Error()}
}
