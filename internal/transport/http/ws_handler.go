package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-interaction-service/internal/app"
)

const sendBuffer = 32

type WSHandler struct {
	service  *app.InteractionService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(service *app.InteractionService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
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

type subscriptionPayload struct {
	QuestionID string `json:"questionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[errorPayload] {
	return outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: msg}}
}

// connection is the per-socket state. Only the reader goroutine touches subs.
type connection struct {
	clientID string
	send     chan any
	closing  chan struct{}
	subs     map[string]*app.Subscription
	wg       sync.WaitGroup
}

// ServeWS upgrades the request and lets the client subscribe to question topics.
// An optional questionId query parameter subscribes right after the upgrade.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(r.URL.Query().Get("clientId"))
	if clientID == "" {
		clientID = uuid.NewString()
	}
	initial := strings.TrimSpace(r.URL.Query().Get("questionId"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	c := &connection{
		clientID: clientID,
		send:     make(chan any, sendBuffer),
		closing:  make(chan struct{}),
		subs:     make(map[string]*app.Subscription),
	}
	log := h.logger.With(zap.String("client_id", clientID))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		failed := false
		for msg := range c.send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write failed", zap.Error(err))
				failed = true
				_ = conn.Close()
			}
		}
	}()

	if initial != "" {
		h.subscribe(ctx, c, initial)
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "subscribe", "unsubscribe":
			var payload subscriptionPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || strings.TrimSpace(payload.QuestionID) == "" {
				c.send <- errorMessage("invalid subscription payload")
				continue
			}
			if inbound.Type == "subscribe" {
				h.subscribe(ctx, c, payload.QuestionID)
			} else {
				h.unsubscribe(c, payload.QuestionID)
			}
		default:
			c.send <- errorMessage("unsupported message type")
		}
	}

	close(c.closing)
	for _, sub := range c.subs {
		h.service.Unsubscribe(sub)
	}
	c.wg.Wait()
	close(c.send)
	<-writerDone
	log.Debug("ws connection closed")
}

func (h *WSHandler) subscribe(ctx context.Context, c *connection, questionID string) {
	if _, ok := c.subs[questionID]; ok {
		c.send <- outboundMessage[subscriptionPayload]{Type: "subscribed", Payload: subscriptionPayload{QuestionID: questionID}}
		return
	}
	sub, err := h.service.Subscribe(ctx, questionID, c.clientID)
	if err != nil {
		c.send <- errorMessage(err.Error())
		return
	}
	c.subs[questionID] = sub
	// The ack is queued before the forwarder starts so it precedes every event of this topic.
	c.send <- outboundMessage[subscriptionPayload]{Type: "subscribed", Payload: subscriptionPayload{QuestionID: questionID}}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for evt := range sub.Events() {
			select {
			case c.send <- evt:
			case <-c.closing:
				return
			}
		}
	}()
}

func (h *WSHandler) unsubscribe(c *connection, questionID string) {
	if sub, ok := c.subs[questionID]; ok {
		h.service.Unsubscribe(sub)
		delete(c.subs, questionID)
	}
	c.send <- outboundMessage[subscriptionPayload]{Type: "unsubscribed", Payload: subscriptionPayload{QuestionID: questionID}}
}
