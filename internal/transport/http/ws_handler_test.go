package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-interaction-service/internal/app"
	"quiz-interaction-service/internal/domain"
	"quiz-interaction-service/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	service := app.NewInteractionService(app.ServiceDeps{
		Questions:   questions,
		Answers:     memory.NewAnswerStore(),
		Users:       memory.NewUserDirectory("u1", "u2"),
		Statistics:  app.NewStatisticsAggregator(memory.NewStatisticsStore(), nil),
		Ledger:      app.NewEngagementLedger(questions, memory.NewLedgerStore(), nil),
		Broadcaster: app.NewTopicBroadcaster(app.NewTopicRegistry(), 16, nil),
	})

	server := httptest.NewServer(NewRouter(NewAPIHandler(service, nil), NewWSHandler(service, nil), nil))
	t.Cleanup(server.Close)
	return server
}

func dialWS(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketReceivesNewAnswer(t *testing.T) {
	server := newTestServer(t)
	conn := dialWS(t, server, "questionId=pendulum&clientId=viewer-1")

	msg := readNext(t, conn)
	require.Equal(t, "subscribed", msg["type"])
	assert.Equal(t, "pendulum", msg["payload"].(map[string]any)["questionId"])

	resp := postJSON(t, server, "/api/questions/pendulum/answers", "u1", `{"content":"空気抵抗と摩擦でエネルギーが失われるから"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	msg = readNext(t, conn)
	require.Equal(t, "NEW_ANSWER", msg["type"])
	assert.Equal(t, "pendulum", msg["questionId"])
	answer := msg["answer"].(map[string]any)
	assert.Equal(t, "空気抵抗と摩擦でエネルギーが失われるから", answer["text"])
	assert.Equal(t, "u1", answer["author"].(map[string]any)["id"])
	assert.NotContains(t, answer, "correct")
}

func TestWebSocketLikeEventsCarryCounts(t *testing.T) {
	server := newTestServer(t)
	conn := dialWS(t, server, "clientId=viewer-1")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "subscribe",
		"payload": map[string]any{"questionId": "pendulum"},
	}))
	require.Equal(t, "subscribed", readNext(t, conn)["type"])

	resp := postJSON(t, server, "/api/questions/pendulum/like", "u1", "")
	resp.Body.Close()
	msg := readNext(t, conn)
	assert.Equal(t, "LIKE_ADDED", msg["type"])
	assert.EqualValues(t, 1, msg["count"])

	resp = postJSON(t, server, "/api/questions/pendulum/like", "u1", "")
	resp.Body.Close()
	msg = readNext(t, conn)
	assert.Equal(t, "LIKE_REMOVED", msg["type"])
	assert.EqualValues(t, 0, msg["count"])
}

func TestWebSocketUnsubscribeStopsDelivery(t *testing.T) {
	server := newTestServer(t)
	conn := dialWS(t, server, "questionId=pendulum")
	require.Equal(t, "subscribed", readNext(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "unsubscribe",
		"payload": map[string]any{"questionId": "pendulum"},
	}))
	require.Equal(t, "unsubscribed", readNext(t, conn)["type"])

	resp := postJSON(t, server, "/api/questions/pendulum/like", "u1", "")
	resp.Body.Close()

	// A subscription to another topic proves the connection is still alive and nothing was queued before it.
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "subscribe",
		"payload": map[string]any{"questionId": "rust"},
	}))
	msg := readNext(t, conn)
	assert.Equal(t, "subscribed", msg["type"])
	assert.Equal(t, "rust", msg["payload"].(map[string]any)["questionId"])
}

func TestWebSocketRejectsUnknownQuestionAndMessages(t *testing.T) {
	server := newTestServer(t)
	conn := dialWS(t, server, "clientId=viewer-1")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "subscribe",
		"payload": map[string]any{"questionId": "missing"},
	}))
	msg := readNext(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["payload"].(map[string]any)["message"], "not found")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "answer"}))
	msg = readNext(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "unsupported message type", msg["payload"].(map[string]any)["message"])
}

func readNext(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var msg map[string]any
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func sampleQuestions() map[string]domain.Question {
	return map[string]domain.Question{
		"pendulum": {
			ID:                   "pendulum",
			Title:                "次に起こることを予測しよう！",
			Body:                 "振り子はなぜだんだん止まるのでしょう？",
			Difficulty:           2,
			Subject:              domain.SubjectPhysics,
			CorrectAnswerPattern: []string{"空気抵抗", "摩擦", "エネルギー", "減衰", "運動エネルギー"},
			OwnerID:              "teacher-1",
			VideoURL:             "/videos/question1.mp4",
		},
		"rust": {
			ID:                   "rust",
			Title:                "Why does iron rust?",
			Body:                 "Explain what happens to the nail left outside.",
			Difficulty:           2,
			Subject:              domain.SubjectChemistry,
			CorrectAnswerPattern: []string{"oxygen", "water", "oxidation"},
			OwnerID:              "teacher-2",
		},
	}
}
