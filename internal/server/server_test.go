package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dietolog/internal/agent"
	"dietolog/internal/config"
	"dietolog/internal/llm"
	"dietolog/internal/prompt"
	"dietolog/internal/store"
)

type cannedClient struct {
	responses []string
}

func (c *cannedClient) Complete(_ context.Context, _, _ string, _ []byte) (string, error) {
	if len(c.responses) == 0 {
		return "", assert.AnError
	}
	next := c.responses[0]
	c.responses = c.responses[1:]
	return next, nil
}

func newTestServer(t *testing.T, responses ...string) *httptest.Server {
	t.Helper()
	cfg := &config.Config{LLMProvider: config.ProviderOpenAI}
	cfg.Server.Port = "0"
	gateway := llm.NewGatewayWithClients(cfg, map[config.Provider]llm.Client{
		config.ProviderOpenAI: &cannedClient{responses: responses},
	}, zap.NewNop())
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	svc := agent.New(cfg, gateway, prompt.Default, st, nil, zap.NewNop())

	srv := New(svc, cfg, zap.NewNop())
	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

type envelope struct {
	Type    string         `json:"type"`
	Data    map[string]any `json:"data"`
	Message string         `json:"message"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestWebSocketRequiresUserID(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMealFlowOverWebSocket(t *testing.T) {
	mealResponse := `{
  "items": [{"name": "apple", "kcal": 95, "protein_g": 0, "fat_g": 0, "carbs_g": 25}],
  "total": {"kcal": 95, "protein_g": 0, "fat_g": 0, "carbs_g": 25},
  "clarification": null
}`
	contextResponse := `{
  "summary": {"kcal": 95, "protein_g": 0, "fat_g": 0, "carbs_g": 25,
              "sugar_g": 0, "fiber_g": 0},
  "context_comment": "Nice light start."
}`
	ts := newTestServer(t, mealResponse, contextResponse)
	conn := dial(t, ts, "?user_id=alice")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "meal",
		"data": map[string]any{"meal_type": "snack", "text": "an apple"},
	}))
	draft := readEnvelope(t, conn)
	require.Equal(t, "meal_draft", draft.Type)
	mealID, _ := draft.Data["id"].(string)
	require.NotEmpty(t, mealID)
	assert.Equal(t, true, draft.Data["pending"])

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "confirm_meal",
		"data": map[string]any{"id": mealID},
	}))
	confirmed := readEnvelope(t, conn)
	require.Equal(t, "meal_confirmed", confirmed.Type)
	summary, ok := confirmed.Data["summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(95), summary["kcal"])
	assert.Contains(t, confirmed.Data["comment"], "light start")
}

func TestSetPercentRoundsFractionalInput(t *testing.T) {
	mealResponse := `{
  "items": [{"name": "apple", "kcal": 95, "protein_g": 0, "fat_g": 0, "carbs_g": 25}],
  "total": {"kcal": 95, "protein_g": 0, "fat_g": 0, "carbs_g": 25},
  "clarification": null
}`
	ts := newTestServer(t, mealResponse)
	conn := dial(t, ts, "?user_id=alice")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "meal",
		"data": map[string]any{"meal_type": "snack", "text": "an apple"},
	}))
	draft := readEnvelope(t, conn)
	require.Equal(t, "meal_draft", draft.Type)
	mealID, _ := draft.Data["id"].(string)
	require.NotEmpty(t, mealID)

	// 49.6 must round to 50, not truncate to 49.
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "set_percent",
		"data": map[string]any{"id": mealID, "percent": 49.6},
	}))
	updated := readEnvelope(t, conn)
	require.Equal(t, "meal_updated", updated.Type)
	assert.Equal(t, float64(50), updated.Data["percent_eaten"])
	total, ok := updated.Data["total"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(48), total["kcal"])
}

func TestUnknownMessageType(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts, "?user_id=alice")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "teleport"}))
	env := readEnvelope(t, conn)
	assert.Equal(t, "error", env.Type)
	assert.Equal(t, "Unknown message type", env.Message)
}

func TestConfirmUnknownMealSendsPoliteError(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts, "?user_id=alice")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "confirm_meal",
		"data": map[string]any{"id": "nope"},
	}))
	env := readEnvelope(t, conn)
	assert.Equal(t, "error", env.Type)
	assert.Equal(t, "I could not find that entry.", env.Message)
}

func TestEmptyMealRejected(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts, "?user_id=alice")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "meal",
		"data": map[string]any{"meal_type": "snack"},
	}))
	env := readEnvelope(t, conn)
	assert.Equal(t, "error", env.Type)
	assert.Contains(t, env.Message, "Describe the meal")
}
