package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIComplete(t *testing.T) {
	var gotAuth string
	var gotReq openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"kcal": 100}`}},
			},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", 5*time.Second)
	client.SetBaseURL(srv.URL)

	text, err := client.Complete(context.Background(), "gpt-4o", "count the calories", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"kcal": 100}`, text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, float64(0), gotReq.Temperature)
}

func TestOpenAICompleteWithImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content []openAIContentPart `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		require.Len(t, req.Messages[0].Content, 2)
		assert.Equal(t, "text", req.Messages[0].Content[0].Type)
		assert.Equal(t, "image_url", req.Messages[0].Content[1].Type)
		assert.Contains(t, req.Messages[0].Content[1].ImageURL.URL, "data:image/jpeg;base64,")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", 5*time.Second)
	client.SetBaseURL(srv.URL)

	_, err := client.Complete(context.Background(), "gpt-4o", "what is this", []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)
}

func TestOpenAIAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit_error"},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", 5*time.Second)
	client.SetBaseURL(srv.URL)

	_, err := client.Complete(context.Background(), "gpt-4o", "hi", nil)
	require.ErrorIs(t, err, ErrProviderError)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestOpenAIMissingKey(t *testing.T) {
	client := NewOpenAIClient("", 5*time.Second)
	_, err := client.Complete(context.Background(), "gpt-4o", "hi", nil)
	assert.ErrorIs(t, err, ErrProviderError)
}
