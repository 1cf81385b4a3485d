package suggest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mimic-chat/backend/internal/models"
	"mimic-chat/backend/internal/suggest"
	"mimic-chat/backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.DefaultConfig())
}

func history(texts ...string) []models.Message {
	msgs := make([]models.Message, len(texts))
	for i, text := range texts {
		msgs[i] = models.Message{
			ID:       "msg-" + string(rune('a'+i)),
			ChatID:   "chat-1",
			SenderID: "user-a",
			Text:     text,
		}
	}
	return msgs
}

func candidatePayload(t *testing.T, replies ...string) []byte {
	t.Helper()
	items := make([]map[string]string, len(replies))
	for i, r := range replies {
		items[i] = map[string]string{"text": r}
	}
	inner, err := json.Marshal(items)
	require.NoError(t, err)

	body := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": string(inner)}}}},
		},
	}
	out, err := json.Marshal(body)
	require.NoError(t, err)
	return out
}

func TestGenerateEmptyHistory(t *testing.T) {
	client := suggest.NewClientWithOptions(suggest.Options{
		BaseURL: "http://localhost:0",
		Model:   "test-model",
		APIKey:  "key",
	}, testLogger())

	got, err := client.Generate(context.Background(), nil, &models.User{ID: "user-a"}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerateWithoutAPIKey(t *testing.T) {
	client := suggest.NewClientWithOptions(suggest.Options{
		BaseURL: "http://localhost:0",
		Model:   "test-model",
	}, testLogger())

	got, err := client.Generate(context.Background(), history("hi"), &models.User{ID: "user-a"}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerateParsesCandidates(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write(candidatePayload(t, "Sounds good!", "Sure, when?", "Maybe later"))
	}))
	defer srv.Close()

	client := suggest.NewClientWithOptions(suggest.Options{
		BaseURL: srv.URL,
		Model:   "test-model",
		APIKey:  "key",
		Count:   3,
	}, testLogger())

	user := &models.User{ID: "user-a", Name: "Alice", PersonalityMode: models.PersonalityFriendly}
	got, err := client.Generate(context.Background(), history("want to meet up?"), user, &models.User{ID: "user-b", Name: "Bob"})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "Sounds good!", got[0].Text)
	assert.Equal(t, "/v1beta/models/test-model:generateContent", gotPath)

	// Confidence descends with rank
	assert.Greater(t, got[0].Confidence, got[1].Confidence)
	assert.Greater(t, got[1].Confidence, got[2].Confidence)
}

func TestGenerateSwallowsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := suggest.NewClientWithOptions(suggest.Options{
		BaseURL: srv.URL,
		Model:   "test-model",
		APIKey:  "key",
	}, testLogger())

	got, err := client.Generate(context.Background(), history("hi"), &models.User{ID: "user-a"}, nil)
	require.NoError(t, err, "upstream failures must not surface to callers")
	assert.Empty(t, got)
}

func TestGenerateSwallowsMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"not json"}]}}]}`))
	}))
	defer srv.Close()

	client := suggest.NewClientWithOptions(suggest.Options{
		BaseURL: srv.URL,
		Model:   "test-model",
		APIKey:  "key",
	}, testLogger())

	got, err := client.Generate(context.Background(), history("hi"), &models.User{ID: "user-a"}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerateBoundsWindow(t *testing.T) {
	var gotBody struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write(candidatePayload(t, "ok"))
	}))
	defer srv.Close()

	client := suggest.NewClientWithOptions(suggest.Options{
		BaseURL: srv.URL,
		Model:   "test-model",
		APIKey:  "key",
		Window:  2,
	}, testLogger())

	_, err := client.Generate(context.Background(), history("one", "two", "three"), &models.User{ID: "user-a"}, nil)
	require.NoError(t, err)

	require.Len(t, gotBody.Contents, 1)
	prompt := gotBody.Contents[0].Parts[0].Text
	assert.NotContains(t, prompt, "one", "messages beyond the window must be dropped")
	assert.Contains(t, prompt, "two")
	assert.Contains(t, prompt, "three")
}
