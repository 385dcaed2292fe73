package oracle

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	supporterrors "github.com/blueberrycongee/supportdesk/pkg/errors"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

func chatServer(t *testing.T, status int, content string, capture *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if capture != nil {
			require.NoError(t, json.Unmarshal(body, capture))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error": {"message": "` + content + `"}}`))
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLLMOracle_ClassifyOverChat(t *testing.T) {
	var captured chatRequest
	srv := chatServer(t, http.StatusOK, `{"intent":"kb_query","confidence":0.66}`, &captured)

	o := NewLLMOracle(NewChatCompleter("gpt-4o-mini", WithChatAPIKey("test-key"), WithChatBaseURL(srv.URL+"/")))
	got, err := o.Classify(context.Background(), "What are your hours?", Hint{CurrentAction: "schedule_appointment"})
	require.NoError(t, err)

	assert.Equal(t, "kb_query", got.Intent)
	assert.InDelta(t, 0.66, got.Confidence, 1e-9)
	assert.Equal(t, "gpt-4o-mini", captured.Model)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[1].Content, "schedule_appointment")
	assert.Contains(t, captured.Messages[1].Content, "What are your hours?")
}

func TestLLMOracle_GenerateIncludesHistory(t *testing.T) {
	var captured chatRequest
	srv := chatServer(t, http.StatusOK, "  Hello and welcome!  ", &captured)

	o := NewLLMOracle(NewChatCompleter("m", WithChatAPIKey("test-key"), WithChatBaseURL(srv.URL)))
	history := []types.HistoryTurn{{User: "hi", Bot: "hello"}}
	reply, err := o.Generate(context.Background(), "greet the customer", RoleGreeting, history)
	require.NoError(t, err)

	assert.Equal(t, "Hello and welcome!", reply)
	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "assistant", captured.Messages[2].Role)
	assert.Nil(t, captured.ResponseFormat)
}

func TestChatCompleter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.status, "nope", nil)
			c := NewChatCompleter("m", WithChatAPIKey("test-key"), WithChatBaseURL(srv.URL))

			_, err := c.Complete(context.Background(), CompletionRequest{User: "hi"})
			require.Error(t, err)
			assert.True(t, supporterrors.IsType(err, supporterrors.TypeOracleUnavailable))
			assert.Equal(t, tt.wantRetryable, supporterrors.IsRetryable(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestLLMOracle_EmptyReplyIsMalformed(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "   ", nil)
	o := NewLLMOracle(NewChatCompleter("m", WithChatAPIKey("test-key"), WithChatBaseURL(srv.URL)))

	_, err := o.Generate(context.Background(), "x", RoleGoodbye, nil)
	assert.True(t, supporterrors.IsType(err, supporterrors.TypeMalformedOracleOutput))
}

func TestNewGeminiCompleter_RequiresKey(t *testing.T) {
	_, err := NewGeminiCompleter(context.Background(), "", "")
	assert.Error(t, err)
}
