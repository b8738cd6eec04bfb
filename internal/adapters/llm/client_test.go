package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemini-test", req.Model)
		if len(req.Messages) > 0 {
			gotPrompt = req.Messages[0].Content
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &gotPrompt
}

func completion(content string) string {
	return `{"id":"c1","object":"chat.completion","created":1,"model":"gemini-test",` +
		`"choices":[{"index":0,"message":{"role":"assistant","content":` + jsonString(content) + `},"finish_reason":"stop"}],` +
		`"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestClient_Offline(t *testing.T) {
	c := NewClient(Config{})
	assert.False(t, c.Online())

	out := c.Generate(context.Background(), "Summarize the doc.")
	assert.True(t, strings.HasPrefix(out, OfflineMarker))
	assert.Contains(t, out, `"Summarize the doc."`)

	_, err := c.CreateChatCompletion(context.Background(), "x")
	assert.Error(t, err)
}

func TestClient_OfflineDelayHonorsContext(t *testing.T) {
	c := NewClient(Config{OfflineDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := c.Generate(ctx, "p")
	assert.True(t, strings.HasPrefix(out, ErrorPrefix))
	assert.Contains(t, out, context.Canceled.Error())
}

func TestClient_Online(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   func(t *testing.T, out string)
	}{
		{
			name:   "returns generated text",
			status: http.StatusOK,
			body:   completion("Add a retry step."),
			want: func(t *testing.T, out string) {
				assert.Equal(t, "Add a retry step.", out)
			},
		},
		{
			name:   "empty text",
			status: http.StatusOK,
			body:   completion("   "),
			want: func(t *testing.T, out string) {
				assert.Equal(t, NoResponseText, out)
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"id":"c1","object":"chat.completion","choices":[]}`,
			want: func(t *testing.T, out string) {
				assert.Equal(t, NoResponseText, out)
			},
		},
		{
			name:   "api error becomes text",
			status: http.StatusInternalServerError,
			body:   `{"error":{"message":"quota exhausted","type":"server_error"}}`,
			want: func(t *testing.T, out string) {
				assert.True(t, strings.HasPrefix(out, ErrorPrefix))
				assert.Contains(t, out, "quota exhausted")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, prompt := chatServer(t, tt.status, tt.body)
			c := NewClient(Config{APIKey: "test-key", Model: "gemini-test", BaseURL: srv.URL + "/v1/"})
			require.True(t, c.Online())

			out := c.Generate(context.Background(), "Improve step 2")
			tt.want(t, out)
			assert.Equal(t, "Improve step 2", *prompt)
		})
	}
}

func TestClient_WithSleep(t *testing.T) {
	var waited time.Duration
	c := NewClient(Config{OfflineDelay: 1500 * time.Millisecond}, WithSleep(func(_ context.Context, d time.Duration) error {
		waited = d
		return nil
	}))
	out := c.Generate(context.Background(), "p")
	assert.Equal(t, 1500*time.Millisecond, waited)
	assert.Equal(t, OfflineResponse("p"), out)
}
