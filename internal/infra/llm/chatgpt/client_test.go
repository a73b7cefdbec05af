package chatgpt

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompleteSendsSystemAndUserMessages(t *testing.T) {
	t.Parallel()

	var got struct {
		Model       string    `json:"model"`
		Temperature float32   `json:"temperature"`
		Messages    []Message `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(w, `{"query_type":"today"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3)
	out, err := client.Complete(context.Background(), "user prompt", "system prompt", 0.1)
	require.NoError(t, err)
	require.Equal(t, `{"query_type":"today"}`, out)

	require.Equal(t, "test-model", got.Model)
	require.InDelta(t, 0.1, got.Temperature, 0.0001)
	require.Equal(t, []Message{
		{Role: "system", Content: "system prompt"},
		{Role: "user", Content: "user prompt"},
	}, got.Messages)
}

func TestCreateChatCompletionReportsUsage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "hello")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 1)
	resp, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Content)
	require.Equal(t, 12, resp.Usage.PromptTokens)
	require.Equal(t, 3, resp.Usage.CompletionTokens)
	require.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestRetryPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantWaits []time.Duration
	}{
		{
			name:      "rate limited backs off exponentially",
			status:    http.StatusTooManyRequests,
			body:      `{"error":{"message":"Rate limit reached","type":"requests"}}`,
			wantWaits: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond},
		},
		{
			name:      "model loading waits linearly",
			status:    http.StatusServiceUnavailable,
			body:      `{"error":{"message":"model llama3 is currently loading","type":"server_error"}}`,
			wantWaits: []time.Duration{time.Second, 2 * time.Second},
		},
		{
			name:      "other failures wait the base delay",
			status:    http.StatusInternalServerError,
			body:      `{"error":{"message":"internal","type":"server_error"}}`,
			wantWaits: []time.Duration{100 * time.Millisecond, 100 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) < 3 {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(tt.status)
					_, _ = io.WriteString(w, tt.body)
					return
				}
				writeCompletion(w, "recovered")
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL, 3)
			var waits []time.Duration
			client.sleep = func(_ context.Context, d time.Duration) error {
				waits = append(waits, d)
				return nil
			}

			out, err := client.Complete(context.Background(), "prompt", "", 0.5)
			require.NoError(t, err)
			require.Equal(t, "recovered", out)
			require.Equal(t, int32(3), calls.Load())
			require.Equal(t, tt.wantWaits, waits)
		})
	}
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 2)
	client.sleep = func(context.Context, time.Duration) error { return nil }

	_, err := client.Complete(context.Background(), "prompt", "", 0.5)
	require.ErrorContains(t, err, "after 2 attempts")
	require.Equal(t, int32(2), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"message":"invalid model","type":"invalid_request_error"}}`},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`},
		{name: "not found", status: http.StatusNotFound, body: `{"error":{"message":"The model does not exist","type":"invalid_request_error"}}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL, 3)
			var waits []time.Duration
			client.sleep = func(_ context.Context, d time.Duration) error {
				waits = append(waits, d)
				return nil
			}

			_, err := client.Complete(context.Background(), "prompt", "", 0.5)
			require.Error(t, err)
			require.Equal(t, int32(1), calls.Load())
			require.Empty(t, waits)
		})
	}
}

func TestCancelledContextStopsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 5)
	ctx, cancel := context.WithCancel(context.Background())
	client.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := client.Complete(ctx, "prompt", "", 0.5)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int32(1), calls.Load())
}

func TestEmptyChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3)
	_, err := client.Complete(context.Background(), "prompt", "", 0.5)
	require.ErrorIs(t, err, ErrNoChoices)
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Model: "m"}, discardLogger())
	require.Error(t, err)

	_, err = NewClient(Config{APIKey: "k"}, discardLogger())
	require.Error(t, err)
}

func newTestClient(t *testing.T, baseURL string, maxRetries int) *Client {
	t.Helper()
	client, err := NewClient(Config{
		APIKey:            "test-key",
		BaseURL:           baseURL + "/v1",
		Model:             "test-model",
		MaxRetries:        maxRetries,
		RetryDelay:        100 * time.Millisecond,
		ModelLoadingDelay: time.Second,
		Timeout:           5 * time.Second,
	}, discardLogger())
	require.NoError(t, err)
	return client
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": content},
		}},
		"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
