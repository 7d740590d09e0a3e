package gemini

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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
)

func newTestClient(url string) *Client {
	return New(Options{
		APIKey: "key-123", BaseURL: url + "/", Model: "gemini-2.0-flash-exp",
		Temperature: 0.1, TopK: 1, TopP: 0.95, MaxOutputTokens: 32768,
	})
}

func TestInvoke_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash-exp:generateContent", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"overall\":"},{"text":"{}}"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Invoke(context.Background(), "rules", "pages")
	require.NoError(t, err)
	assert.Equal(t, `{"overall":{}}`, out)

	cfg := got["generationConfig"].(map[string]any)
	assert.InDelta(t, 0.1, cfg["temperature"], 1e-6)
	assert.Equal(t, float64(1), cfg["topK"])
	assert.InDelta(t, 0.95, cfg["topP"], 1e-6)
	assert.Equal(t, float64(32768), cfg["maxOutputTokens"])
	assert.Equal(t, "application/json", cfg["responseMimeType"])

	sys := got["systemInstruction"].(map[string]any)["parts"].([]any)[0].(map[string]any)
	assert.Equal(t, "rules", sys["text"])
	user := got["contents"].([]any)[0].(map[string]any)
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, "pages", user["parts"].([]any)[0].(map[string]any)["text"])
}

func TestInvoke_TruncatedOutputReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"overall\":{"}]},"finishReason":"MAX_TOKENS"}]}`))
	}))
	defer srv.Close()
	out, err := newTestClient(srv.URL).Invoke(context.Background(), "", "x")
	require.NoError(t, err)
	assert.Equal(t, `{"overall":{`, out)
}

func TestInvoke_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, "status 401"},
		{"server error", http.StatusInternalServerError, `oops`, "status 500"},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, "SAFETY"},
		{"bad json", http.StatusOK, `not json`, "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			_, err := newTestClient(srv.URL).Invoke(context.Background(), "rules", "pages")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrModelInvocationFailed)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestInvoke_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv.URL).Invoke(ctx, "rules", "pages")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrModelInvocationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{Model: "m"})
	assert.Equal(t, DefaultBaseURL, c.opts.BaseURL)
	assert.Zero(t, c.hc.Timeout)
}

func useRecordingTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return tp, rec
}

func spanNames(rec *tracetest.SpanRecorder) []string {
	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	return names
}

func TestInvoke_PropagatesTraceContext(t *testing.T) {
	tp, rec := useRecordingTracer(t)
	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{}"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	ctx, span := tp.Tracer("test").Start(context.Background(), "evaluate")
	_, err := newTestClient(srv.URL).Invoke(ctx, "rules", "pages")
	span.End()
	require.NoError(t, err)

	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
	assert.Contains(t, spanNames(rec), "Gemini POST "+strings.TrimPrefix(srv.URL, "http://"))
}
