package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehul-raul/contract-analysis-agent/internal/llm"
)

func TestCrossEncoder_ScoresFollowPassageOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		var req crossEncoderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "notice period", req.Query)
		assert.True(t, req.RawScores)

		// Service answers sorted by score, not by index.
		_ = json.NewEncoder(w).Encode([]crossEncoderResult{
			{Index: 1, Score: 4.2},
			{Index: 0, Score: -1.5},
		})
	}))
	defer srv.Close()

	ce := NewCrossEncoder(CrossEncoderConfig{BaseURL: srv.URL + "/"})
	scores, err := ce.Score(context.Background(), "notice period", []string{"payment due", "30 days notice"})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1.5, 4.2}, scores)
	assert.Equal(t, DefaultCrossEncoderModel, ce.ModelName())
}

func TestCrossEncoder_LogsToInjectedLogger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]crossEncoderResult{{Index: 0, Score: 1}})
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ce := NewCrossEncoder(CrossEncoderConfig{BaseURL: srv.URL, Model: "mini", Logger: logger})
	_, err := ce.Score(context.Background(), "q", []string{"p"})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "cross_encoder_scored")
	assert.Contains(t, buf.String(), "model=mini")
}

func TestCrossEncoder_EmptyPassagesSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	scores, err := NewCrossEncoder(CrossEncoderConfig{BaseURL: srv.URL}).Score(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
	assert.False(t, called)
}

func TestCrossEncoder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
			want: "status 503",
		},
		{
			name: "missing score",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode([]crossEncoderResult{{Index: 0, Score: 1}})
			},
			want: "no score for passage 1",
		},
		{
			name: "bad index",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode([]crossEncoderResult{{Index: 7, Score: 1}})
			},
			want: "out-of-range index 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewCrossEncoder(CrossEncoderConfig{BaseURL: srv.URL}).Score(context.Background(), "q", []string{"a", "b"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

type stubLLM struct {
	response string
	err      error
	prompt   string
	opts     llm.GenerateOptions
}

func (s *stubLLM) Generate(_ context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	s.prompt = prompt
	s.opts = opts
	return s.response, s.err
}

func TestLLMScorer_ParsesFencedJSON(t *testing.T) {
	stub := &stubLLM{response: "```json\n{\"scores\": [{\"doc_index\": 1, \"score\": 1.7}, {\"doc_index\": 0, \"score\": 0.2}]}\n```"}
	s := NewLLMScorer(stub, WithModel("judge"))

	scores, err := s.Score(context.Background(), "notice period", []string{"payment", strings.Repeat("x", 600)})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 1}, scores)
	assert.Equal(t, "judge", stub.opts.Model)
	assert.True(t, stub.opts.JSON)
	assert.Contains(t, stub.prompt, "Query: notice period")
	assert.NotContains(t, stub.prompt, strings.Repeat("x", 501))
	assert.Equal(t, "judge", s.ModelName())
}

func TestLLMScorer_IncompleteAnswerIsError(t *testing.T) {
	s := NewLLMScorer(&stubLLM{response: `{"scores": [{"doc_index": 0, "score": 0.9}]}`})
	_, err := s.Score(context.Background(), "q", []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no score for passage 1")
}

func TestLLMScorer_GenerateError(t *testing.T) {
	s := NewLLMScorer(&stubLLM{err: errors.New("connection refused")})
	_, err := s.Score(context.Background(), "q", []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLLMScorer_NotJSON(t *testing.T) {
	s := NewLLMScorer(&stubLLM{response: "the first passage is best"})
	_, err := s.Score(context.Background(), "q", []string{"a"})
	require.Error(t, err)
}
