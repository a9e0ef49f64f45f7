package reranker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mehul-raul/contract-analysis-agent/internal/llm"
)

// maxPassageChars truncates passages in the judging prompt to stay within
// the model's context.
const maxPassageChars = 500

// LLMScorer uses an LLM to judge query-passage pairs. The model sees the
// query and every passage together, approximating a cross-encoder.
type LLMScorer struct {
	llmClient llm.LLM
	model     string
}

// LLMScorerOption is a functional option for configuring LLMScorer.
type LLMScorerOption func(*LLMScorer)

// WithModel sets the model used for judging.
func WithModel(model string) LLMScorerOption {
	return func(s *LLMScorer) {
		s.model = model
	}
}

// NewLLMScorer creates a new LLM-backed scorer.
func NewLLMScorer(llmClient llm.LLM, opts ...LLMScorerOption) *LLMScorer {
	s := &LLMScorer{
		llmClient: llmClient,
		model:     llm.DefaultModel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type relevanceScore struct {
	DocIndex int     `json:"doc_index"`
	Score    float64 `json:"score"`
}

type judgeResponse struct {
	Scores []relevanceScore `json:"scores"`
}

// Score asks the LLM to rate every passage in a single prompt. An unparseable
// or incomplete answer is an error: guessing scores would silently corrupt
// the final ordering.
func (s *LLMScorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return []float64{}, nil
	}

	response, err := s.llmClient.Generate(ctx, buildJudgePrompt(query, passages), llm.GenerateOptions{
		Model:       s.model,
		Temperature: 0,
		MaxTokens:   64 + 32*len(passages),
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM relevance judging failed: %w", err)
	}

	return parseJudgeResponse(response, len(passages))
}

// ModelName returns the judging model.
func (s *LLMScorer) ModelName() string {
	return s.model
}

func buildJudgePrompt(query string, passages []string) string {
	var sb strings.Builder

	sb.WriteString("You are a relevance scoring system. Score each passage's relevance to the query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nPassages to score:\n")
	for i, p := range passages {
		if len(p) > maxPassageChars {
			p = p[:maxPassageChars] + "..."
		}
		fmt.Fprintf(&sb, "[Doc %d]: %s\n\n", i, p)
	}

	sb.WriteString(`Score every passage from 0.0 to 1.0 based on relevance to the query.
Output ONLY valid JSON in this exact format:
{"scores": [{"doc_index": 0, "score": 0.9}, {"doc_index": 1, "score": 0.3}, ...]}

Be strict: irrelevant passages score below 0.3, somewhat relevant 0.3-0.7, highly relevant above 0.7.
Output only JSON, no explanation:`)

	return sb.String()
}

func parseJudgeResponse(response string, n int) ([]float64, error) {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if strings.HasPrefix(response[start:], "json") {
			start += 4
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = strings.TrimSpace(response[start : start+end])
		}
	}

	var parsed judgeResponse
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse judge response: %w", err)
	}

	scores := make([]float64, n)
	seen := make([]bool, n)
	for _, s := range parsed.Scores {
		if s.DocIndex < 0 || s.DocIndex >= n {
			continue
		}
		scores[s.DocIndex] = min(max(s.Score, 0), 1)
		seen[s.DocIndex] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("judge response has no score for passage %d", i)
		}
	}

	return scores, nil
}

var _ Scorer = (*LLMScorer)(nil)
