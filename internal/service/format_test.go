package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
	"github.com/mehul-raul/contract-analysis-agent/internal/retrieval"
)

func passage(text, source string, score float64) retrieval.RerankedCandidate {
	return retrieval.RerankedCandidate{
		FusedCandidate: retrieval.FusedCandidate{
			SearchCandidate: retrieval.SearchCandidate{Text: text},
		},
		RerankScore:    score,
		SourceDocument: source,
	}
}

func TestFormatDocumentResult(t *testing.T) {
	assert.Equal(t, "No relevant information found in the contract.", FormatDocumentResult(nil))

	got := FormatDocumentResult(&DocumentSearchResult{Passages: []retrieval.RerankedCandidate{
		passage("30 days notice", "lease.pdf", 7.256),
		passage("payment due", "lease.pdf", -1),
	}})
	assert.Equal(t, "Found the following relevant sections from the contract:\n\n"+
		"[Section 1] (Relevance: 7.26):\n30 days notice\n\n"+
		"[Section 2] (Relevance: -1.00):\npayment due\n\n", got)
}

func TestFormatSearchAllResult(t *testing.T) {
	docs := []*repository.Document{{Filename: "lease.pdf"}, {Filename: "nda.pdf"}}

	assert.Contains(t, FormatSearchAllResult(&SearchAllResult{Outcome: retrieval.OutcomeEmptyScope}),
		"You have no documents uploaded yet")

	assert.Equal(t, "❌ No relevant information found in your 2 document(s): lease.pdf, nda.pdf",
		FormatSearchAllResult(&SearchAllResult{Outcome: retrieval.OutcomeNoRelevantContent, Documents: docs}))

	got := FormatSearchAllResult(&SearchAllResult{
		Outcome:   retrieval.OutcomeFound,
		Documents: docs,
		Passages:  []retrieval.RerankedCandidate{passage("notice period is two weeks", "nda.pdf", 0.5)},
	})
	assert.Equal(t, "✅ Found relevant information across your documents:\n\n"+
		"--- Result 1 ---\n📄 Source: nda.pdf\n📊 Relevance: 0.50\n\nnotice period is two weeks\n\n", got)
}
