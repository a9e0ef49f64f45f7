package service

import (
	"fmt"
	"strings"

	"github.com/mehul-raul/contract-analysis-agent/internal/retrieval"
)

// FormatDocumentResult renders a single-document search for an agent tool.
func FormatDocumentResult(res *DocumentSearchResult) string {
	if res == nil || len(res.Passages) == 0 {
		return "No relevant information found in the contract."
	}

	var sb strings.Builder
	sb.WriteString("Found the following relevant sections from the contract:\n\n")
	for i, p := range res.Passages {
		fmt.Fprintf(&sb, "[Section %d] (Relevance: %.2f):\n", i+1, p.RerankScore)
		sb.WriteString(p.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// FormatSearchAllResult renders a search across every owned document for an
// agent tool, distinguishing "no documents" from "nothing relevant".
func FormatSearchAllResult(res *SearchAllResult) string {
	switch res.Outcome {
	case retrieval.OutcomeEmptyScope:
		return "❌ You have no documents uploaded yet. Please upload a PDF document first, then I can help analyze it!"
	case retrieval.OutcomeNoRelevantContent:
		names := make([]string, len(res.Documents))
		for i, d := range res.Documents {
			names[i] = d.Filename
		}
		return fmt.Sprintf("❌ No relevant information found in your %d document(s): %s",
			len(res.Documents), strings.Join(names, ", "))
	}

	var sb strings.Builder
	sb.WriteString("✅ Found relevant information across your documents:\n\n")
	for i, p := range res.Passages {
		fmt.Fprintf(&sb, "--- Result %d ---\n", i+1)
		fmt.Fprintf(&sb, "📄 Source: %s\n", p.SourceDocument)
		fmt.Fprintf(&sb, "📊 Relevance: %.2f\n\n", p.RerankScore)
		sb.WriteString(p.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
