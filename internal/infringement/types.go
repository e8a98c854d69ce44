// Package infringement implements the patent-infringement analysis pipeline:
// a research stage that drives a tool-augmented search conversation, an
// evaluation stage that scores the collected clues against the patent, and a
// summary stage that renders the final report.
package infringement

import "time"

const (
	// maxResearchRounds bounds the research conversation.
	maxResearchRounds = 5
	// maxEvaluationRounds bounds the evaluation conversation.
	maxEvaluationRounds = 3

	// researchTextLimit caps the patent text fed to research and evaluation
	// prompts. The full text stays in Materials.OriginalText.
	researchTextLimit = 15000
	// summaryTextLimit caps the patent text fed to the summary prompt.
	summaryTextLimit = 20000
	// truncationMarker is appended whenever prompt text is cut at a cap.
	truncationMarker = "\n... (truncated due to length)"

	// highRiskThreshold is the orchestrator's cutoff: only verdicts at or
	// above it are forwarded into the final report.
	highRiskThreshold = 70.0
	// targetCompanyScoreThreshold is the lowered escalation cutoff applied
	// to target-company clues during verdict post-processing.
	targetCompanyScoreThreshold = 60.0

	// searchCooldown is the pause after each tool-execution round, a
	// deliberate throttle against external rate limits.
	searchCooldown = time.Second

	// maxSnippetsPerQuery caps how many result lines one query contributes
	// to the summary digest.
	maxSnippetsPerQuery = 3
)

// Risk tiers as they appear in model output.
const (
	RiskLow     = "低"
	RiskMedium  = "中"
	RiskHigh    = "高"
	RiskUnknown = "未知"
)

// SearchResult is one executed search_internet call: the query, a formatted
// digest of its hits, and the hit URLs. Entries are append-only during
// research; only the IsTargetCompany backfill pass touches them afterwards.
type SearchResult struct {
	Query           string
	Result          string
	URLs            []string
	AfterDate       string
	IsTargetCompany bool
}

// Verdict is one parsed evaluation result for a clue.
type Verdict struct {
	// ClueID is the 1-based clue ordinal as a string, matching the section
	// header it was extracted from.
	ClueID     string
	MatchScore float64
	// RiskLevel is string-valued (低/中/高/未知) since it originates from
	// free-text extraction.
	RiskLevel       string
	Evidence        string
	IsTargetCompany bool
}

// Materials is the shared record carried through the pipeline. Each stage
// only adds to it; no stage mutates a predecessor's committed output. One
// record belongs to exactly one analysis run.
type Materials struct {
	OriginalText   string
	SearchResults  []SearchResult
	EvaluatedClues []Verdict
}

// truncate cuts text to at most limit characters (by rune), appending the
// truncation marker. Text at or below the limit is returned unmodified.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + truncationMarker
}
