package analyzer

import (
	"regexp"
	"strings"

	"github.com/critiqlab/critiq/internal/model"
)

type rule struct {
	subtype    string
	pattern    *regexp.Regexp
	suggestion string
	reasoning  string
	confidence float64
}

var rulesByType = map[string][]rule{
	model.FeedbackTypeUnsourced: {
		{
			subtype:    "missing_citation",
			pattern:    regexp.MustCompile(`(?i)\b(studies show|research shows|experts (say|agree)|science says|it is well known)\b`),
			suggestion: "Name the specific study or source you are referring to.",
			reasoning:  "The text appeals to unnamed studies or experts without a citation.",
			confidence: 0.82,
		},
		{
			subtype:    "statistic_without_source",
			pattern:    regexp.MustCompile(`(?i)\b\d{1,3}(\.\d+)?%\s+of\b`),
			suggestion: "Add a source for this statistic.",
			reasoning:  "A percentage claim appears without any attribution.",
			confidence: 0.74,
		},
	},
	model.FeedbackTypeFallacy: {
		{
			subtype:    "ad_populum",
			pattern:    regexp.MustCompile(`(?i)\b(everyone knows|everybody agrees|nobody believes|most people think)\b`),
			suggestion: "Popularity is not evidence; support the claim on its merits.",
			reasoning:  "The argument leans on presumed consensus instead of evidence.",
			confidence: 0.78,
		},
		{
			subtype:    "slippery_slope",
			pattern:    regexp.MustCompile(`(?i)\bif we (allow|let|accept)\b.*\b(then|soon|next)\b`),
			suggestion: "Show why the first step actually leads to the predicted outcome.",
			reasoning:  "A chain of escalating consequences is asserted without justification.",
			confidence: 0.71,
		},
	},
	model.FeedbackTypeTone: {
		{
			subtype:    "hostile_language",
			pattern:    regexp.MustCompile(`(?i)\b(idiot(ic)?|stupid|moron(ic)?|ridiculous|pathetic|nonsense)\b`),
			suggestion: "Replace the insult with a concrete objection.",
			reasoning:  "Derogatory wording undercuts the point being made.",
			confidence: 0.85,
		},
	},
	model.FeedbackTypeBias: {
		{
			subtype:    "overgeneralization",
			pattern:    regexp.MustCompile(`(?i)\b(always|never|all of them|none of them|those people)\b`),
			suggestion: "Qualify the claim; absolutes rarely survive scrutiny.",
			reasoning:  "Absolute quantifiers generalize over an entire group.",
			confidence: 0.72,
		},
	},
	model.FeedbackTypeClarity: {
		{
			subtype:    "hedging",
			pattern:    regexp.MustCompile(`(?i)\b(sort of|kind of|basically|more or less|you know)\b`),
			suggestion: "Drop the hedge and state the point directly.",
			reasoning:  "Hedging phrases blur what is actually being claimed.",
			confidence: 0.68,
		},
	},
}

const longSentenceWordLimit = 45

// runHeuristics returns the first matching rule's result, or nil when no
// rule fires.
func runHeuristics(content, feedbackType, topicID string) *model.AnalysisResult {
	for _, r := range rulesByType[feedbackType] {
		if r.pattern.MatchString(content) {
			return &model.AnalysisResult{
				FeedbackType: feedbackType,
				Subtype:      r.subtype,
				Suggestion:   r.suggestion,
				Reasoning:    r.reasoning,
				Confidence:   r.confidence,
				TopicID:      topicID,
			}
		}
	}
	if feedbackType == model.FeedbackTypeClarity {
		if size := longestSentenceWords(content); size > longSentenceWordLimit {
			return &model.AnalysisResult{
				FeedbackType: feedbackType,
				Subtype:      "run_on_sentence",
				Suggestion:   "Split this sentence; it is hard to follow at this length.",
				Reasoning:    "A single sentence runs far past typical readable length.",
				Confidence:   0.65,
				TopicID:      topicID,
			}
		}
	}
	return nil
}

func longestSentenceWords(content string) int {
	max := 0
	for _, sentence := range regexp.MustCompile(`[.!?]+`).Split(content, -1) {
		if n := len(strings.Fields(sentence)); n > max {
			max = n
		}
	}
	return max
}
