package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/critiqlab/critiq/internal/model"
)

var typeInstructions = map[string]string{
	model.FeedbackTypeTone:      "hostile, dismissive or otherwise counterproductive tone",
	model.FeedbackTypeFallacy:   "logical fallacies in the argument",
	model.FeedbackTypeClarity:   "unclear, ambiguous or convoluted phrasing",
	model.FeedbackTypeBias:      "biased framing or loaded generalizations",
	model.FeedbackTypeUnsourced: "factual claims made without any source",
}

type modelVerdict struct {
	HasIssue   bool    `json:"has_issue"`
	Subtype    string  `json:"subtype"`
	Suggestion string  `json:"suggestion"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

func (a *Analyzer) modelPass(ctx context.Context, content, feedbackType, topicID string) (*model.AnalysisResult, error) {
	prompt := fmt.Sprintf(`You are a writing-feedback assistant.
Check the text below for %s.
Respond with a single JSON object, no extra text:
{"has_issue": bool, "subtype": string, "suggestion": string, "reasoning": string, "confidence": number between 0 and 1}
If there is no issue, set has_issue to false and leave the other fields empty.

TEXT:
%s`, typeInstructions[feedbackType], content)

	raw, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	verdict, err := parseVerdict(raw)
	if err != nil {
		return nil, err
	}
	if !verdict.HasIssue {
		return nil, nil
	}
	return &model.AnalysisResult{
		FeedbackType: feedbackType,
		Subtype:      verdict.Subtype,
		Suggestion:   verdict.Suggestion,
		Reasoning:    verdict.Reasoning,
		Confidence:   verdict.Confidence,
		TopicID:      topicID,
	}, nil
}

func parseVerdict(output string) (*modelVerdict, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	verdict := &modelVerdict{}
	if err := json.Unmarshal([]byte(clean), verdict); err != nil {
		return nil, fmt.Errorf("parse analysis verdict: %w", err)
	}
	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	}
	if verdict.Confidence > 1 {
		verdict.Confidence = 1
	}
	return verdict, nil
}
