package service

import (
	"context"
	"strings"

	"github.com/critiqlab/critiq/internal/analyzer"
	"github.com/critiqlab/critiq/internal/cache"
	"github.com/critiqlab/critiq/internal/model"
	appErr "github.com/critiqlab/critiq/internal/pkg/errors"
)

const maxContentChars = 20000

// FeedbackService is the caller-facing surface: it validates the request,
// then lets the orchestrator resolve it through the cache tiers with the
// analyzer injected as the fallback.
type FeedbackService struct {
	orchestrator *cache.Orchestrator
	analyzer     *analyzer.Analyzer
}

func NewFeedbackService(orchestrator *cache.Orchestrator, fallback *analyzer.Analyzer) *FeedbackService {
	return &FeedbackService{orchestrator: orchestrator, analyzer: fallback}
}

func (s *FeedbackService) Analyze(ctx context.Context, content, feedbackType, topicID string) (*cache.Lookup, error) {
	if strings.TrimSpace(content) == "" {
		return nil, appErr.ErrInvalid
	}
	if len(content) > maxContentChars {
		return nil, appErr.ErrInvalid
	}
	feedbackType = strings.ToUpper(strings.TrimSpace(feedbackType))
	if !model.IsFeedbackType(feedbackType) {
		return nil, appErr.ErrInvalid
	}
	return s.orchestrator.LookupOrCompute(ctx, content, feedbackType, topicID,
		func(ctx context.Context, text string) (*model.AnalysisResult, error) {
			return s.analyzer.Analyze(ctx, text, feedbackType, topicID)
		})
}

// LastLookup exposes which tier satisfied the most recent lookup.
func (s *FeedbackService) LastLookup() (cache.LookupInfo, bool) {
	return s.orchestrator.LastLookup()
}
