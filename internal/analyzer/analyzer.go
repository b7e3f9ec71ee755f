package analyzer

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/critiqlab/critiq/internal/ai"
	"github.com/critiqlab/critiq/internal/model"
)

// Analyzer produces fresh feedback when both cache tiers miss. The regex
// heuristics run first; when they find nothing and a generator is configured,
// a model-backed pass gets the final word. A nil result means the content has
// no issue of the requested type.
type Analyzer struct {
	generator ai.IGenerator
}

func New(generator ai.IGenerator) *Analyzer {
	return &Analyzer{generator: generator}
}

func (a *Analyzer) Analyze(ctx context.Context, content, feedbackType, topicID string) (*model.AnalysisResult, error) {
	if result := runHeuristics(content, feedbackType, topicID); result != nil {
		return result, nil
	}
	if a.generator == nil {
		return nil, nil
	}
	result, err := a.modelPass(ctx, content, feedbackType, topicID)
	if err != nil {
		logutil.GetLogger(ctx).Error("model analysis failed", zap.String("feedback_type", feedbackType), zap.Error(err))
		return nil, err
	}
	return result, nil
}
