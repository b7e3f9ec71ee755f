package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/critiqlab/critiq/internal/model"
)

type scriptedGenerator struct {
	output string
	err    error
	calls  int
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	return g.output, g.err
}

func TestAnalyze_HeuristicMatch(t *testing.T) {
	a := New(nil)
	result, err := a.Analyze(context.Background(), "Studies show that X is true.", model.FeedbackTypeUnsourced, "topic-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, model.FeedbackTypeUnsourced, result.FeedbackType)
	require.Equal(t, "missing_citation", result.Subtype)
	require.Greater(t, result.Confidence, 0.7)
	require.Equal(t, "topic-1", result.TopicID)
}

func TestAnalyze_NoIssueWithoutGenerator(t *testing.T) {
	a := New(nil)
	result, err := a.Analyze(context.Background(), "The meeting is at noon on Tuesday.", model.FeedbackTypeTone, "")
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestAnalyze_ModelPassOnlyWhenHeuristicsMiss(t *testing.T) {
	gen := &scriptedGenerator{output: `{"has_issue": false}`}
	a := New(gen)

	result, err := a.Analyze(context.Background(), "Everyone knows this is right.", model.FeedbackTypeFallacy, "")
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, 0, gen.calls, "a heuristic hit must skip the model pass")

	result, err = a.Analyze(context.Background(), "A reasonable argument.", model.FeedbackTypeFallacy, "")
	require.NoError(t, err)
	require.Nil(t, result)
	require.Equal(t, 1, gen.calls)
}

func TestAnalyze_ModelVerdictParsed(t *testing.T) {
	gen := &scriptedGenerator{output: "```json\n{\"has_issue\": true, \"subtype\": \"sarcasm\", \"suggestion\": \"state it plainly\", \"reasoning\": \"sarcastic framing\", \"confidence\": 0.66}\n```"}
	a := New(gen)

	result, err := a.Analyze(context.Background(), "Oh sure, great plan.", model.FeedbackTypeTone, "")
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, "sarcasm", result.Subtype)
	require.Equal(t, 0.66, result.Confidence)
}

func TestRunHeuristics_LongSentenceClarity(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "word "
	}
	result := runHeuristics(long, model.FeedbackTypeClarity, "")
	require.NotNil(t, result)
	require.Equal(t, "run_on_sentence", result.Subtype)
}

func TestParseVerdict_RejectsGarbage(t *testing.T) {
	_, err := parseVerdict("the model rambled instead of emitting json")
	require.Error(t, err)
}
