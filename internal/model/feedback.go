package model

const (
	FeedbackTypeTone      = "TONE"
	FeedbackTypeFallacy   = "FALLACY"
	FeedbackTypeClarity   = "CLARITY"
	FeedbackTypeBias      = "BIAS"
	FeedbackTypeUnsourced = "UNSOURCED"
)

var feedbackTypes = map[string]bool{
	FeedbackTypeTone:      true,
	FeedbackTypeFallacy:   true,
	FeedbackTypeClarity:   true,
	FeedbackTypeBias:      true,
	FeedbackTypeUnsourced: true,
}

func IsFeedbackType(t string) bool {
	return feedbackTypes[t]
}

// AnalysisResult is the output of one analyzer pass over a piece of content.
// Confidence is fixed at analysis time and never rescaled by how the result
// was later retrieved.
type AnalysisResult struct {
	FeedbackType string  `json:"feedback_type"`
	Subtype      string  `json:"subtype,omitempty"`
	Suggestion   string  `json:"suggestion"`
	Reasoning    string  `json:"reasoning"`
	Confidence   float64 `json:"confidence"`
	TopicID      string  `json:"topic_id,omitempty"`
}

// FeedbackEntry is the unit stored in both cache tiers. Entries are immutable
// once written; a recomputation produces a new entry.
type FeedbackEntry struct {
	Result      AnalysisResult `json:"result"`
	ContentHash string         `json:"content_hash"`
	Ctime       int64          `json:"ctime"`
}
