package job

import (
	"context"
	"time"

	"github.com/critiqlab/critiq/internal/repo"
)

// FeedbackVectorCleanupJob enforces the feedback ttl on the similarity tier.
// Entry lifetime is fixed at write time; retrievals do not extend it.
type FeedbackVectorCleanupJob struct {
	repo     *repo.FeedbackVectorRepo
	ttlHours int
}

func NewFeedbackVectorCleanupJob(repo *repo.FeedbackVectorRepo, ttlHours int) *FeedbackVectorCleanupJob {
	return &FeedbackVectorCleanupJob{repo: repo, ttlHours: ttlHours}
}

func (j *FeedbackVectorCleanupJob) Name() string {
	return "feedback_vector_cleanup"
}

func (j *FeedbackVectorCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	ttlHours := j.ttlHours
	if ttlHours <= 0 {
		ttlHours = 48
	}
	cutoff := time.Now().Add(-time.Duration(ttlHours) * time.Hour).Unix()
	_, err := j.repo.DeleteBefore(ctx, cutoff)
	return err
}
