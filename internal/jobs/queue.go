package jobs

import (
	"context"

	"go.uber.org/zap"

	"github.com/crestfund/lead-crm/internal/model"
	"github.com/crestfund/lead-crm/internal/store"
)

// Store is the slice of persistence the queue needs.
type Store interface {
	EnqueueJob(ctx context.Context, jobType model.JobType, conversationID string, input []byte) (*model.Job, error)
	CompleteJob(ctx context.Context, conversationID string, jobType model.JobType, result []byte) (bool, error)
	FailJob(ctx context.Context, conversationID string, jobType model.JobType, errMsg string) (bool, error)
	ListJobs(ctx context.Context, filter store.JobFilter) ([]model.Job, error)
}

// Queue wraps the durable job table. Rows are written queued and stay that
// way until a worker callback closes them; there is no timeout or retry, so
// an abandoned job is visible in listings forever.
type Queue struct {
	store Store
}

func NewQueue(st Store) *Queue {
	return &Queue{store: st}
}

// Enqueue writes a queued row and returns it immediately.
func (q *Queue) Enqueue(ctx context.Context, jobType model.JobType, conversationID string, input []byte) (*model.Job, error) {
	job, err := q.store.EnqueueJob(ctx, jobType, conversationID, input)
	if err != nil {
		return nil, err
	}
	zap.L().Info("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("conversation_id", conversationID))
	return job, nil
}

// Complete closes the most recent open job of the given type for the
// conversation. The unmatched case is reported, not an error, so callbacks
// from workers that raced a bulk delete stay harmless.
func (q *Queue) Complete(ctx context.Context, conversationID string, jobType model.JobType, result []byte) (bool, error) {
	matched, err := q.store.CompleteJob(ctx, conversationID, jobType, result)
	if err != nil {
		return false, err
	}
	if !matched {
		zap.L().Warn("job completion matched no open row",
			zap.String("type", string(jobType)),
			zap.String("conversation_id", conversationID))
	}
	return matched, nil
}

// Fail marks the most recent open job of the given type failed.
func (q *Queue) Fail(ctx context.Context, conversationID string, jobType model.JobType, errMsg string) (bool, error) {
	return q.store.FailJob(ctx, conversationID, jobType, errMsg)
}

// List returns queue rows matching the filter, newest first.
func (q *Queue) List(ctx context.Context, filter store.JobFilter) ([]model.Job, error) {
	return q.store.ListJobs(ctx, filter)
}
