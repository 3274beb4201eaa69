package api

import (
	"context"

	"reel/internal/queue"
)

// QueueReader abstracts the task store reads needed for API queries.
type QueueReader interface {
	List(ctx context.Context, opts queue.ListOptions) ([]*queue.Task, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	Get(ctx context.Context, id int64) (*queue.Task, error)
}

// QueueService exposes read-only task operations returning API DTOs.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns tasks filtered by status. Logs are omitted from listings.
func (s *QueueService) List(ctx context.Context, statuses []queue.Status, limit int) ([]Task, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	tasks, err := s.store.List(ctx, queue.ListOptions{Statuses: statuses, Limit: limit})
	if err != nil {
		return nil, err
	}
	return FromTasks(tasks), nil
}

// Stats returns task counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single task including its log. A missing task yields
// nil, nil.
func (s *QueueService) Describe(ctx context.Context, id int64) (*Task, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	task, err := s.store.Get(ctx, id)
	if err != nil || task == nil {
		return nil, err
	}
	dto := FromTask(task)
	return &dto, nil
}
