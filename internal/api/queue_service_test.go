package api

import (
	"context"
	"errors"
	"testing"

	"reel/internal/queue"
)

type mockQueueReader struct {
	tasks    []*queue.Task
	stats    map[queue.Status]int
	lastOpts queue.ListOptions
	err      error
}

func (m *mockQueueReader) List(_ context.Context, opts queue.ListOptions) ([]*queue.Task, error) {
	m.lastOpts = opts
	return m.tasks, m.err
}

func (m *mockQueueReader) Stats(context.Context) (map[queue.Status]int, error) {
	return m.stats, m.err
}

func (m *mockQueueReader) Get(_ context.Context, id int64) (*queue.Task, error) {
	for _, task := range m.tasks {
		if task.ID == id {
			return task, m.err
		}
	}
	return nil, m.err
}

func TestQueueServiceList(t *testing.T) {
	reader := &mockQueueReader{tasks: []*queue.Task{{ID: 1, SourcePath: "/x.mkv", Status: queue.StatusPending}}}
	svc := NewQueueService(reader)
	got, err := svc.List(context.Background(), []queue.Status{queue.StatusPending}, 10)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(got) != 1 || got[0].SourcePath != "/x.mkv" {
		t.Fatalf("unexpected tasks %+v", got)
	}
	if reader.lastOpts.Limit != 10 || len(reader.lastOpts.Statuses) != 1 || reader.lastOpts.IncludeLog {
		t.Fatalf("unexpected list options %+v", reader.lastOpts)
	}
}

func TestQueueServiceDescribe(t *testing.T) {
	reader := &mockQueueReader{tasks: []*queue.Task{{ID: 2, Log: "done"}}}
	svc := NewQueueService(reader)
	got, err := svc.Describe(context.Background(), 2)
	if err != nil || got == nil || got.Log != "done" {
		t.Fatalf("unexpected describe result %+v err=%v", got, err)
	}
	missing, err := svc.Describe(context.Background(), 99)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing task, got %+v err=%v", missing, err)
	}
}

func TestQueueServicePropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	svc := NewQueueService(&mockQueueReader{err: boom})
	if _, err := svc.Stats(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var nilSvc *QueueService
	if got, err := nilSvc.List(context.Background(), nil, 0); got != nil || err != nil {
		t.Fatalf("nil service should be inert")
	}
}
