package services_test

import (
	"context"
	"testing"

	"reel/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTaskID(ctx, 42)
	ctx = services.WithWorkerID(ctx, "W1")
	ctx = services.WithRunner(ctx, "remux")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.TaskIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected task id: %v %v", id, ok)
	}
	if worker, ok := services.WorkerIDFromContext(ctx); !ok || worker != "W1" {
		t.Fatalf("unexpected worker id: %v %v", worker, ok)
	}
	if runner, ok := services.RunnerFromContext(ctx); !ok || runner != "remux" {
		t.Fatalf("unexpected runner: %v %v", runner, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunner(ctx, "")
	ctx = services.WithWorkerID(ctx, "")
	if _, ok := services.RunnerFromContext(ctx); ok {
		t.Fatal("expected no runner value")
	}
	if _, ok := services.WorkerIDFromContext(ctx); ok {
		t.Fatal("expected no worker value")
	}
}
