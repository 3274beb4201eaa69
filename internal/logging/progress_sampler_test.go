package logging

import "testing"

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(5)
	steps := []struct {
		percent float64
		stage   string
		want    bool
	}{
		{0, "remux pass 1", true},
		{3, "remux pass 1", false},
		{5, "remux pass 1", true},
		{7, "remux pass 1", false},
		{10, "remux pass 1", true},
		{-1, "remux pass 1", false},
		{100, "remux pass 1", true},
		{105, "remux pass 1", false},
		{0, "remux pass 2", true},
		{10, "remux pass 2", true},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.percent, step.stage); got != step.want {
			t.Fatalf("step %d (%v%% %q): got %v want %v", i, step.percent, step.stage, got, step.want)
		}
	}
}

func TestProgressSamplerDefaultsAndReset(t *testing.T) {
	if s := NewProgressSampler(0); s.step != 5 {
		t.Fatalf("expected default step 5, got %v", s.step)
	}
	var nilSampler *ProgressSampler
	if !nilSampler.ShouldLog(1, "x") {
		t.Fatal("nil sampler should always log")
	}
	nilSampler.Reset()

	s := NewProgressSampler(25)
	s.ShouldLog(50, "encode")
	s.Reset()
	if s.key != "" || s.next != 0 {
		t.Fatalf("unexpected state after reset: %+v", s)
	}
	if !s.ShouldLog(50, "encode") {
		t.Fatal("expected log after reset")
	}
}
