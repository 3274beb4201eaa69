package runner

import (
	"math"
	"testing"
)

func TestFFmpegParserNeedsDuration(t *testing.T) {
	p := &FFmpegParser{}
	if _, ok := p.Parse("frame=  10 fps=0.0 q=-1.0 size=0kB time=00:00:05.00 bitrate=N/A"); ok {
		t.Fatal("expected no progress before duration header")
	}
	if _, ok := p.Parse("  Duration: 00:01:40.00, start: 0.000000, bitrate: 5000 kb/s"); ok {
		t.Fatal("duration line should not report progress")
	}
	got, ok := p.Parse("frame= 600 fps=120 q=28.0 size=1024kB time=00:00:25.00 bitrate=335.5kbits/s speed=5x")
	if !ok {
		t.Fatal("expected progress")
	}
	if math.Abs(got.Percent-25) > 0.001 {
		t.Fatalf("percent = %v, want 25", got.Percent)
	}
	got, _ = p.Parse("time=00:02:00.00")
	if got.Percent != 100 {
		t.Fatalf("percent should clamp to 100, got %v", got.Percent)
	}
}

func TestPercentParserUsesLastToken(t *testing.T) {
	got, ok := PercentParser{}.Parse("pass 1 10% ... overall 42.5% done")
	if !ok || got.Percent != 42.5 {
		t.Fatalf("Parse = %+v, %v", got, ok)
	}
	if _, ok := (PercentParser{}).Parse("no numbers here"); ok {
		t.Fatal("expected no progress")
	}
	if _, ok := (PercentParser{}).Parse("450%"); ok {
		t.Fatal("percent above 100 should be ignored")
	}
}

func TestDraptoParser(t *testing.T) {
	got, ok := DraptoParser{}.Parse(`{"type":"encoding_progress","percent":50,"stage":"encoding","eta_seconds":300}`)
	if !ok || got.Percent != 50 || got.Stage != "encoding" {
		t.Fatalf("Parse = %+v, %v", got, ok)
	}
	got, ok = DraptoParser{}.Parse(`{"type":"hardware","message":"host"}`)
	if !ok || got.Percent != -1 || got.Stage != "hardware" {
		t.Fatalf("event without percent = %+v, %v", got, ok)
	}
	if _, ok := (DraptoParser{}).Parse("plain text line"); ok {
		t.Fatal("plain text should be ignored")
	}
}

func TestNewProgressParser(t *testing.T) {
	if NewProgressParser("none") != nil || NewProgressParser("") != nil {
		t.Fatal("expected nil parser for none")
	}
	a := NewProgressParser("ffmpeg")
	b := NewProgressParser("ffmpeg")
	if a == b {
		t.Fatal("ffmpeg parsers must not be shared")
	}
}
