package runner

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	ffmpegDurationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	ffmpegTimePattern     = regexp.MustCompile(`time=\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	percentPattern        = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)
)

// NewProgressParser returns a fresh parser for the configured progress kind.
// Unknown kinds and "none" yield nil.
func NewProgressParser(kind string) ProgressParser {
	switch kind {
	case "ffmpeg":
		return &FFmpegParser{}
	case "percent":
		return PercentParser{}
	case "drapto":
		return DraptoParser{}
	default:
		return nil
	}
}

// FFmpegParser derives percent from ffmpeg's "time=" stats relative to the
// input duration announced in the header.
type FFmpegParser struct {
	duration float64
}

// Parse implements ProgressParser.
func (p *FFmpegParser) Parse(line string) (Progress, bool) {
	if m := ffmpegDurationPattern.FindStringSubmatch(line); m != nil && p.duration == 0 {
		p.duration = clockSeconds(m[1], m[2], m[3])
		return Progress{}, false
	}
	m := ffmpegTimePattern.FindStringSubmatch(line)
	if m == nil || p.duration <= 0 {
		return Progress{}, false
	}
	percent := clockSeconds(m[1], m[2], m[3]) / p.duration * 100
	if percent > 100 {
		percent = 100
	}
	return Progress{Percent: percent, Stage: "encoding"}, true
}

func clockSeconds(h, m, s string) float64 {
	hours, _ := strconv.ParseFloat(h, 64)
	minutes, _ := strconv.ParseFloat(m, 64)
	seconds, _ := strconv.ParseFloat(s, 64)
	return hours*3600 + minutes*60 + seconds
}

// PercentParser picks the last "NN%" token on a line.
type PercentParser struct{}

// Parse implements ProgressParser.
func (PercentParser) Parse(line string) (Progress, bool) {
	matches := percentPattern.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return Progress{}, false
	}
	percent, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil || percent > 100 {
		return Progress{}, false
	}
	return Progress{Percent: percent}, true
}

// DraptoParser decodes drapto --progress-json event lines.
type DraptoParser struct{}

type draptoEvent struct {
	Type    string   `json:"type"`
	Percent *float64 `json:"percent"`
	Stage   string   `json:"stage"`
	Message string   `json:"message"`
}

// Parse implements ProgressParser.
func (DraptoParser) Parse(line string) (Progress, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return Progress{}, false
	}
	var event draptoEvent
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		return Progress{}, false
	}
	progress := Progress{Percent: -1, Stage: event.Stage, Message: event.Message}
	if event.Percent != nil {
		progress.Percent = *event.Percent
	}
	if progress.Stage == "" {
		progress.Stage = event.Type
	}
	return progress, progress.Percent >= 0 || progress.Stage != ""
}
