package queue

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BuildCachePath returns a per-run scratch location for source under cacheDir:
// {cacheDir}/reel_file_conversion-{ms}-{rand}/{stem}-{ms}{ext}.
func BuildCachePath(cacheDir, source string, now time.Time) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem = "task"
	}
	stamp := now.UnixMilli()
	dir := fmt.Sprintf("reel_file_conversion-%d-%s", stamp, uuid.NewString()[:8])
	return filepath.Join(cacheDir, dir, fmt.Sprintf("%s-%d%s", stem, stamp, ext))
}
