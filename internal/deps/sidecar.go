package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// draptoFFmpeg reports the ffmpeg binary a drapto runner ends up executing.
// drapto prefers an ffmpeg sitting next to its own executable and otherwise
// resolves ffmpeg from PATH.
func draptoFFmpeg(runnerID, draptoCommand string) Status {
	status := Status{
		Name:        runnerID + "/ffmpeg",
		Command:     "ffmpeg",
		Description: "FFmpeg used by drapto",
	}
	if cmd := strings.TrimSpace(draptoCommand); cmd != "" {
		if drapto, err := exec.LookPath(cmd); err == nil {
			sidecar := filepath.Join(filepath.Dir(drapto), "ffmpeg")
			if isExecutable(sidecar) {
				status.Command, status.Available = sidecar, true
				return status
			}
		}
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		status.Command, status.Available = path, true
		return status
	}
	status.Detail = `binary "ffmpeg" not found next to drapto or on PATH`
	return status
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
