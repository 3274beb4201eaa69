package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"reel/internal/config"
)

// Requirement defines an executable a runner needs on the host.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// RunnerRequirement returns the executable a configured runner launches.
// Runners that never spawn a process report ok=false.
func RunnerRequirement(r config.Runner) (Requirement, bool) {
	switch r.Type {
	case "command":
		return Requirement{
			Name:        r.ID,
			Command:     r.Command,
			Description: fmt.Sprintf("Command for runner %q", r.Name),
		}, true
	case "drapto":
		command := r.Command
		if command == "" {
			command = "drapto"
		}
		return Requirement{
			Name:        r.ID,
			Command:     command,
			Description: fmt.Sprintf("Drapto encoder for runner %q", r.Name),
		}, true
	default:
		return Requirement{}, false
	}
}

// CheckRunners evaluates the executables of every enabled runner. Drapto
// runners also report the FFmpeg binary Drapto will resolve.
func CheckRunners(runners []config.Runner) []Status {
	var results []Status
	for _, r := range runners {
		if !r.Enabled {
			continue
		}
		req, ok := RunnerRequirement(r)
		if !ok {
			continue
		}
		status := CheckBinaries([]Requirement{req})[0]
		results = append(results, status)
		if r.Type == "drapto" && status.Available {
			results = append(results, draptoFFmpeg(r.ID, req.Command))
		}
	}
	return results
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch _, err := exec.LookPath(cmd); {
		case cmd == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
		default:
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}
