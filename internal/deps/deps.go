package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"fictionbridge/internal/config"
	"fictionbridge/internal/sidecar"
)

// Requirement defines an external program fictionbridge relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// Dir, when set, must exist as a directory for the requirement to be met.
	Dir string
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command,omitempty"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
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
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		case !onPath(cmd):
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
		case req.Dir != "" && !isDir(req.Dir):
			status.Detail = fmt.Sprintf("directory %q not found", req.Dir)
		default:
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

// WorkerRequirements lists what the configured worker launch needs on this
// machine.
func WorkerRequirements(cfg *config.Config) ([]Requirement, error) {
	spec, err := sidecar.ResolveLaunch(cfg)
	if err != nil {
		return nil, err
	}
	req := Requirement{
		Name:        "Worker",
		Command:     spec.Executable,
		Description: "translator worker process",
		Dir:         spec.Dir,
	}
	if cfg.Sidecar.Mode == config.ModeDev {
		req.Name = "Python"
		req.Description = fmt.Sprintf("interpreter for %s", cfg.Sidecar.Module)
	}
	return []Requirement{req}, nil
}

// CheckWorker resolves and checks the worker requirements for cfg.
func CheckWorker(cfg *config.Config) []Status {
	reqs, err := WorkerRequirements(cfg)
	if err != nil {
		return []Status{{Name: "Worker", Detail: err.Error()}}
	}
	return CheckBinaries(reqs)
}

func onPath(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
