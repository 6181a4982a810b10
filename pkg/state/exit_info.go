package state

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ExitInfo is written next to a node's logs when it exits, so status can
// explain a dead node after the launcher itself is gone.
type ExitInfo struct {
	Label     string    `json:"label"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	ExitedAt  time.Time `json:"exited_at"`

	ExitCode *int   `json:"exit_code,omitempty"`
	Signal   string `json:"signal,omitempty"`
	Error    string `json:"error,omitempty"`

	StderrTail []string `json:"stderr_tail,omitempty"`
}

func (e *ExitInfo) Success() bool {
	return e.ExitCode != nil && *e.ExitCode == 0 && e.Signal == ""
}

// SetResult records how the process ended from its wait status.
func (e *ExitInfo) SetResult(ps *os.ProcessState, waitErr error) {
	if waitErr != nil {
		e.Error = waitErr.Error()
	}
	if ps == nil {
		return
	}
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return
	}
	if ws.Signaled() {
		e.Signal = ws.Signal().String()
	}
	if ws.Exited() {
		code := ws.ExitStatus()
		e.ExitCode = &code
	}
}

// Outcome is a short human-readable account of the exit.
func (e *ExitInfo) Outcome() string {
	switch {
	case e.Signal != "":
		return "killed by signal " + e.Signal
	case e.ExitCode != nil && *e.ExitCode == 0:
		return "exited cleanly"
	case e.ExitCode != nil:
		return fmt.Sprintf("exited with code %d", *e.ExitCode)
	case e.Error != "":
		return "failed: " + e.Error
	default:
		return "exit status unknown"
	}
}

func ExitInfoPath(root, label, runID string) string {
	return filepath.Join(LogsDir(root), label+"-"+runID+".exit.json")
}

func WriteExitInfo(path string, info ExitInfo) error {
	return writeJSON(path, "exit info", info)
}

func ReadExitInfo(path string) (*ExitInfo, error) {
	var info ExitInfo
	if err := readJSON(path, "exit info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}
