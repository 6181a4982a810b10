package state

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-go-golems/rlaunch/pkg/proc"
	"github.com/pkg/errors"
)

const (
	StateDirName  = ".rlaunch"
	StateFilename = "state.json"
	LogsDirName   = "logs"
)

// State records one foreground launch so that status and down can find its
// processes from another terminal.
type State struct {
	RunID       string            `json:"run_id"`
	Root        string            `json:"root"`
	Description string            `json:"description"`
	LauncherPID int               `json:"launcher_pid"`
	Arguments   map[string]string `json:"arguments,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Processes   []ProcessRecord   `json:"processes"`
}

type ProcessRecord struct {
	Label      string            `json:"label"`
	Name       string            `json:"name"`
	PID        int               `json:"pid"`
	Command    []string          `json:"command"`
	Env        map[string]string `json:"env,omitempty"`
	Output     string            `json:"output"`
	EmulateTTY bool              `json:"emulate_tty,omitempty"`
	StdoutLog  string            `json:"stdout_log,omitempty"`
	StderrLog  string            `json:"stderr_log,omitempty"`
	ExitInfo   string            `json:"exit_info"`
	StartedAt  time.Time         `json:"started_at"`
}

func StatePath(root string) string {
	return filepath.Join(root, StateDirName, StateFilename)
}

func LogsDir(root string) string {
	return filepath.Join(root, StateDirName, LogsDirName)
}

func Exists(root string) bool {
	_, err := os.Stat(StatePath(root))
	return err == nil
}

func Load(root string) (*State, error) {
	var s State
	if err := readJSON(StatePath(root), "state", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func Save(root string, s *State) error {
	if s == nil {
		return errors.New("nil state")
	}
	return writeJSON(StatePath(root), "state", s)
}

func Remove(root string) error {
	if err := os.Remove(StatePath(root)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "remove state")
	}
	return nil
}

func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if proc.IsZombie(pid) {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return stderrors.Is(err, syscall.EPERM)
}
