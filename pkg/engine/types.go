package engine

import (
	"github.com/go-go-golems/rlaunch/pkg/launch"
)

// Process is a fully resolved node, ready to hand to the supervisor.
type Process struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Package    string `json:"package"`
	Executable string `json:"executable"`
	// Command is the complete argv, executable path first.
	Command []string `json:"command"`
	// Arguments are the node's own resolved arguments, in declaration order.
	Arguments  []string          `json:"arguments"`
	ParamFiles []string          `json:"param_files,omitempty"`
	Env        map[string]string `json:"-"`
	Output     launch.OutputSink `json:"output"`
	EmulateTTY bool              `json:"emulate_tty"`
}

type Plan struct {
	RunID     string            `json:"run_id"`
	Arguments map[string]string `json:"arguments"`
	// EnvironmentSet lists only the variables set by the description.
	EnvironmentSet map[string]string `json:"environment_set,omitempty"`
	Processes      []Process         `json:"processes"`
}
