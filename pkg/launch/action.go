package launch

import (
	"strings"

	"github.com/pkg/errors"
)

type ActionKind string

const (
	KindSetEnvironmentVariable ActionKind = "set_env"
	KindDeclareArgument        ActionKind = "arg"
	KindNode                   ActionKind = "node"
)

// Action is one declarative launch instruction. The set of actions is closed;
// the engine switches on the concrete type.
type Action interface {
	Kind() ActionKind
	isAction()
}

// SetEnvironmentVariable sets a variable in the environment handed to
// processes spawned after it. It never touches the launcher's own environment.
type SetEnvironmentVariable struct {
	Name  string
	Value Value
}

func (SetEnvironmentVariable) Kind() ActionKind { return KindSetEnvironmentVariable }
func (SetEnvironmentVariable) isAction()        {}

// DeclareArgument registers an operator-overridable launch argument. A nil
// Default makes the argument mandatory.
type DeclareArgument struct {
	Name        string
	Default     Value
	Description string
}

func (DeclareArgument) Kind() ActionKind { return KindDeclareArgument }
func (DeclareArgument) isAction()        {}

type OutputSink string

const (
	OutputScreen OutputSink = "screen"
	OutputLog    OutputSink = "log"
	OutputBoth   OutputSink = "both"
)

func ParseOutputSink(s string) (OutputSink, error) {
	switch OutputSink(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputLog:
		return OutputLog, nil
	case OutputScreen:
		return OutputScreen, nil
	case OutputBoth:
		return OutputBoth, nil
	default:
		return "", errors.Errorf("unknown output sink %q", s)
	}
}

func (o OutputSink) ToScreen() bool { return o == OutputScreen || o == OutputBoth }
func (o OutputSink) ToLog() bool    { return o == OutputLog || o == OutputBoth }

// Node spawns one executable from an installed package.
type Node struct {
	Package    string
	Executable string
	Name       string
	Output     OutputSink
	EmulateTTY bool
	// Arguments are passed to the executable verbatim, in order.
	Arguments []Value
	// Parameters are parameter file paths handed to the process with
	// --params-file. Their content is the process's concern.
	Parameters []Value
}

func (Node) Kind() ActionKind { return KindNode }
func (Node) isAction()        {}
