package launch

import (
	"github.com/pkg/errors"
)

// Description is the ordered action list produced by a builder.
type Description struct {
	Actions []Action
}

func NewDescription(actions ...Action) *Description {
	return &Description{Actions: append([]Action{}, actions...)}
}

func (d *Description) Arguments() []DeclareArgument {
	var out []DeclareArgument
	for _, a := range d.Actions {
		if arg, ok := a.(DeclareArgument); ok {
			out = append(out, arg)
		}
	}
	return out
}

func (d *Description) Nodes() []Node {
	var out []Node
	for _, a := range d.Actions {
		if n, ok := a.(Node); ok {
			out = append(out, n)
		}
	}
	return out
}

func (d *Description) Kinds() []ActionKind {
	out := make([]ActionKind, 0, len(d.Actions))
	for _, a := range d.Actions {
		out = append(out, a.Kind())
	}
	return out
}

// Validate checks structural invariants that do not need a context:
// argument names are unique and non-empty, nodes name a package and
// executable, environment variables have a name.
func (d *Description) Validate() error {
	if d == nil {
		return errors.New("nil launch description")
	}
	seen := map[string]struct{}{}
	for i, a := range d.Actions {
		switch act := a.(type) {
		case SetEnvironmentVariable:
			if act.Name == "" {
				return errors.Errorf("action %d: set_env missing name", i)
			}
		case DeclareArgument:
			if act.Name == "" {
				return errors.Errorf("action %d: arg missing name", i)
			}
			if _, ok := seen[act.Name]; ok {
				return errors.Errorf("action %d: duplicate launch argument %q", i, act.Name)
			}
			seen[act.Name] = struct{}{}
		case Node:
			if act.Package == "" || act.Executable == "" {
				return errors.Errorf("action %d: node requires package and executable", i)
			}
		case nil:
			return errors.Errorf("action %d: nil action", i)
		default:
			return errors.Errorf("action %d: unsupported action %T", i, a)
		}
	}
	return nil
}
