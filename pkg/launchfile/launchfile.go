// Package launchfile reads declarative YAML launch files.
//
//	launch:
//	  - set_env: {name: RUST_BACKTRACE, value: full}
//	  - arg: {name: log_level, default: WARN, description: Logging level}
//	  - node:
//	      pkg: yolo_tir
//	      exec: detection_pub
//	      name: inference_node
//	      output: screen
//	      emulate_tty: true
//	      args: "--ros-args --log-level $(var log_level)"
//	      param:
//	        - from: $(find-pkg-share yolo_tir)/param/net_config.yaml
package launchfile

import (
	"os"
	"strings"

	"github.com/go-go-golems/rlaunch/pkg/launch"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const Extension = ".yaml"

type file struct {
	Launch []map[string]yaml.Node `yaml:"launch"`
}

type setEnvEntry struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type argEntry struct {
	Name        string  `yaml:"name"`
	Default     *string `yaml:"default"`
	Description string  `yaml:"description"`
}

type nodeEntry struct {
	Pkg        string       `yaml:"pkg"`
	Exec       string       `yaml:"exec"`
	Name       string       `yaml:"name"`
	Output     string       `yaml:"output"`
	EmulateTTY bool         `yaml:"emulate_tty"`
	Args       yaml.Node    `yaml:"args"`
	Param      []paramEntry `yaml:"param"`
}

type paramEntry struct {
	From string `yaml:"from"`
}

// IsLaunchFile reports whether ref names a launch file rather than a
// compiled-in description.
func IsLaunchFile(ref string) bool {
	return strings.HasSuffix(ref, Extension) || strings.HasSuffix(ref, ".yml")
}

func Load(path string) (*launch.Description, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read launch file")
	}
	desc, err := Parse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "launch file %s", path)
	}
	return desc, nil
}

func Parse(b []byte) (*launch.Description, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "parse launch yaml")
	}
	if f.Launch == nil {
		return nil, errors.New("missing top-level launch list")
	}

	desc := launch.NewDescription()
	for i, entry := range f.Launch {
		if len(entry) != 1 {
			return nil, errors.Errorf("entry %d: expected exactly one action key, got %d", i, len(entry))
		}
		for key, node := range entry {
			action, err := parseAction(key, &node)
			if err != nil {
				return nil, errors.Wrapf(err, "entry %d (%s)", i, key)
			}
			desc.Actions = append(desc.Actions, action)
		}
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

func parseAction(key string, node *yaml.Node) (launch.Action, error) {
	switch key {
	case "set_env":
		var e setEnvEntry
		if err := node.Decode(&e); err != nil {
			return nil, errors.Wrap(err, "decode")
		}
		v, err := ParseValue(e.Value)
		if err != nil {
			return nil, err
		}
		return launch.SetEnvironmentVariable{Name: e.Name, Value: v}, nil

	case "arg":
		var e argEntry
		if err := node.Decode(&e); err != nil {
			return nil, errors.Wrap(err, "decode")
		}
		a := launch.DeclareArgument{Name: e.Name, Description: e.Description}
		if e.Default != nil {
			v, err := ParseValue(*e.Default)
			if err != nil {
				return nil, err
			}
			a.Default = v
		}
		return a, nil

	case "node":
		var e nodeEntry
		if err := node.Decode(&e); err != nil {
			return nil, errors.Wrap(err, "decode")
		}
		return parseNode(e)

	default:
		return nil, errors.Errorf("unknown action %q", key)
	}
}

func parseNode(e nodeEntry) (launch.Node, error) {
	output, err := launch.ParseOutputSink(e.Output)
	if err != nil {
		return launch.Node{}, err
	}
	n := launch.Node{
		Package:    e.Pkg,
		Executable: e.Exec,
		Name:       e.Name,
		Output:     output,
		EmulateTTY: e.EmulateTTY,
	}

	var rawArgs []string
	switch e.Args.Kind {
	case 0:
	case yaml.ScalarNode:
		rawArgs = splitArgs(e.Args.Value)
	case yaml.SequenceNode:
		if err := e.Args.Decode(&rawArgs); err != nil {
			return launch.Node{}, errors.Wrap(err, "decode args")
		}
	default:
		return launch.Node{}, errors.New("args must be a string or a list")
	}
	for _, a := range rawArgs {
		v, err := ParseValue(a)
		if err != nil {
			return launch.Node{}, err
		}
		n.Arguments = append(n.Arguments, v)
	}

	for i, p := range e.Param {
		if p.From == "" {
			return launch.Node{}, errors.Errorf("param %d missing from", i)
		}
		v, err := ParseValue(p.From)
		if err != nil {
			return launch.Node{}, err
		}
		n.Parameters = append(n.Parameters, v)
	}
	return n, nil
}

// splitArgs splits on whitespace outside of $(...) groups.
func splitArgs(s string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '$' && i+1 < len(s) && s[i+1] == '(':
			depth++
			cur.WriteString("$(")
			i++
		case c == ')' && depth > 0:
			depth--
			cur.WriteByte(c)
		case (c == ' ' || c == '\t' || c == '\n') && depth == 0:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
