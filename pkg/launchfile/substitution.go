package launchfile

import (
	"strings"

	"github.com/go-go-golems/rlaunch/pkg/launch"
	"github.com/pkg/errors"
)

// ParseValue turns a launch-file string into a Value. Supported forms:
// $(var NAME), $(env NAME [DEFAULT]) and $(find-pkg-share PKG).
func ParseValue(s string) (launch.Value, error) {
	var out launch.Value
	rest := s
	for {
		i := strings.Index(rest, "$(")
		if i < 0 {
			break
		}
		if i > 0 {
			out = append(out, launch.Text{Text: rest[:i]})
		}
		body := rest[i+2:]
		j := strings.IndexByte(body, ')')
		if j < 0 {
			return nil, errors.Errorf("unterminated substitution in %q", s)
		}
		if strings.Contains(body[:j], "$(") {
			return nil, errors.Errorf("nested substitutions are not supported in %q", s)
		}
		sub, err := parseSubstitution(body[:j])
		if err != nil {
			return nil, errors.Wrapf(err, "in %q", s)
		}
		out = append(out, sub)
		rest = body[j+1:]
	}
	if rest != "" || len(out) == 0 {
		out = append(out, launch.Text{Text: rest})
	}
	return out, nil
}

func parseSubstitution(body string) (launch.Substitution, error) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil, errors.New("empty substitution")
	}
	kind, args := fields[0], fields[1:]
	switch kind {
	case "var":
		if len(args) != 1 {
			return nil, errors.Errorf("$(var) takes one argument, got %d", len(args))
		}
		return launch.LaunchConfiguration{Name: args[0]}, nil
	case "env":
		switch len(args) {
		case 1:
			return launch.EnvironmentVariable{Name: args[0]}, nil
		case 2:
			def := args[1]
			return launch.EnvironmentVariable{Name: args[0], Default: &def}, nil
		default:
			return nil, errors.Errorf("$(env) takes one or two arguments, got %d", len(args))
		}
	case "find-pkg-share":
		if len(args) != 1 {
			return nil, errors.Errorf("$(find-pkg-share) takes one argument, got %d", len(args))
		}
		return launch.FindPackageShare{Package: args[0]}, nil
	default:
		return nil, errors.Errorf("unknown substitution %q", kind)
	}
}
