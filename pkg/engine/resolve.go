package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-go-golems/rlaunch/pkg/ament"
	"github.com/go-go-golems/rlaunch/pkg/launch"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Locator ament.Locator
	// Overrides maps launch argument names to operator supplied values.
	// An empty string is a valid override.
	Overrides map[string]string
	// Environ seeds the process environment; nil means os.Environ().
	Environ []string
	// SkipExecutableLookup leaves Command[0] as the bare executable name.
	// Used by dry runs on machines without the package installed.
	SkipExecutableLookup bool
}

// Resolve executes a description's actions in order against a fresh launch
// context and returns the resulting plan. Nothing is spawned.
func Resolve(ctx context.Context, desc *launch.Description, opts Options) (*Plan, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	lctx := launch.NewContextFromOS(opts.Locator)
	if opts.Environ != nil {
		lctx = launch.NewContext(opts.Locator, opts.Environ)
	}

	declared := map[string]struct{}{}
	for _, arg := range desc.Arguments() {
		declared[arg.Name] = struct{}{}
	}
	for _, name := range sortedKeys(opts.Overrides) {
		if _, ok := declared[name]; !ok {
			log.Warn().Str("argument", name).Msg("override for undeclared launch argument")
		}
		lctx.Configurations[name] = opts.Overrides[name]
	}

	plan := &Plan{
		RunID:          uuid.NewString(),
		Arguments:      map[string]string{},
		EnvironmentSet: map[string]string{},
		Processes:      []Process{},
	}
	perExecutable := map[string]int{}

	for i, action := range desc.Actions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch a := action.(type) {
		case launch.SetEnvironmentVariable:
			v, err := a.Value.Resolve(lctx)
			if err != nil {
				return nil, errors.Wrapf(err, "action %d: set_env %s", i, a.Name)
			}
			lctx.Environment[a.Name] = v
			plan.EnvironmentSet[a.Name] = v
			log.Debug().Str("name", a.Name).Str("value", v).Msg("environment variable set")

		case launch.DeclareArgument:
			v, overridden := opts.Overrides[a.Name]
			if !overridden {
				if a.Default == nil {
					return nil, errors.Errorf("action %d: required launch argument %q not provided", i, a.Name)
				}
				var err error
				v, err = a.Default.Resolve(lctx)
				if err != nil {
					return nil, errors.Wrapf(err, "action %d: default for %s", i, a.Name)
				}
			}
			lctx.Configurations[a.Name] = v
			plan.Arguments[a.Name] = v
			log.Debug().Str("argument", a.Name).Str("value", v).Bool("overridden", overridden).Msg("launch argument declared")

		case launch.Node:
			perExecutable[a.Executable]++
			p, err := resolveNode(lctx, a, perExecutable[a.Executable], opts)
			if err != nil {
				return nil, errors.Wrapf(err, "action %d: node %s/%s", i, a.Package, a.Executable)
			}
			plan.Processes = append(plan.Processes, p)
		}
	}

	for _, name := range sortedKeys(opts.Overrides) {
		if _, ok := plan.Arguments[name]; !ok {
			plan.Arguments[name] = opts.Overrides[name]
		}
	}
	return plan, nil
}

func resolveNode(lctx *launch.Context, n launch.Node, seq int, opts Options) (Process, error) {
	exe := n.Executable
	if !opts.SkipExecutableLookup {
		if lctx.Locator == nil {
			return Process{}, errors.New("no package locator configured")
		}
		var err error
		exe, err = lctx.Locator.Executable(n.Package, n.Executable)
		if err != nil {
			return Process{}, err
		}
	}

	args, err := launch.ResolveAll(lctx, n.Arguments)
	if err != nil {
		return Process{}, errors.Wrap(err, "arguments")
	}
	params, err := launch.ResolveAll(lctx, n.Parameters)
	if err != nil {
		return Process{}, errors.Wrap(err, "parameters")
	}

	command := append([]string{exe}, args...)
	if n.Name != "" || len(params) > 0 {
		command = append(command, "--ros-args")
		if n.Name != "" {
			command = append(command, "-r", "__node:="+n.Name)
		}
		for _, p := range params {
			command = append(command, "--params-file", p)
		}
	}

	name := n.Name
	if name == "" {
		name = n.Executable
	}
	output := n.Output
	if output == "" {
		output = launch.OutputLog
	}

	return Process{
		Name:       name,
		Label:      fmt.Sprintf("%s-%d", n.Executable, seq),
		Package:    n.Package,
		Executable: exe,
		Command:    command,
		Arguments:  args,
		ParamFiles: params,
		Env:        lctx.EnvironmentSnapshot(),
		Output:     output,
		EmulateTTY: n.EmulateTTY,
	}, nil
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
