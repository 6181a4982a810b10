package cmds

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/rlaunch/pkg/ament"
	"github.com/go-go-golems/rlaunch/pkg/config"
	"github.com/go-go-golems/rlaunch/pkg/descriptions"
	"github.com/go-go-golems/rlaunch/pkg/launch"
	"github.com/go-go-golems/rlaunch/pkg/launchfile"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type rootOptions struct {
	Root            string
	Config          *config.File
	Prefixes        []string
	ShutdownTimeout time.Duration
}

func AddRootFlags(root *cobra.Command) {
	addRootFlags(root.PersistentFlags())
}

func addRootFlags(fs *pflag.FlagSet) {
	fs.String("root", "", "Directory holding .rlaunch state and logs (defaults to current directory)")
	fs.String("config", "", "Path to config file (defaults to .rlaunch.yaml under root)")
	fs.StringSlice("prefix", nil, "Install prefix searched before "+ament.PrefixPathEnv+" (repeatable)")
	fs.Duration("shutdown-timeout", 0, "Time a node gets per signal before escalating (default from config, else 5s)")
}

func getRootOptions(cmd *cobra.Command) (rootOptions, error) {
	fs := cmd.Root().PersistentFlags()

	root, err := fs.GetString("root")
	if err != nil {
		return rootOptions{}, err
	}
	if root == "" {
		root, err = os.Getwd()
		if err != nil {
			return rootOptions{}, err
		}
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return rootOptions{}, err
	}

	cfgPath, err := fs.GetString("config")
	if err != nil {
		return rootOptions{}, err
	}
	if cfgPath == "" {
		cfgPath = config.DefaultPath(root)
	} else if !filepath.IsAbs(cfgPath) {
		cfgPath = filepath.Join(root, cfgPath)
	}
	cfg, err := config.LoadOptional(cfgPath)
	if err != nil {
		return rootOptions{}, err
	}

	prefixes, err := fs.GetStringSlice("prefix")
	if err != nil {
		return rootOptions{}, err
	}
	timeout, err := fs.GetDuration("shutdown-timeout")
	if err != nil {
		return rootOptions{}, err
	}
	if timeout < 0 {
		return rootOptions{}, errors.New("shutdown-timeout must be >= 0")
	}
	if timeout == 0 {
		timeout = time.Duration(cfg.ShutdownTimeout)
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return rootOptions{
		Root:            root,
		Config:          cfg,
		Prefixes:        prefixes,
		ShutdownTimeout: timeout,
	}, nil
}

func (o rootOptions) index() *ament.Index {
	extra := append(append([]string{}, o.Prefixes...), o.Config.PrefixPaths()...)
	return ament.FromEnv(extra...)
}

// loadDescription resolves ref as a configured launch file, a launch file
// path, or a compiled-in description name, in that order.
func loadDescription(opts rootOptions, ref string, loc ament.Locator) (*launch.Description, error) {
	if path, ok := opts.Config.DescriptionPath(ref); ok {
		return launchfile.Load(path)
	}
	if launchfile.IsLaunchFile(ref) {
		return launchfile.Load(ref)
	}
	return descriptions.Build(ref, loc)
}

// parseLaunchArguments reads name:=value pairs. The value may be empty.
func parseLaunchArguments(args []string) (map[string]string, error) {
	out := map[string]string{}
	for _, a := range args {
		name, value, ok := strings.Cut(a, ":=")
		if !ok || name == "" {
			return nil, errors.Errorf("malformed launch argument %q, expected <name>:=<value>", a)
		}
		out[name] = value
	}
	return out, nil
}
