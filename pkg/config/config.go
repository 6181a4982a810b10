package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFilename = ".rlaunch.yaml"

type File struct {
	// Prefixes are searched before AMENT_PREFIX_PATH. Relative entries are
	// resolved against the config file's directory.
	Prefixes []string `yaml:"prefixes,omitempty"`
	// Arguments are default overrides applied before command-line ones.
	Arguments map[string]string `yaml:"arguments,omitempty"`
	// Descriptions maps extra description names to launch files.
	Descriptions    map[string]string `yaml:"descriptions,omitempty"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout,omitempty"`

	dir string
}

// Duration accepts Go duration strings such as "5s" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func DefaultPath(root string) string {
	return filepath.Join(root, DefaultConfigFilename)
}

func LoadFromFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var cfg File
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}
	cfg.dir = filepath.Dir(path)
	return &cfg, nil
}

func LoadOptional(path string) (*File, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{dir: filepath.Dir(path)}, nil
		}
		return nil, errors.Wrap(err, "stat config")
	}
	return LoadFromFile(path)
}

func (f *File) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || f.dir == "" {
		return p
	}
	return filepath.Join(f.dir, p)
}

func (f *File) PrefixPaths() []string {
	out := make([]string, 0, len(f.Prefixes))
	for _, p := range f.Prefixes {
		out = append(out, f.resolve(p))
	}
	return out
}

// DescriptionPath returns the launch file configured for name, if any.
func (f *File) DescriptionPath(name string) (string, bool) {
	p, ok := f.Descriptions[name]
	if !ok {
		return "", false
	}
	return f.resolve(p), true
}

// MergeArguments layers command-line overrides over configured ones.
func (f *File) MergeArguments(cli map[string]string) map[string]string {
	out := make(map[string]string, len(f.Arguments)+len(cli))
	for k, v := range f.Arguments {
		out[k] = v
	}
	for k, v := range cli {
		out[k] = v
	}
	return out
}
