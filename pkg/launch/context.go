package launch

import (
	"os"
	"strings"

	"github.com/go-go-golems/rlaunch/pkg/ament"
)

// Context carries the state actions read and write while a description is
// executed: resolved launch configurations and the environment for spawned
// processes.
type Context struct {
	Configurations map[string]string
	Environment    map[string]string
	Locator        ament.Locator
}

func NewContext(locator ament.Locator, environ []string) *Context {
	return &Context{
		Configurations: map[string]string{},
		Environment:    EnvironMap(environ),
		Locator:        locator,
	}
}

// NewContextFromOS seeds the environment from the current process.
func NewContextFromOS(locator ament.Locator) *Context {
	return NewContext(locator, os.Environ())
}

func (c *Context) EnvironmentSnapshot() map[string]string {
	out := make(map[string]string, len(c.Environment))
	for k, v := range c.Environment {
		out[k] = v
	}
	return out
}

func EnvironMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
