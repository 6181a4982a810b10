// Package descriptions holds the launch descriptions compiled into rlaunch.
package descriptions

import (
	"sort"

	"github.com/go-go-golems/rlaunch/pkg/ament"
	"github.com/go-go-golems/rlaunch/pkg/launch"
	"github.com/pkg/errors"
)

type Builder func(loc ament.Locator) (*launch.Description, error)

var builders = map[string]Builder{
	"yolo_tir":   YoloTIR,
	"yolov7_tir": YoloTIR,
}

func Lookup(name string) (Builder, bool) {
	b, ok := builders[name]
	return b, ok
}

func Names() []string {
	out := make([]string, 0, len(builders))
	for name := range builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func Build(name string, loc ament.Locator) (*launch.Description, error) {
	b, ok := Lookup(name)
	if !ok {
		return nil, errors.Errorf("unknown launch description %q (known: %v)", name, Names())
	}
	return b(loc)
}
