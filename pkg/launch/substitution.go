package launch

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Substitution is one late-bound part of a Value. Parts are resolved by the
// engine against a Context at execution time, never while a description is
// being built.
type Substitution interface {
	Resolve(ctx *Context) (string, error)
	// Describe renders the part in launch-file syntax, e.g. "$(var log_level)".
	Describe() string
}

type Text struct {
	Text string
}

func (t Text) Resolve(*Context) (string, error) { return t.Text, nil }
func (t Text) Describe() string                 { return t.Text }

// LaunchConfiguration references a declared launch argument by name.
type LaunchConfiguration struct {
	Name string
}

func (c LaunchConfiguration) Resolve(ctx *Context) (string, error) {
	if ctx == nil {
		return "", errors.New("nil launch context")
	}
	v, ok := ctx.Configurations[c.Name]
	if !ok {
		return "", &UndefinedConfigurationError{Name: c.Name}
	}
	return v, nil
}

func (c LaunchConfiguration) Describe() string { return fmt.Sprintf("$(var %s)", c.Name) }

// EnvironmentVariable reads the launch context environment, which includes
// variables set by earlier SetEnvironmentVariable actions.
type EnvironmentVariable struct {
	Name    string
	Default *string
}

func (e EnvironmentVariable) Resolve(ctx *Context) (string, error) {
	if ctx == nil {
		return "", errors.New("nil launch context")
	}
	if v, ok := ctx.Environment[e.Name]; ok {
		return v, nil
	}
	if e.Default != nil {
		return *e.Default, nil
	}
	return "", errors.Errorf("environment variable %q is not set", e.Name)
}

func (e EnvironmentVariable) Describe() string {
	if e.Default != nil {
		return fmt.Sprintf("$(env %s %s)", e.Name, *e.Default)
	}
	return fmt.Sprintf("$(env %s)", e.Name)
}

// FindPackageShare defers a package share directory lookup to execution time.
type FindPackageShare struct {
	Package string
}

func (f FindPackageShare) Resolve(ctx *Context) (string, error) {
	if ctx == nil || ctx.Locator == nil {
		return "", errors.Errorf("no package locator to find %q", f.Package)
	}
	return ctx.Locator.ShareDirectory(f.Package)
}

func (f FindPackageShare) Describe() string { return fmt.Sprintf("$(find-pkg-share %s)", f.Package) }

// Value is an ordered concatenation of substitutions.
type Value []Substitution

func Literal(s string) Value { return Value{Text{Text: s}} }

func Var(name string) Value { return Value{LaunchConfiguration{Name: name}} }

// Literals turns plain strings into one Value each.
func Literals(ss ...string) []Value {
	out := make([]Value, 0, len(ss))
	for _, s := range ss {
		out = append(out, Literal(s))
	}
	return out
}

func (v Value) Resolve(ctx *Context) (string, error) {
	var sb strings.Builder
	for _, part := range v {
		s, err := part.Resolve(ctx)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func (v Value) Describe() string {
	var sb strings.Builder
	for _, part := range v {
		sb.WriteString(part.Describe())
	}
	return sb.String()
}

// IsLiteral reports whether the value resolves without any context.
func (v Value) IsLiteral() bool {
	for _, part := range v {
		if _, ok := part.(Text); !ok {
			return false
		}
	}
	return true
}

func ResolveAll(ctx *Context, values []Value) ([]string, error) {
	out := make([]string, 0, len(values))
	for i, v := range values {
		s, err := v.Resolve(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve value %d (%s)", i, v.Describe())
		}
		out = append(out, s)
	}
	return out, nil
}

type UndefinedConfigurationError struct {
	Name string
}

func (e *UndefinedConfigurationError) Error() string {
	return fmt.Sprintf("launch configuration %q does not exist", e.Name)
}
