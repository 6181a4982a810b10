package ament

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// PackageNotFoundError is returned when no prefix registers the package.
type PackageNotFoundError struct {
	Package  string
	Prefixes []string
}

func (e *PackageNotFoundError) Error() string {
	if len(e.Prefixes) == 0 {
		return fmt.Sprintf("package %q not found: no prefixes configured (is %s set?)", e.Package, PrefixPathEnv)
	}
	return fmt.Sprintf("package %q not found, searching: [%s]", e.Package, strings.Join(e.Prefixes, ", "))
}

type ExecutableNotFoundError struct {
	Package    string
	Executable string
	Path       string
}

func (e *ExecutableNotFoundError) Error() string {
	return fmt.Sprintf("executable %q not found in package %q (looked for %s)", e.Executable, e.Package, e.Path)
}

func IsPackageNotFound(err error) bool {
	var pnf *PackageNotFoundError
	return stderrors.As(err, &pnf)
}
