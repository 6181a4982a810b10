// Package ament resolves installed packages from an ament-style resource
// index spread over one or more install prefixes.
package ament

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	PrefixPathEnv = "AMENT_PREFIX_PATH"

	resourceIndexDir = "share/ament_index/resource_index"
	packagesResource = "packages"
)

// Locator is what launch descriptions need from a package index.
type Locator interface {
	ShareDirectory(pkg string) (string, error)
	Executable(pkg, exe string) (string, error)
}

type Index struct {
	Prefixes []string
}

var _ Locator = (*Index)(nil)

func New(prefixes ...string) *Index {
	return &Index{Prefixes: cleanPrefixes(prefixes)}
}

// FromEnv builds an index from AMENT_PREFIX_PATH, with extra prefixes
// searched first.
func FromEnv(extra ...string) *Index {
	prefixes := append([]string{}, extra...)
	prefixes = append(prefixes, filepath.SplitList(os.Getenv(PrefixPathEnv))...)
	return New(prefixes...)
}

func cleanPrefixes(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func markerPath(prefix, pkg string) string {
	return filepath.Join(prefix, resourceIndexDir, packagesResource, pkg)
}

// PackagePrefix returns the first prefix that registers pkg.
func (i *Index) PackagePrefix(pkg string) (string, error) {
	if pkg == "" || strings.ContainsAny(pkg, `/\`) {
		return "", errors.Errorf("invalid package name %q", pkg)
	}
	for _, prefix := range i.Prefixes {
		info, err := os.Stat(markerPath(prefix, pkg))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", errors.Wrapf(err, "stat package marker in %s", prefix)
		}
		if info.IsDir() {
			continue
		}
		return prefix, nil
	}
	return "", &PackageNotFoundError{Package: pkg, Prefixes: append([]string{}, i.Prefixes...)}
}

func (i *Index) ShareDirectory(pkg string) (string, error) {
	prefix, err := i.PackagePrefix(pkg)
	if err != nil {
		return "", err
	}
	return filepath.Join(prefix, "share", pkg), nil
}

// Executable finds exe under <prefix>/lib/<pkg>. The file must carry an
// execute bit.
func (i *Index) Executable(pkg, exe string) (string, error) {
	if exe == "" || strings.ContainsAny(exe, `/\`) {
		return "", errors.Errorf("invalid executable name %q", exe)
	}
	prefix, err := i.PackagePrefix(pkg)
	if err != nil {
		return "", err
	}
	path := filepath.Join(prefix, "lib", pkg, exe)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &ExecutableNotFoundError{Package: pkg, Executable: exe, Path: path}
		}
		return "", errors.Wrap(err, "stat executable")
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return "", &ExecutableNotFoundError{Package: pkg, Executable: exe, Path: path}
	}
	return path, nil
}

// Packages lists every registered package name across all prefixes.
func (i *Index) Packages() ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, prefix := range i.Prefixes {
		entries, err := os.ReadDir(filepath.Join(prefix, resourceIndexDir, packagesResource))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "read package index in %s", prefix)
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if _, ok := seen[e.Name()]; ok {
				continue
			}
			seen[e.Name()] = struct{}{}
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Register writes the marker and share directory for pkg under prefix.
// It is how test fixtures and local installs make a package discoverable.
func Register(prefix, pkg string) (string, error) {
	marker := markerPath(prefix, pkg)
	if err := os.MkdirAll(filepath.Dir(marker), 0o755); err != nil {
		return "", errors.Wrap(err, "mkdir resource index")
	}
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return "", errors.Wrap(err, "write package marker")
	}
	share := filepath.Join(prefix, "share", pkg)
	if err := os.MkdirAll(share, 0o755); err != nil {
		return "", errors.Wrap(err, "mkdir share dir")
	}
	return share, nil
}
