package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// writeJSON writes v to path through a sibling temp file so readers never
// see a half-written document.
func writeJSON(path string, what string, v any) error {
	if path == "" {
		return errors.Errorf("missing %s path", what)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s dir", what)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshal %s", what)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", what)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "rename %s", what)
	}
	return nil
}

func readJSON(path string, what string, v any) error {
	if path == "" {
		return errors.Errorf("missing %s path", what)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", what)
	}
	return errors.Wrapf(json.Unmarshal(b, v), "parse %s", what)
}
