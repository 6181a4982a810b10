package state

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const DefaultTailBytes = 2 << 20

// TailLines returns up to n trailing lines of path, reading at most maxBytes
// from the end of the file.
func TailLines(path string, n int, maxBytes int64) ([]string, error) {
	if path == "" {
		return nil, errors.New("missing path")
	}
	if n <= 0 {
		n = 20
	}
	if maxBytes <= 0 {
		maxBytes = DefaultTailBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat")
	}
	start := int64(0)
	if info.Size() > maxBytes {
		start = info.Size() - maxBytes
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seek")
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}
	if start > 0 {
		// drop the partial first line
		if i := bytes.IndexByte(b, '\n'); i >= 0 && i+1 < len(b) {
			b = b[i+1:]
		}
	}

	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []string{}, nil
	}
	if len(lines) > n {
		lines = append([]string{}, lines[len(lines)-n:]...)
	}
	return lines, nil
}
