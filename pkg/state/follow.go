package state

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// followPoll bounds how long Follow waits when the watcher misses a write,
// e.g. on filesystems without inotify support.
const followPoll = 500 * time.Millisecond

// Follow copies lines appended to path into w until ctx is done. Reading
// starts at offset, or at the current end of file when offset is negative.
func Follow(ctx context.Context, path string, offset int64, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	whence := io.SeekStart
	if offset < 0 {
		offset, whence = 0, io.SeekEnd
	}
	if _, err := f.Seek(offset, whence); err != nil {
		return errors.Wrap(err, "seek")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(path); err != nil {
		return errors.Wrapf(err, "watch %s", path)
	}

	r := bufio.NewReader(f)
	var partial []byte
	ticker := time.NewTicker(followPoll)
	defer ticker.Stop()

	for {
		for {
			line, err := r.ReadBytes('\n')
			partial = append(partial, line...)
			if err == io.EOF {
				break
			}
			if err != nil {
				return errors.Wrap(err, "read")
			}
			if _, err := w.Write(partial); err != nil {
				return err
			}
			partial = partial[:0]
		}

		select {
		case <-ctx.Done():
			if len(partial) > 0 {
				_, _ = w.Write(partial)
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(err, "watch")
		case <-ticker.C:
		}
	}
}
