// Package proc reads resource usage of supervised nodes from /proc.
package proc

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// clockTicks is USER_HZ, which is 100 on every Linux platform we run on.
const clockTicks = 100

// Usage is a point-in-time sample of a node's process.
type Usage struct {
	PID          int     `json:"pid"`
	State        string  `json:"state"`
	Threads      int     `json:"threads"`
	RSSBytes     int64   `json:"rss_bytes"`
	VirtualBytes uint64  `json:"virtual_bytes"`
	CPUSeconds   float64 `json:"cpu_seconds"`
}

// Read samples /proc/<pid>/stat.
func Read(pid int) (*Usage, error) {
	if pid <= 0 {
		return nil, errors.Errorf("invalid pid %d", pid)
	}
	b, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return nil, errors.Wrapf(err, "read stat for pid %d", pid)
	}
	return parseStat(pid, string(b))
}

// IsZombie reports whether pid exited but has not been reaped yet.
// Unreadable processes are not zombies.
func IsZombie(pid int) bool {
	u, err := Read(pid)
	if err != nil {
		return false
	}
	return u.State == "Z"
}

// parseStat reads the fields after "pid (comm)". comm may contain spaces and
// parentheses, so parsing starts after the last ')'.
func parseStat(pid int, content string) (*Usage, error) {
	i := strings.LastIndexByte(content, ')')
	if i < 0 {
		return nil, errors.New("malformed stat: no closing paren")
	}
	fields := strings.Fields(content[i+1:])
	// state(0) ... utime(11) stime(12) ... num_threads(17) ... vsize(20) rss(21)
	if len(fields) < 22 {
		return nil, errors.Errorf("malformed stat: expected 22+ fields, got %d", len(fields))
	}

	u := &Usage{PID: pid, State: fields[0][:1]}
	utime, err := strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse utime")
	}
	stime, err := strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse stime")
	}
	u.CPUSeconds = float64(utime+stime) / clockTicks
	if u.Threads, err = strconv.Atoi(fields[17]); err != nil {
		return nil, errors.Wrap(err, "parse num_threads")
	}
	if u.VirtualBytes, err = strconv.ParseUint(fields[20], 10, 64); err != nil {
		return nil, errors.Wrap(err, "parse vsize")
	}
	pages, err := strconv.ParseInt(fields[21], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse rss")
	}
	u.RSSBytes = pages * int64(os.Getpagesize())
	return u, nil
}

// CPUPercent turns two samples of the same process into average utilisation
// over the interval between them.
func CPUPercent(prev, cur *Usage, elapsed time.Duration) float64 {
	if prev == nil || cur == nil || elapsed <= 0 || cur.CPUSeconds < prev.CPUSeconds {
		return 0
	}
	return (cur.CPUSeconds - prev.CPUSeconds) / elapsed.Seconds() * 100
}
