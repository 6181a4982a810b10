// fake-node stands in for a ROS 2 node executable. It prints one JSON report
// describing how it was started, then runs until interrupted or until
// FAKE_NODE_EXIT_AFTER elapses.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"
)

type report struct {
	Node       string   `json:"node"`
	LogLevel   string   `json:"log_level"`
	ParamFiles []string `json:"param_files"`
	Args       []string `json:"args"`
	TTY        bool     `json:"tty"`
	Backtrace  string   `json:"rust_backtrace"`
}

func main() {
	r := parseArgs(os.Args[1:])
	r.TTY = term.IsTerminal(int(os.Stdout.Fd()))
	r.Backtrace = os.Getenv("RUST_BACKTRACE")

	for _, f := range r.ParamFiles {
		if _, err := os.Stat(f); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "fake-node: params file: %v\n", err)
			os.Exit(3)
		}
	}

	b, _ := json.Marshal(r)
	_, _ = fmt.Fprintln(os.Stdout, string(b))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	var timeout <-chan time.Time
	if v := os.Getenv("FAKE_NODE_EXIT_AFTER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "fake-node: bad FAKE_NODE_EXIT_AFTER %q\n", v)
			os.Exit(2)
		}
		timeout = time.After(d)
	}

	code := 0
	if v := os.Getenv("FAKE_NODE_EXIT_CODE"); v != "" {
		code, _ = strconv.Atoi(v)
	}

	select {
	case s := <-sig:
		_, _ = fmt.Fprintf(os.Stderr, "fake-node: %s, shutting down\n", s)
	case <-timeout:
	}
	os.Exit(code)
}

// parseArgs splits node arguments from the --ros-args section.
func parseArgs(args []string) report {
	r := report{Args: []string{}, ParamFiles: []string{}}
	inROS := false
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--ros-args" {
			inROS = true
			continue
		}
		if a == "--" {
			inROS = false
			continue
		}
		if !inROS {
			r.Args = append(r.Args, a)
			continue
		}
		if i+1 >= len(args) {
			break
		}
		switch a {
		case "-r", "--remap":
			i++
			if name, ok := strings.CutPrefix(args[i], "__node:="); ok {
				r.Node = name
			}
		case "--params-file":
			i++
			r.ParamFiles = append(r.ParamFiles, args[i])
		case "--log-level":
			i++
			r.LogLevel = args[i]
		}
	}
	return r
}
