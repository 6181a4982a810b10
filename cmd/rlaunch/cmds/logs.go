package cmds

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-go-golems/rlaunch/pkg/state"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var stderr bool
	var follow bool
	var tail int

	cmd := &cobra.Command{
		Use:   "logs [label|node-name]",
		Short: "Print or follow a node's log file from the last launch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			st, err := state.Load(opts.Root)
			if err != nil {
				return err
			}
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			rec, err := pickProcess(st, ref)
			if err != nil {
				return err
			}
			path := rec.StdoutLog
			if stderr {
				path = rec.StderrLog
			}
			if path == "" {
				return errors.Errorf("%s has no log file (output=%s)", rec.Label, rec.Output)
			}

			out := cmd.OutOrStdout()
			if tail > 0 {
				lines, err := state.TailLines(path, tail, state.DefaultTailBytes)
				if err != nil {
					return err
				}
				for _, l := range lines {
					_, _ = fmt.Fprintln(out, l)
				}
			}
			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return state.Follow(ctx, path, -1, out)
		},
	}

	cmd.Flags().BoolVar(&stderr, "stderr", false, "Show stderr instead of stdout")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().IntVar(&tail, "tail", 50, "Number of trailing lines to print first (0 prints none)")
	return cmd
}

// pickProcess finds a process by label or node name. An empty ref is only
// accepted when the launch has a single process.
func pickProcess(st *state.State, ref string) (state.ProcessRecord, error) {
	labels := make([]string, 0, len(st.Processes))
	for _, p := range st.Processes {
		labels = append(labels, p.Label)
	}
	if ref == "" {
		if len(st.Processes) == 1 {
			return st.Processes[0], nil
		}
		return state.ProcessRecord{}, errors.Errorf("launch has %d processes, pick one of: %s", len(st.Processes), strings.Join(labels, ", "))
	}
	for _, p := range st.Processes {
		if p.Label == ref || p.Name == ref {
			return p, nil
		}
	}
	return state.ProcessRecord{}, errors.Errorf("no process %q in launch (have: %s)", ref, strings.Join(labels, ", "))
}
