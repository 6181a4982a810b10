package cmds

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-go-golems/rlaunch/pkg/proc"
	"github.com/go-go-golems/rlaunch/pkg/state"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type processStatus struct {
	Label  string          `json:"label"`
	Name   string          `json:"name"`
	PID    int             `json:"pid"`
	Alive  bool            `json:"alive"`
	Output string          `json:"output"`
	Stdout string          `json:"stdout_log,omitempty"`
	Stderr string          `json:"stderr_log,omitempty"`
	Exit   *state.ExitInfo `json:"exit,omitempty"`
	Usage  *proc.Usage     `json:"usage,omitempty"`
	// CPUPercent is averaged over the --sample interval.
	CPUPercent *float64 `json:"cpu_percent,omitempty"`
}

type runStatus struct {
	RunID         string            `json:"run_id"`
	Description   string            `json:"description"`
	LauncherPID   int               `json:"launcher_pid"`
	LauncherAlive bool              `json:"launcher_alive"`
	Arguments     map[string]string `json:"arguments,omitempty"`
	Processes     []processStatus   `json:"processes"`
}

func newStatusCmd() *cobra.Command {
	var tailLines int
	var sample time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the last launch",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			st, err := state.Load(opts.Root)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(buildStatus(st, tailLines, sample), "", "  ")
			if err != nil {
				return errors.Wrap(err, "marshal status")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}

	cmd.Flags().IntVar(&tailLines, "tail-lines", 25, "How many stderr lines to include for exited processes")
	cmd.Flags().DurationVar(&sample, "sample", 200*time.Millisecond, "Interval between the two usage samples used for cpu_percent (0 disables)")
	return cmd
}

// sampleUsage reads every live pid twice, sample apart.
func sampleUsage(pids []int, sample time.Duration) (map[int]*proc.Usage, map[int]float64) {
	first := map[int]*proc.Usage{}
	for _, pid := range pids {
		if u, err := proc.Read(pid); err == nil {
			first[pid] = u
		}
	}
	if sample <= 0 || len(first) == 0 {
		return first, nil
	}
	start := time.Now()
	time.Sleep(sample)
	elapsed := time.Since(start)

	latest := map[int]*proc.Usage{}
	cpu := map[int]float64{}
	for pid, prev := range first {
		cur, err := proc.Read(pid)
		if err != nil {
			continue
		}
		latest[pid] = cur
		cpu[pid] = proc.CPUPercent(prev, cur, elapsed)
	}
	return latest, cpu
}

func buildStatus(st *state.State, tailLines int, sample time.Duration) runStatus {
	out := runStatus{
		RunID:         st.RunID,
		Description:   st.Description,
		LauncherPID:   st.LauncherPID,
		LauncherAlive: state.ProcessAlive(st.LauncherPID),
		Arguments:     st.Arguments,
		Processes:     []processStatus{},
	}
	var alive []int
	for _, p := range st.Processes {
		if state.ProcessAlive(p.PID) {
			alive = append(alive, p.PID)
		}
	}
	usage, cpu := sampleUsage(alive, sample)

	for _, p := range st.Processes {
		ps := processStatus{
			Label:  p.Label,
			Name:   p.Name,
			PID:    p.PID,
			Alive:  state.ProcessAlive(p.PID),
			Output: p.Output,
			Stdout: p.StdoutLog,
			Stderr: p.StderrLog,
		}
		if ps.Alive {
			ps.Usage = usage[p.PID]
			if c, ok := cpu[p.PID]; ok {
				ps.CPUPercent = &c
			}
		}
		if !ps.Alive && p.ExitInfo != "" {
			if ei, err := state.ReadExitInfo(p.ExitInfo); err == nil {
				if tailLines >= 0 && len(ei.StderrTail) > tailLines {
					ei.StderrTail = append([]string{}, ei.StderrTail[len(ei.StderrTail)-tailLines:]...)
				}
				ps.Exit = ei
			}
		}
		if !ps.Alive && ps.Exit == nil && tailLines > 0 && p.StderrLog != "" {
			if lines, err := state.TailLines(p.StderrLog, tailLines, state.DefaultTailBytes); err == nil {
				ps.Exit = &state.ExitInfo{
					Label:      p.Label,
					PID:        p.PID,
					StartedAt:  p.StartedAt,
					Error:      "exit info unavailable; stderr tail captured at status time",
					StderrTail: lines,
				}
			}
		}
		out.Processes = append(out.Processes, ps)
	}
	return out
}
