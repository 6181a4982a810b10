package supervise

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/go-go-golems/rlaunch/pkg/engine"
	"github.com/go-go-golems/rlaunch/pkg/events"
	"github.com/go-go-golems/rlaunch/pkg/state"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const stderrTailLines = 25

type Options struct {
	// Root is where .rlaunch/ state and logs live.
	Root            string
	ShutdownTimeout time.Duration
	// Stdout and Stderr receive screen output; default os.Stdout/os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
	Bus    *events.Bus
}

type Supervisor struct {
	opts     Options
	screenMu sync.Mutex

	mu    sync.Mutex
	procs []*running
	runID string
}

type running struct {
	proc engine.Process
	cmd  *exec.Cmd
	rec  state.ProcessRecord

	tail    *tailBuffer
	flushes []func() error
	closers []io.Closer
	// copyDone is closed when pty output has been drained.
	copyDone chan struct{}

	done chan struct{}
	exit state.ExitInfo
}

func New(opts Options) *Supervisor {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Supervisor{opts: opts}
}

// Start spawns every process of the plan in order. If any process fails to
// start, the ones already running are stopped and the error is returned.
func (s *Supervisor) Start(ctx context.Context, plan *engine.Plan) (*state.State, error) {
	if s.opts.Root == "" {
		return nil, errors.New("missing Root")
	}
	if plan == nil {
		return nil, errors.New("nil plan")
	}
	if err := os.MkdirAll(state.LogsDir(s.opts.Root), 0o755); err != nil {
		return nil, errors.Wrap(err, "mkdir logs dir")
	}

	s.mu.Lock()
	s.runID = plan.RunID
	s.mu.Unlock()

	st := &state.State{
		RunID:       plan.RunID,
		Root:        s.opts.Root,
		LauncherPID: os.Getpid(),
		Arguments:   plan.Arguments,
		CreatedAt:   time.Now(),
		Processes:   []state.ProcessRecord{},
	}
	_ = s.opts.Bus.Publish(events.TypeRunStarted, events.RunStarted{
		RunID:     plan.RunID,
		Arguments: plan.Arguments,
		Processes: len(plan.Processes),
	})

	keepEnv := make([]string, 0, len(plan.EnvironmentSet))
	for k := range plan.EnvironmentSet {
		keepEnv = append(keepEnv, k)
	}

	for _, p := range plan.Processes {
		r, err := s.startProcess(ctx, plan.RunID, p, keepEnv)
		if err != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout*3)
			_ = s.Stop(stopCtx)
			_ = s.Wait(stopCtx)
			cancel()
			return nil, errors.Wrapf(err, "start %s", p.Label)
		}
		st.Processes = append(st.Processes, r.rec)
	}
	return st, nil
}

func (s *Supervisor) startProcess(ctx context.Context, runID string, p engine.Process, keepEnv []string) (*running, error) {
	if len(p.Command) == 0 {
		return nil, errors.Errorf("process %q missing command", p.Label)
	}

	r := &running{
		proc: p,
		tail: newTailBuffer(stderrTailLines),
		done: make(chan struct{}),
	}
	r.rec = state.ProcessRecord{
		Label:      p.Label,
		Name:       p.Name,
		Command:    p.Command,
		Env:        state.SanitizeEnv(p.Env, keepEnv),
		Output:     string(p.Output),
		EmulateTTY: p.EmulateTTY,
		ExitInfo:   state.ExitInfoPath(s.opts.Root, p.Label, runID),
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// #nosec G204 -- the command comes from a launch description.
	// Not bound to ctx: shutdown goes through Stop so groups get SIGINT first.
	cmd := exec.Command(p.Command[0], p.Command[1:]...)
	cmd.Env = envList(p.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	r.cmd = cmd

	stdout, stderr, err := s.outputs(r, runID)
	if err != nil {
		r.closeAll()
		return nil, err
	}

	var master, slave *os.File
	if p.EmulateTTY && p.Output.ToScreen() {
		master, slave, err = openPTY()
		if err != nil {
			log.Warn().Err(err).Str("process", p.Label).Msg("pty unavailable, using pipes")
		}
	}

	if master != nil {
		cmd.Stdout = slave
		cmd.Stderr = slave
		r.closers = append(r.closers, master)
		r.copyDone = make(chan struct{})
		out := io.MultiWriter(stdout, r.tail)
		go func() {
			defer close(r.copyDone)
			if _, err := io.Copy(out, master); err != nil && !isPTYClosed(err) {
				log.Debug().Err(err).Str("process", p.Label).Msg("pty copy ended")
			}
		}()
	} else {
		cmd.Stdout = stdout
		cmd.Stderr = io.MultiWriter(stderr, r.tail)
	}

	if err := cmd.Start(); err != nil {
		if slave != nil {
			_ = slave.Close()
		}
		r.closeAll()
		return nil, errors.Wrap(err, "start process")
	}
	if slave != nil {
		_ = slave.Close()
	}

	r.rec.PID = cmd.Process.Pid
	r.rec.StartedAt = time.Now()
	log.Info().Str("process", p.Label).Int("pid", r.rec.PID).Strs("argv", p.Command).Msg("process started")
	_ = s.opts.Bus.Publish(events.TypeProcessStarted, events.ProcessStarted{
		RunID: runID,
		Label: p.Label,
		PID:   r.rec.PID,
		Argv:  p.Command,
	})

	s.mu.Lock()
	s.procs = append(s.procs, r)
	s.mu.Unlock()

	go s.reap(runID, r)
	return r, nil
}

// outputs builds the stdout and stderr writers for a process from its
// output sink.
func (s *Supervisor) outputs(r *running, runID string) (io.Writer, io.Writer, error) {
	var stdouts, stderrs []io.Writer
	p := r.proc

	if p.Output.ToScreen() {
		o := newLineWriter(&s.screenMu, s.opts.Stdout, p.Label)
		e := newLineWriter(&s.screenMu, s.opts.Stderr, p.Label)
		stdouts = append(stdouts, o)
		stderrs = append(stderrs, e)
		r.flushes = append(r.flushes, o.Flush, e.Flush)
	}
	if p.Output.ToLog() {
		base := filepath.Join(state.LogsDir(s.opts.Root), p.Label+"-"+runID)
		r.rec.StdoutLog = base + ".stdout.log"
		r.rec.StderrLog = base + ".stderr.log"

		stdoutFile, err := os.OpenFile(r.rec.StdoutLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open stdout log")
		}
		r.closers = append(r.closers, stdoutFile)
		stderrFile, err := os.OpenFile(r.rec.StderrLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open stderr log")
		}
		r.closers = append(r.closers, stderrFile)
		stdouts = append(stdouts, stdoutFile)
		stderrs = append(stderrs, stderrFile)
	}
	return io.MultiWriter(stdouts...), io.MultiWriter(stderrs...), nil
}

func (s *Supervisor) reap(runID string, r *running) {
	waitErr := r.cmd.Wait()
	if r.copyDone != nil {
		<-r.copyDone
	}
	for _, f := range r.flushes {
		_ = f()
	}
	r.closeAll()

	info := state.ExitInfo{
		Label:      r.proc.Label,
		PID:        r.rec.PID,
		StartedAt:  r.rec.StartedAt,
		ExitedAt:   time.Now(),
		StderrTail: r.tail.Lines(),
	}
	info.SetResult(r.cmd.ProcessState, waitErr)
	r.exit = info

	if err := state.WriteExitInfo(r.rec.ExitInfo, info); err != nil {
		log.Warn().Err(err).Str("process", r.proc.Label).Msg("write exit info")
	}
	ev := log.Info()
	if !info.Success() {
		ev = log.Error()
	}
	ev.Str("process", r.proc.Label).Int("pid", info.PID).Interface("exit_code", info.ExitCode).Str("signal", info.Signal).Msg("process exited")
	_ = s.opts.Bus.Publish(events.TypeProcessExited, events.ProcessExited{
		RunID:    runID,
		Label:    r.proc.Label,
		PID:      info.PID,
		ExitCode: info.ExitCode,
		Signal:   info.Signal,
	})
	close(r.done)
}

func (r *running) closeAll() {
	for _, c := range r.closers {
		_ = c.Close()
	}
	r.closers = nil
}

func (s *Supervisor) snapshot() []*running {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*running{}, s.procs...)
}

// Wait blocks until every started process has exited or ctx is done. It
// returns the first unsuccessful exit in start order.
func (s *Supervisor) Wait(ctx context.Context) error {
	procs := s.snapshot()
	errs := make([]error, len(procs))

	var g errgroup.Group
	for i, r := range procs {
		g.Go(func() error {
			select {
			case <-r.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			if !r.exit.Success() {
				errs[i] = exitError(r.exit)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Results returns exit info for every process that has exited.
func (s *Supervisor) Results() []state.ExitInfo {
	var out []state.ExitInfo
	for _, r := range s.snapshot() {
		select {
		case <-r.done:
			out = append(out, r.exit)
		default:
		}
	}
	return out
}

func exitError(info state.ExitInfo) error {
	return errors.Errorf("process %s %s", info.Label, info.Outcome())
}

// Stop interrupts every live process group, escalating to SIGTERM and then
// SIGKILL when a group outlives ShutdownTimeout.
func (s *Supervisor) Stop(ctx context.Context) error {
	var g errgroup.Group
	for _, r := range s.snapshot() {
		g.Go(func() error {
			exited := func() bool {
				select {
				case <-r.done:
					return true
				default:
					return false
				}
			}
			if exited() {
				return nil
			}
			log.Info().Str("process", r.proc.Label).Int("pid", r.rec.PID).Msg("stopping process")
			return terminateGroup(ctx, r.rec.PID, s.opts.ShutdownTimeout, exited)
		})
	}
	return g.Wait()
}

// StopState stops a launch recorded by another rlaunch process: the launcher
// is interrupted first so it can shut down its own children, then any
// remaining process groups are terminated directly.
func StopState(ctx context.Context, st *state.State, timeout time.Duration) error {
	if st == nil {
		return nil
	}
	if st.LauncherPID > 0 && st.LauncherPID != os.Getpid() && state.ProcessAlive(st.LauncherPID) {
		_ = syscall.Kill(st.LauncherPID, syscall.SIGINT)
		_ = waitUntil(ctx, 2*timeout, func() bool { return !state.ProcessAlive(st.LauncherPID) })
	}

	var lastErr error
	for i := len(st.Processes) - 1; i >= 0; i-- {
		rec := st.Processes[i]
		if exitRecorded(rec) {
			continue
		}
		pid := rec.PID
		if !state.ProcessAlive(pid) {
			continue
		}
		if err := terminateGroup(ctx, pid, timeout, func() bool { return !state.ProcessAlive(pid) }); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// exitRecorded reports whether the supervisor already recorded the process's exit.
// Its pid may have been reused since, so it must not be signalled.
func exitRecorded(rec state.ProcessRecord) bool {
	if rec.ExitInfo == "" {
		return false
	}
	_, err := os.Stat(rec.ExitInfo)
	return err == nil
}

var escalation = []syscall.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGKILL}

func terminateGroup(ctx context.Context, pid int, timeout time.Duration, exited func() bool) error {
	if pid <= 0 {
		return nil
	}
	for _, sig := range escalation {
		signalGroup(pid, sig)
		if err := waitUntil(ctx, timeout, exited); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return err
		}
		log.Warn().Int("pid", pid).Str("signal", sig.String()).Msg("process did not exit, escalating")
	}
	return errors.Errorf("failed to stop process %d", pid)
}

func signalGroup(pid int, sig syscall.Signal) {
	if pgid, err := syscall.Getpgid(pid); err == nil {
		_ = syscall.Kill(-pgid, sig)
		return
	}
	_ = syscall.Kill(pid, sig)
}

var errTimeout = stderrors.New("timeout")

func waitUntil(ctx context.Context, timeout time.Duration, cond func() bool) error {
	deadline := time.Now().Add(timeout)
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		if cond() {
			return nil
		}
		if time.Now().After(deadline) {
			return errTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
