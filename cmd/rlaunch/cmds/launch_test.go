package cmds

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/go-go-golems/rlaunch/pkg/ament"
	"github.com/go-go-golems/rlaunch/pkg/descriptions"
	"github.com/go-go-golems/rlaunch/pkg/engine"
	"github.com/go-go-golems/rlaunch/pkg/events"
	"github.com/go-go-golems/rlaunch/pkg/state"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

const shellNode = `#!/bin/sh
echo "argv: $*"
echo "backtrace: $RUST_BACKTRACE"
exit "${RLAUNCH_TEST_EXIT:-0}"
`

// installShellNode registers yolo_tir under a fresh prefix with a shell
// script as detection_pub and returns the prefix and share directory.
func installShellNode(t *testing.T) (string, string) {
	t.Helper()
	prefix := t.TempDir()
	share, err := ament.Register(prefix, descriptions.YoloTIRPackage)
	require.NoError(t, err)
	paramFile := filepath.Join(share, descriptions.YoloTIRParamFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(paramFile), 0o755))
	require.NoError(t, os.WriteFile(paramFile, []byte("inference_node: {}\n"), 0o644))

	exe := filepath.Join(prefix, "lib", descriptions.YoloTIRPackage, descriptions.YoloTIRExecutable)
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0o755))
	require.NoError(t, os.WriteFile(exe, []byte(shellNode), 0o755))
	t.Setenv(ament.PrefixPathEnv, "")
	return prefix, share
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// captureLog points the global zerolog logger at a buffer for one test.
func captureLog(t *testing.T) *lockedBuffer {
	t.Helper()
	buf := &lockedBuffer{}
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
	return buf
}

// loggedEvents returns the event types of every "launch event" log line.
func loggedEvents(t *testing.T, logs string) []string {
	t.Helper()
	var types []string
	for _, line := range strings.Split(strings.TrimSpace(logs), "\n") {
		var entry struct {
			Message string          `json:"message"`
			Event   string          `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		if json.Unmarshal([]byte(line), &entry) != nil || entry.Message != "launch event" {
			continue
		}
		types = append(types, entry.Event)
	}
	return types
}

func TestLaunchCommand_RunsNodeAndLogsEveryEvent(t *testing.T) {
	prefix, share := installShellNode(t)
	root := t.TempDir()
	logs := captureLog(t)
	t.Setenv("RUST_BACKTRACE", "")

	out, err := execute(t, "--root", root, "--prefix", prefix, "launch", "yolo_tir", "log_level:=DEBUG")
	require.NoError(t, err)

	wantArgv := "argv: --ros-args --log-level DEBUG --ros-args -r __node:=inference_node --params-file " +
		filepath.Join(share, "param", "net_config.yaml")
	require.Contains(t, out, "[detection_pub-1] "+wantArgv+"\n")
	require.Contains(t, out, "[detection_pub-1] backtrace: full\n")
	require.Empty(t, os.Getenv("RUST_BACKTRACE"))

	require.Equal(t, []string{
		events.TypeRunStarted,
		events.TypeProcessStarted,
		events.TypeProcessExited,
		events.TypeRunFinished,
	}, loggedEvents(t, logs.String()))

	st, err := state.Load(root)
	require.NoError(t, err)
	require.Equal(t, "yolo_tir", st.Description)
	require.Equal(t, "DEBUG", st.Arguments["log_level"])
	require.Len(t, st.Processes, 1)
	ei, err := state.ReadExitInfo(st.Processes[0].ExitInfo)
	require.NoError(t, err)
	require.True(t, ei.Success())
}

func TestLaunchCommand_EmptyLogLevelIsPassedThrough(t *testing.T) {
	prefix, _ := installShellNode(t)
	out, err := execute(t, "--root", t.TempDir(), "--prefix", prefix, "launch", "yolo_tir", "log_level:=")
	require.NoError(t, err)
	require.Contains(t, out, "argv: --ros-args --log-level  --ros-args -r __node:=inference_node")
}

func TestLaunchCommand_NonZeroExitIsReturned(t *testing.T) {
	prefix, _ := installShellNode(t)
	t.Setenv("RLAUNCH_TEST_EXIT", "3")
	root := t.TempDir()
	logs := captureLog(t)

	_, err := execute(t, "--root", root, "--prefix", prefix, "launch", "yolo_tir")
	require.Error(t, err)
	require.Contains(t, err.Error(), "detection_pub-1 exited with code 3")

	var finished events.RunFinished
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry struct {
			Event   string          `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		if json.Unmarshal([]byte(line), &entry) == nil && entry.Event == events.TypeRunFinished {
			require.NoError(t, json.Unmarshal(entry.Payload, &finished))
		}
	}
	require.Equal(t, 1, finished.Exited)
	require.Equal(t, 1, finished.Failed)
	require.Contains(t, finished.Error, "exited with code 3")
}

func TestLaunchCommand_DryRunPrintsPlanOnly(t *testing.T) {
	prefix, _ := installShellNode(t)
	root := t.TempDir()

	out, err := execute(t, "--root", root, "--prefix", prefix, "launch", "--dry-run", "yolo_tir")
	require.NoError(t, err)

	var plan engine.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Equal(t, "WARN", plan.Arguments["log_level"])
	require.Len(t, plan.Processes, 1)
	require.Equal(t, []string{"--ros-args", "--log-level", "WARN"}, plan.Processes[0].Arguments)
	require.False(t, state.Exists(root))
}

func TestLaunchCommand_MissingPackageStartsNothing(t *testing.T) {
	t.Setenv(ament.PrefixPathEnv, "")
	root := t.TempDir()
	_, err := execute(t, "--root", root, "--prefix", t.TempDir(), "launch", "yolo_tir")
	require.Error(t, err)
	require.True(t, ament.IsPackageNotFound(err))
	require.False(t, state.Exists(root))
}

func TestLaunchCommand_RefusesWhileRunningUnlessForced(t *testing.T) {
	prefix, _ := installShellNode(t)
	root := t.TempDir()

	stale := exec.Command("sleep", "30")
	stale.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, stale.Start())
	waited := make(chan struct{})
	go func() {
		_ = stale.Wait()
		close(waited)
	}()
	t.Cleanup(func() {
		_ = stale.Process.Kill()
		<-waited
	})

	require.NoError(t, state.Save(root, &state.State{
		RunID:       "previous",
		LauncherPID: os.Getpid(),
		Processes: []state.ProcessRecord{{
			Label:    "detection_pub-1",
			PID:      stale.Process.Pid,
			ExitInfo: state.ExitInfoPath(root, "detection_pub-1", "previous"),
		}},
	}))

	_, err := execute(t, "--root", root, "--prefix", prefix, "launch", "yolo_tir")
	require.Error(t, err)
	require.Contains(t, err.Error(), "already running")
	select {
	case <-waited:
		t.Fatal("previous launch was stopped without --force")
	default:
	}

	_, err = execute(t, "--root", root, "--prefix", prefix, "--shutdown-timeout", "500ms", "launch", "--force", "yolo_tir")
	require.NoError(t, err)
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("--force did not stop the previous launch's process")
	}

	st, err := state.Load(root)
	require.NoError(t, err)
	require.NotEqual(t, "previous", st.RunID)
}

func TestConfigDescriptionsAndArguments(t *testing.T) {
	prefix, _ := installShellNode(t)
	root := t.TempDir()
	launchFile := `launch:
  - arg:
      name: log_level
      default: WARN
  - node:
      pkg: yolo_tir
      exec: detection_pub
      name: inference_node
      args: "--ros-args --log-level $(var log_level)"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "tir.launch.yaml"), []byte(launchFile), 0o644))
	cfg := "arguments:\n  log_level: INFO\ndescriptions:\n  tir: tir.launch.yaml\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".rlaunch.yaml"), []byte(cfg), 0o644))

	out, err := execute(t, "--root", root, "--prefix", prefix, "plan", "tir")
	require.NoError(t, err)
	var plan engine.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Equal(t, []string{"--ros-args", "--log-level", "INFO"}, plan.Processes[0].Arguments)

	out, err = execute(t, "--root", root, "--prefix", prefix, "plan", "tir", "log_level:=ERROR")
	require.NoError(t, err)
	plan = engine.Plan{}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Equal(t, []string{"--ros-args", "--log-level", "ERROR"}, plan.Processes[0].Arguments)
}

func TestLogsCommand_TailZeroPrintsNothing(t *testing.T) {
	root := t.TempDir()
	logPath := filepath.Join(state.LogsDir(root), "detection_pub-1-run.stdout.log")
	require.NoError(t, os.MkdirAll(state.LogsDir(root), 0o755))
	require.NoError(t, os.WriteFile(logPath, []byte("one\ntwo\nthree\n"), 0o644))
	require.NoError(t, state.Save(root, &state.State{
		RunID:     "run",
		Processes: []state.ProcessRecord{{Label: "detection_pub-1", Output: "log", StdoutLog: logPath}},
	}))

	out, err := execute(t, "--root", root, "logs", "--tail", "0")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestBuildStatus_LiveProcessReportsUsage(t *testing.T) {
	node := exec.Command("sleep", "30")
	require.NoError(t, node.Start())
	t.Cleanup(func() {
		_ = node.Process.Kill()
		_ = node.Wait()
	})

	st := &state.State{
		RunID:     "run-2",
		Processes: []state.ProcessRecord{{Label: "detection_pub-1", PID: node.Process.Pid}},
	}
	s := buildStatus(st, 5, 20*time.Millisecond)
	require.Len(t, s.Processes, 1)
	p := s.Processes[0]
	require.True(t, p.Alive)
	require.NotNil(t, p.Usage)
	require.Equal(t, node.Process.Pid, p.Usage.PID)
	require.NotNil(t, p.CPUPercent)
	require.GreaterOrEqual(t, *p.CPUPercent, 0.0)
	require.Nil(t, p.Exit)
}
