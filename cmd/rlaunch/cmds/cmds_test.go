package cmds

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-go-golems/rlaunch/pkg/ament"
	"github.com/go-go-golems/rlaunch/pkg/descriptions"
	"github.com/go-go-golems/rlaunch/pkg/engine"
	"github.com/go-go-golems/rlaunch/pkg/state"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newTestRoot(t *testing.T) *cobra.Command {
	t.Helper()
	root := &cobra.Command{Use: "rlaunch", SilenceUsage: true, SilenceErrors: true}
	AddRootFlags(root)
	require.NoError(t, AddCommands(root))
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newTestRoot(t)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseLaunchArguments(t *testing.T) {
	got, err := parseLaunchArguments([]string{"log_level:=DEBUG", "empty:=", "expr:=a:=b"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"log_level": "DEBUG", "empty": "", "expr": "a:=b"}, got)

	_, err = parseLaunchArguments([]string{"log_level=DEBUG"})
	require.Error(t, err)
	_, err = parseLaunchArguments([]string{":=x"})
	require.Error(t, err)
}

func TestWriteDescription_Plain(t *testing.T) {
	prefix := t.TempDir()
	_, err := ament.Register(prefix, descriptions.YoloTIRPackage)
	require.NoError(t, err)

	desc, err := descriptions.YoloTIR(ament.New(prefix))
	require.NoError(t, err)

	var buf bytes.Buffer
	writeDescription(&buf, newDescribeStyles(&buf), "yolo_tir", desc)
	s := buf.String()
	require.Contains(t, s, "RUST_BACKTRACE=full")
	require.Contains(t, s, "log_level (default: WARN)")
	require.Contains(t, s, "yolo_tir/detection_pub name=inference_node output=screen emulate_tty=true")
	require.Contains(t, s, "--ros-args --log-level $(var log_level)")
	require.Contains(t, s, "'log_level':")
	require.Contains(t, s, "Logging level")
}

func TestPlanCommand(t *testing.T) {
	prefix := t.TempDir()
	share, err := ament.Register(prefix, descriptions.YoloTIRPackage)
	require.NoError(t, err)
	t.Setenv(ament.PrefixPathEnv, "")

	out, err := execute(t, "--root", t.TempDir(), "--prefix", prefix,
		"plan", "--skip-executable-lookup", "yolo_tir", "log_level:=DEBUG")
	require.NoError(t, err)

	var plan engine.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Equal(t, "DEBUG", plan.Arguments["log_level"])
	require.Equal(t, map[string]string{"RUST_BACKTRACE": "full"}, plan.EnvironmentSet)
	require.Len(t, plan.Processes, 1)
	p := plan.Processes[0]
	require.Equal(t, []string{"--ros-args", "--log-level", "DEBUG"}, p.Arguments)
	require.Equal(t, []string{filepath.Join(share, "param", "net_config.yaml")}, p.ParamFiles)
}

func TestPlanCommand_PackageNotFound(t *testing.T) {
	t.Setenv(ament.PrefixPathEnv, "")
	_, err := execute(t, "--root", t.TempDir(), "--prefix", t.TempDir(), "plan", "yolo_tir")
	require.Error(t, err)
	require.True(t, ament.IsPackageNotFound(err))
}

func TestPkgCommands(t *testing.T) {
	prefix := t.TempDir()
	share, err := ament.Register(prefix, "yolo_tir")
	require.NoError(t, err)
	_, err = ament.Register(prefix, "another_pkg")
	require.NoError(t, err)
	t.Setenv(ament.PrefixPathEnv, "")
	root := t.TempDir()

	out, err := execute(t, "--root", root, "--prefix", prefix, "pkg", "list")
	require.NoError(t, err)
	require.Equal(t, []string{"another_pkg", "yolo_tir"}, strings.Fields(out))

	out, err = execute(t, "--root", root, "--prefix", prefix, "pkg", "share", "yolo_tir")
	require.NoError(t, err)
	require.Equal(t, share, strings.TrimSpace(out))

	out, err = execute(t, "--root", root, "--prefix", prefix, "pkg", "prefix", "yolo_tir")
	require.NoError(t, err)
	require.Equal(t, filepath.Clean(prefix), strings.TrimSpace(out))

	_, err = execute(t, "--root", root, "--prefix", prefix, "pkg", "share", "missing")
	require.Error(t, err)
}

func TestStatusAndDown_NoState(t *testing.T) {
	root := t.TempDir()
	_, err := execute(t, "--root", root, "status")
	require.Error(t, err)

	out, err := execute(t, "--root", root, "down")
	require.NoError(t, err)
	require.Contains(t, out, "nothing running")
}

func TestBuildStatus_ExitedProcess(t *testing.T) {
	root := t.TempDir()
	code := 3
	exitPath := state.ExitInfoPath(root, "detection_pub-1", "run-1")
	require.NoError(t, state.WriteExitInfo(exitPath, state.ExitInfo{
		Label:      "detection_pub-1",
		ExitCode:   &code,
		StderrTail: []string{"a", "b", "c"},
	}))

	st := &state.State{
		RunID:       "run-1",
		Description: "yolo_tir",
		Processes: []state.ProcessRecord{{
			Label:    "detection_pub-1",
			Name:     "inference_node",
			PID:      0,
			Output:   "screen",
			ExitInfo: exitPath,
		}},
	}
	s := buildStatus(st, 2, 0)
	require.False(t, s.LauncherAlive)
	require.Len(t, s.Processes, 1)
	require.False(t, s.Processes[0].Alive)
	require.NotNil(t, s.Processes[0].Exit)
	require.Equal(t, 3, *s.Processes[0].Exit.ExitCode)
	require.Equal(t, []string{"b", "c"}, s.Processes[0].Exit.StderrTail)
}

func TestPickProcess(t *testing.T) {
	st := &state.State{Processes: []state.ProcessRecord{
		{Label: "detection_pub-1", Name: "inference_node"},
	}}
	p, err := pickProcess(st, "")
	require.NoError(t, err)
	require.Equal(t, "detection_pub-1", p.Label)
	p, err = pickProcess(st, "inference_node")
	require.NoError(t, err)
	require.Equal(t, "detection_pub-1", p.Label)
	_, err = pickProcess(st, "other")
	require.Error(t, err)

	st.Processes = append(st.Processes, state.ProcessRecord{Label: "detection_pub-2", Name: "second"})
	_, err = pickProcess(st, "")
	require.Error(t, err)
}

func TestLogsCommand_PrintsTail(t *testing.T) {
	root := t.TempDir()
	logPath := filepath.Join(state.LogsDir(root), "detection_pub-1-run.stdout.log")
	require.NoError(t, os.MkdirAll(state.LogsDir(root), 0o755))
	require.NoError(t, os.WriteFile(logPath, []byte("one\ntwo\nthree\n"), 0o644))
	require.NoError(t, state.Save(root, &state.State{
		RunID: "run",
		Processes: []state.ProcessRecord{{
			Label:     "detection_pub-1",
			Name:      "inference_node",
			Output:    "log",
			StdoutLog: logPath,
		}},
	}))

	out, err := execute(t, "--root", root, "logs", "--tail", "2")
	require.NoError(t, err)
	require.Equal(t, "two\nthree\n", out)

	_, err = execute(t, "--root", root, "logs", "--stderr")
	require.Error(t, err)
}
