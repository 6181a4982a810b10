package smoketest

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"

	"github.com/go-go-golems/rlaunch/pkg/ament"
	"github.com/go-go-golems/rlaunch/pkg/descriptions"
	"github.com/pkg/errors"
)

// nodeReport mirrors what testapps/cmd/fake-node prints on startup.
type nodeReport struct {
	Node       string   `json:"node"`
	LogLevel   string   `json:"log_level"`
	ParamFiles []string `json:"param_files"`
	Args       []string `json:"args"`
	TTY        bool     `json:"tty"`
	Backtrace  string   `json:"rust_backtrace"`
}

func findModuleRootFromCaller() string {
	_, thisFile, _, ok := goruntime.Caller(0)
	if !ok {
		wd, _ := os.Getwd()
		return wd
	}
	// this file: cmd/rlaunch/cmds/dev/smoketest/helpers.go
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "..", ".."))
}

// installFakeWorkspace lays out an install prefix with yolo_tir registered,
// its params file in place and fake-node installed as detection_pub.
func installFakeWorkspace(ctx context.Context, dir string) (string, error) {
	prefix := filepath.Join(dir, "install")
	share, err := ament.Register(prefix, descriptions.YoloTIRPackage)
	if err != nil {
		return "", err
	}
	paramFile := filepath.Join(share, descriptions.YoloTIRParamFile)
	if err := os.MkdirAll(filepath.Dir(paramFile), 0o755); err != nil {
		return "", errors.Wrap(err, "mkdir param dir")
	}
	if err := os.WriteFile(paramFile, []byte("inference_node:\n  ros__parameters:\n    conf_thres: 0.25\n"), 0o644); err != nil {
		return "", errors.Wrap(err, "write params file")
	}

	exe := filepath.Join(prefix, "lib", descriptions.YoloTIRPackage, descriptions.YoloTIRExecutable)
	if err := buildTestApp(ctx, findModuleRootFromCaller(), "./testapps/cmd/fake-node", exe); err != nil {
		return "", err
	}
	return prefix, nil
}

func buildTestApp(ctx context.Context, moduleRoot string, pkg string, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return errors.Wrap(err, "mkdir bin dir")
	}
	c := exec.CommandContext(ctx, "go", "build", "-o", outPath, pkg)
	c.Dir = moduleRoot
	c.Env = append(os.Environ(), "GOWORK=off")
	b, err := c.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "build %s: %s", pkg, string(b))
	}
	return nil
}

// findReport picks the fake-node JSON line out of labelled screen output.
func findReport(screen string, label string) (*nodeReport, error) {
	prefix := "[" + label + "] "
	sc := bufio.NewScanner(strings.NewReader(screen))
	for sc.Scan() {
		line, ok := strings.CutPrefix(sc.Text(), prefix)
		if !ok || !strings.HasPrefix(line, "{") {
			continue
		}
		var r nodeReport
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, errors.Wrap(err, "parse node report")
		}
		return &r, nil
	}
	return nil, errors.Errorf("no report from %s in output:\n%s", label, screen)
}
