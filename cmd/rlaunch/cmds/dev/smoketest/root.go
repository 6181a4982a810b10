package smoketest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-go-golems/rlaunch/pkg/ament"
	"github.com/go-go-golems/rlaunch/pkg/descriptions"
	"github.com/go-go-golems/rlaunch/pkg/engine"
	"github.com/go-go-golems/rlaunch/pkg/state"
	"github.com/go-go-golems/rlaunch/pkg/supervise"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "smoketest",
		Short: "Build a fake detection_pub, launch yolo_tir against it and check what the node saw",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			dir, err := os.MkdirTemp("", "rlaunch-smoketest-*")
			if err != nil {
				return err
			}
			defer func() { _ = os.RemoveAll(dir) }()

			prefix, err := installFakeWorkspace(ctx, dir)
			if err != nil {
				return err
			}
			idx := ament.New(prefix)
			desc, err := descriptions.YoloTIR(idx)
			if err != nil {
				return err
			}
			plan, err := engine.Resolve(ctx, desc, engine.Options{
				Locator:   idx,
				Overrides: map[string]string{descriptions.LogLevelArgument: "DEBUG"},
				Environ:   append(os.Environ(), "FAKE_NODE_EXIT_AFTER=300ms"),
			})
			if err != nil {
				return err
			}

			var screen bytes.Buffer
			sup := supervise.New(supervise.Options{Root: dir, ShutdownTimeout: time.Second, Stdout: &screen, Stderr: &screen})
			st, err := sup.Start(ctx, plan)
			if err != nil {
				return err
			}
			if err := state.Save(dir, st); err != nil {
				return err
			}
			if err := sup.Wait(ctx); err != nil {
				return errors.Wrapf(err, "node output:\n%s", screen.String())
			}

			r, err := findReport(screen.String(), plan.Processes[0].Label)
			if err != nil {
				return err
			}
			share, _ := idx.ShareDirectory(descriptions.YoloTIRPackage)
			wantParams := filepath.Join(share, descriptions.YoloTIRParamFile)
			switch {
			case r.Node != descriptions.YoloTIRNodeName:
				return errors.Errorf("node name: got %q", r.Node)
			case r.LogLevel != "DEBUG":
				return errors.Errorf("log level: got %q", r.LogLevel)
			case r.Backtrace != descriptions.BacktraceValue:
				return errors.Errorf("RUST_BACKTRACE: got %q", r.Backtrace)
			case len(r.ParamFiles) != 1 || r.ParamFiles[0] != wantParams:
				return errors.Errorf("params files: got %v", r.ParamFiles)
			}
			if !r.TTY {
				log.Warn().Msg("node did not see a terminal; pty unavailable on this host?")
			}

			log.Info().Str("run", plan.RunID).Msg("smoketest ok")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Overall timeout for the smoke test, including the build")

	cmd.AddCommand(newFailuresCmd())
	return cmd
}
