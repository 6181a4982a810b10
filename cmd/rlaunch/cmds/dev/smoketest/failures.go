package smoketest

import (
	"context"
	"fmt"
	"io"
	"os"
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

func newFailuresCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Smoke test: missing package aborts the build and a failing node leaves exit info",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			dir, err := os.MkdirTemp("", "rlaunch-smoketest-failures-*")
			if err != nil {
				return err
			}
			defer func() { _ = os.RemoveAll(dir) }()

			desc, err := descriptions.YoloTIR(ament.New(dir))
			if desc != nil || !ament.IsPackageNotFound(err) {
				return errors.Errorf("expected package-not-found and no description, got %v", err)
			}

			prefix, err := installFakeWorkspace(ctx, dir)
			if err != nil {
				return err
			}
			idx := ament.New(prefix)
			desc, err = descriptions.YoloTIR(idx)
			if err != nil {
				return err
			}
			plan, err := engine.Resolve(ctx, desc, engine.Options{
				Locator: idx,
				Environ: append(os.Environ(), "FAKE_NODE_EXIT_AFTER=100ms", "FAKE_NODE_EXIT_CODE=4"),
			})
			if err != nil {
				return err
			}

			sup := supervise.New(supervise.Options{Root: dir, ShutdownTimeout: time.Second, Stdout: io.Discard, Stderr: io.Discard})
			st, err := sup.Start(ctx, plan)
			if err != nil {
				return err
			}
			if err := sup.Wait(ctx); err == nil {
				return errors.New("expected node failure to be reported")
			}
			ei, err := state.ReadExitInfo(st.Processes[0].ExitInfo)
			if err != nil {
				return err
			}
			if ei.ExitCode == nil || *ei.ExitCode != 4 {
				return errors.Errorf("unexpected exit info: %+v", ei)
			}

			log.Info().Msg("smoketest failures ok")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Overall timeout for the smoke test, including the build")
	return cmd
}
