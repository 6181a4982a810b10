package cmds

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/rlaunch/pkg/events"
	"github.com/go-go-golems/rlaunch/pkg/state"
	"github.com/go-go-golems/rlaunch/pkg/supervise"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newLaunchCmd() *cobra.Command {
	var dryRun bool
	var force bool

	cmd := &cobra.Command{
		Use:   "launch <description|file.yaml> [name:=value ...]",
		Short: "Resolve a launch description and run its nodes in the foreground",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}

			plan, err := resolvePlan(cmd.Context(), opts, args, dryRun)
			if err != nil {
				return err
			}
			if dryRun {
				b, err := json.MarshalIndent(plan, "", "  ")
				if err != nil {
					return errors.Wrap(err, "marshal plan")
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}

			if prev, err := state.Load(opts.Root); err == nil && state.ProcessAlive(prev.LauncherPID) {
				if !force {
					return errors.Errorf("launch %s already running (pid %d); run rlaunch down first or use --force", prev.RunID, prev.LauncherPID)
				}
				log.Info().Str("run_id", prev.RunID).Msg("stopping previous launch (--force)")
				if err := supervise.StopState(cmd.Context(), prev, opts.ShutdownTimeout); err != nil {
					return err
				}
			}

			ctx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stopSignals()

			bus, err := events.NewInMemoryBus()
			if err != nil {
				return err
			}
			events.RegisterLogger(bus, zerolog.DebugLevel)
			busCtx, cancelBus := context.WithCancel(context.Background())
			eg, egCtx := errgroup.WithContext(busCtx)
			eg.Go(func() error {
				err := bus.Run(egCtx)
				if stderrors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			defer func() {
				cancelBus()
				_ = eg.Wait()
			}()
			<-bus.Running()

			sup := supervise.New(supervise.Options{
				Root:            opts.Root,
				ShutdownTimeout: opts.ShutdownTimeout,
				Stdout:          cmd.OutOrStdout(),
				Stderr:          cmd.ErrOrStderr(),
				Bus:             bus,
			})
			st, err := sup.Start(ctx, plan)
			if err != nil {
				return err
			}
			st.Description = args[0]
			if err := state.Save(opts.Root, st); err != nil {
				_ = sup.Stop(context.Background())
				return err
			}

			done := make(chan error, 1)
			go func() { done <- sup.Wait(context.Background()) }()

			var runErr error
			select {
			case runErr = <-done:
			case <-ctx.Done():
				log.Info().Msg("shutdown requested, stopping nodes")
				stopCtx, cancel := context.WithTimeout(context.Background(), 4*opts.ShutdownTimeout)
				if err := sup.Stop(stopCtx); err != nil {
					log.Error().Err(err).Msg("stop")
				}
				cancel()
				runErr = <-done
				if runErr != nil {
					log.Debug().Err(runErr).Msg("nodes exited after shutdown")
					runErr = nil
				}
			}

			finished := events.RunFinished{RunID: plan.RunID}
			for _, res := range sup.Results() {
				finished.Exited++
				if !res.Success() {
					finished.Failed++
				}
				log.Debug().Str("process", res.Label).Msg(res.Outcome())
			}
			if runErr != nil {
				finished.Error = runErr.Error()
			}
			_ = bus.Publish(events.TypeRunFinished, finished)
			log.Info().Str("run_id", plan.RunID).
				Int("processes", len(st.Processes)).
				Int("failed", finished.Failed).
				Msg("launch finished")
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the resolved plan instead of starting nodes")
	cmd.Flags().BoolVar(&force, "force", false, "Stop a running launch recorded in state before starting")
	return cmd
}
