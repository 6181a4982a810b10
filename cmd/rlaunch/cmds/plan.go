package cmds

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/rlaunch/pkg/engine"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	var skipLookup bool

	cmd := &cobra.Command{
		Use:   "plan <description|file.yaml> [name:=value ...]",
		Short: "Resolve a launch description and print the plan as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			plan, err := resolvePlan(cmd.Context(), opts, args, skipLookup)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				return errors.Wrap(err, "marshal plan")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			log.Info().Int("processes", len(plan.Processes)).Msg("plan computed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipLookup, "skip-executable-lookup", false, "Do not require node executables to be installed")
	return cmd
}

func resolvePlan(ctx context.Context, opts rootOptions, args []string, skipLookup bool) (*engine.Plan, error) {
	ref := args[0]
	overrides, err := parseLaunchArguments(args[1:])
	if err != nil {
		return nil, err
	}
	idx := opts.index()
	desc, err := loadDescription(opts, ref, idx)
	if err != nil {
		return nil, err
	}
	return engine.Resolve(ctx, desc, engine.Options{
		Locator:              idx,
		Overrides:            opts.Config.MergeArguments(overrides),
		SkipExecutableLookup: skipLookup,
	})
}
