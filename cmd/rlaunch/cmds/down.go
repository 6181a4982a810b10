package cmds

import (
	"fmt"

	"github.com/go-go-golems/rlaunch/pkg/state"
	"github.com/go-go-golems/rlaunch/pkg/supervise"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Stop the processes of the last launch",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			if !state.Exists(opts.Root) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "nothing running")
				return nil
			}
			st, err := state.Load(opts.Root)
			if err != nil {
				return err
			}
			log.Info().Str("run", st.RunID).Int("processes", len(st.Processes)).Msg("stopping launch")
			if err := supervise.StopState(cmd.Context(), st, opts.ShutdownTimeout); err != nil {
				return errors.Wrap(err, "stop launch")
			}
			if err := state.Remove(opts.Root); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
