package cmds

import (
	"github.com/go-go-golems/rlaunch/cmd/rlaunch/cmds/dev"
	"github.com/spf13/cobra"
)

func AddCommands(root *cobra.Command) error {
	root.AddCommand(newLaunchCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newDescribeCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newDownCmd())
	root.AddCommand(newLogsCmd())
	root.AddCommand(newPkgCmd())
	root.AddCommand(dev.NewCmd())
	return nil
}
