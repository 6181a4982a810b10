package cmds

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPkgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pkg",
		Short: "Query the ament package index",
	}
	cmd.AddCommand(newPkgListCmd(), newPkgPrefixCmd(), newPkgShareCmd())
	return cmd
}

func newPkgListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List packages found on the prefix path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			pkgs, err := opts.index().Packages()
			if err != nil {
				return err
			}
			for _, p := range pkgs {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func newPkgPrefixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prefix <package>",
		Short: "Print the install prefix of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			prefix, err := opts.index().PackagePrefix(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), prefix)
			return nil
		},
	}
}

func newPkgShareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share <package>",
		Short: "Print the share directory of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			share, err := opts.index().ShareDirectory(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), share)
			return nil
		},
	}
}
