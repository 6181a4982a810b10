package cmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/rlaunch/pkg/launch"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type describeStyles struct {
	Title lipgloss.Style
	Kind  lipgloss.Style
	Name  lipgloss.Style
	Dim   lipgloss.Style
}

func newDescribeStyles(w io.Writer) describeStyles {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		plain := lipgloss.NewStyle()
		return describeStyles{Title: plain, Kind: plain, Name: plain, Dim: plain}
	}
	return describeStyles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Kind:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Width(8),
		Name:  lipgloss.NewStyle().Bold(true),
		Dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <description|file.yaml>",
		Short: "Show the actions and launch arguments of a description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			desc, err := loadDescription(opts, args[0], opts.index())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writeDescription(out, newDescribeStyles(out), args[0], desc)
			return nil
		},
	}
}

func writeDescription(w io.Writer, st describeStyles, ref string, desc *launch.Description) {
	_, _ = fmt.Fprintln(w, st.Title.Render("Launch description: "+ref))
	_, _ = fmt.Fprintln(w, "Actions:")
	for i, a := range desc.Actions {
		prefix := fmt.Sprintf("  %d. %s ", i+1, st.Kind.Render(fmt.Sprintf("%-8s", a.Kind())))
		switch act := a.(type) {
		case launch.SetEnvironmentVariable:
			_, _ = fmt.Fprintf(w, "%s%s=%s\n", prefix, st.Name.Render(act.Name), act.Value.Describe())
		case launch.DeclareArgument:
			_, _ = fmt.Fprintf(w, "%s%s%s\n", prefix, st.Name.Render(act.Name), st.Dim.Render(defaultSuffix(act)))
		case launch.Node:
			_, _ = fmt.Fprintf(w, "%s%s/%s name=%s output=%s emulate_tty=%t\n",
				prefix, act.Package, st.Name.Render(act.Executable), act.Name, act.Output, act.EmulateTTY)
			if len(act.Arguments) > 0 {
				_, _ = fmt.Fprintf(w, "       args:   %s\n", describeValues(act.Arguments))
			}
			for _, p := range act.Parameters {
				_, _ = fmt.Fprintf(w, "       params: %s\n", p.Describe())
			}
		}
	}

	args := desc.Arguments()
	if len(args) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "Arguments (pass arguments as '<name>:=<value>'):")
	for _, a := range args {
		_, _ = fmt.Fprintf(w, "    '%s':\n", st.Name.Render(a.Name))
		description := a.Description
		if description == "" {
			description = "no description given"
		}
		_, _ = fmt.Fprintf(w, "        %s\n", description)
		if a.Default != nil {
			_, _ = fmt.Fprintf(w, "        (default: '%s')\n", a.Default.Describe())
		}
	}
}

func defaultSuffix(a launch.DeclareArgument) string {
	if a.Default == nil {
		return " (required)"
	}
	return fmt.Sprintf(" (default: %s)", a.Default.Describe())
}

func describeValues(values []launch.Value) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		s := v.Describe()
		if v.IsLiteral() && (s == "" || strings.ContainsAny(s, " \t")) {
			s = fmt.Sprintf("%q", s)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
