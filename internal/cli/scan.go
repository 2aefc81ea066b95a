package cli

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/maauso/audiotoolbox/internal/output"
)

// scanWorkDir refreshes the registry from the recordings directory.
func scanWorkDir(ctx context.Context, deps *Dependencies) (int, error) {
	return deps.App.Service.Scan(ctx, deps.Config.WorkDir)
}

// NewScanCmd creates the scan command.
func NewScanCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the recordings directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := scanWorkDir(cmd.Context(), deps)
			if err != nil {
				return err
			}
			output.NewFormatter(cmd.OutOrStdout()).ScanDone(deps.Config.WorkDir, n)
			return nil
		},
	}
}

// NewGroupsCmd creates the groups command.
func NewGroupsCmd(deps *Dependencies) *cobra.Command {
	var color bool

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List recordings grouped by session day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := scanWorkDir(cmd.Context(), deps); err != nil {
				return err
			}
			if !cmd.Flags().Changed("color") {
				color = isTerminal(cmd.OutOrStdout())
			}
			output.NewFormatter(cmd.OutOrStdout()).WithColor(color).Groups(deps.App.Engine.Groups())
			return nil
		},
	}

	cmd.Flags().BoolVar(&color, "color", false, "Show group colour swatches (default: when writing to a terminal)")

	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
