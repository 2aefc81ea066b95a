package cli

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maauso/audiotoolbox/internal/bootstrap"
	"github.com/maauso/audiotoolbox/internal/config"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// Dependencies is shared by every command.
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	// App is built once flags are parsed.
	App *bootstrap.Dependencies
}

// Close releases the application dependencies, if they were built.
func (d *Dependencies) Close() error {
	if d.App == nil {
		return nil
	}
	return d.App.Close()
}

// NewRootCmd builds the audiotoolbox command tree.
func NewRootCmd(deps *Dependencies) *cobra.Command {
	var workDir, outputDir string

	rootCmd := &cobra.Command{
		Use:           "audiotoolbox",
		Short:         "Manage a collection of timestamped recordings",
		Long:          "Scan, group, convert, merge, trim and organize timestamped audio and video recordings.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("dir") {
				deps.Config.WorkDir = workDir
			}
			if cmd.Flags().Changed("output") {
				deps.Config.OutputDir = outputDir
			}
			abs, err := filepath.Abs(deps.Config.WorkDir)
			if err != nil {
				return err
			}
			deps.Config.WorkDir = abs

			app, err := bootstrap.NewDependencies(deps.Config, deps.Logger)
			if err != nil {
				return err
			}
			deps.App = app
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "d", "", "Recordings directory (default WORK_DIR)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Output directory (default OUTPUT_DIR or the recordings directory)")

	rootCmd.AddCommand(NewScanCmd(deps))
	rootCmd.AddCommand(NewGroupsCmd(deps))
	rootCmd.AddCommand(NewConvertCmd(deps))
	rootCmd.AddCommand(NewMergeCmd(deps))
	rootCmd.AddCommand(NewTrimCmd(deps))
	rootCmd.AddCommand(NewOrganizeCmd(deps))
	rootCmd.AddCommand(NewImportCmd(deps))
	rootCmd.AddCommand(NewServeCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))
	rootCmd.AddCommand(NewHistoryCmd(deps))

	return rootCmd
}

// errTaskFailed is returned by task commands whose result was unsuccessful.
var errTaskFailed = errors.New("task failed")
