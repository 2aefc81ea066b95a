package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maauso/audiotoolbox/internal/output"
	"github.com/maauso/audiotoolbox/internal/recording"
	"github.com/maauso/audiotoolbox/internal/task"
)

// targets scans the recordings directory and resolves args against it.
// Relative names are taken from the recordings directory.
func targets(cmd *cobra.Command, deps *Dependencies, args []string, all bool) ([]*recording.File, error) {
	if _, err := scanWorkDir(cmd.Context(), deps); err != nil {
		return nil, err
	}
	paths := make([]string, len(args))
	for i, a := range args {
		if filepath.IsAbs(a) {
			paths[i] = a
		} else {
			paths[i] = filepath.Join(deps.Config.WorkDir, a)
		}
	}
	return deps.App.Engine.Targets(paths, all)
}

// runTask submits req, streams its progress and prints the result.
func runTask(cmd *cobra.Command, deps *Dependencies, req task.Request) error {
	f := output.NewFormatter(cmd.OutOrStdout())
	res, err := deps.App.Service.Run(cmd.Context(), req, f.Progress)
	if err != nil {
		return err
	}
	f.Result(res)
	if !res.Success {
		return fmt.Errorf("%w: %s", errTaskFailed, res.Kind)
	}
	return nil
}

// NewConvertCmd creates the convert command.
func NewConvertCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "convert [files...]",
		Short: "Extract MP3 audio from video recordings",
		Long:  "Extract MP3 audio from the given video recordings, or from every video in the recordings directory when none are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := targets(cmd, deps, args, len(args) == 0)
			if err != nil {
				return err
			}
			return runTask(cmd, deps, task.Request{Kind: task.KindConvert, Targets: files, OutputDir: deps.Config.OutputDir})
		},
	}
}

// NewMergeCmd creates the merge command.
func NewMergeCmd(deps *Dependencies) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "merge [files...]",
		Short: "Merge recordings chronologically into one MP3",
		Long:  "Merge the given recordings, or with --date every unmerged audio recording of that day, into one MP3 named after the earliest recording.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" && len(args) == 0 {
				return fmt.Errorf("%w: give files or --date", task.ErrNoTargets)
			}
			if date != "" {
				if _, err := scanWorkDir(cmd.Context(), deps); err != nil {
					return err
				}
				req, err := deps.App.Engine.MergeByDate(date, deps.Config.OutputDir)
				if err != nil {
					return err
				}
				return runTask(cmd, deps, req)
			}
			files, err := targets(cmd, deps, args, false)
			if err != nil {
				return err
			}
			return runTask(cmd, deps, task.Request{Kind: task.KindMerge, Targets: files, OutputDir: deps.Config.OutputDir})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Merge the recordings of a day (YYYY-MM-DD)")

	return cmd
}

// NewTrimCmd creates the trim command, which runs RemoveSilence.
func NewTrimCmd(deps *Dependencies) *cobra.Command {
	var threshold, minSilence float64
	var all bool

	cmd := &cobra.Command{
		Use:   "trim [files...]",
		Short: "Remove silent runs from recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("%w: give files or --all", task.ErrNoTargets)
			}
			files, err := targets(cmd, deps, args, all)
			if err != nil {
				return err
			}
			params := task.Params{MinSilence: minSilence}
			if cmd.Flags().Changed("threshold") {
				params.ThresholdDB = &threshold
			}
			return runTask(cmd, deps, task.Request{
				Kind:      task.KindRemoveSilence,
				Targets:   files,
				OutputDir: deps.Config.OutputDir,
				Params:    params,
			})
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Silence threshold in dB (default SILENCE_THRESHOLD_DB)")
	cmd.Flags().Float64Var(&minSilence, "min-silence", 0, "Minimum silent run in seconds (default SILENCE_MIN_DURATION)")
	cmd.Flags().BoolVar(&all, "all", false, "Trim every recording in the directory")

	return cmd
}

// NewOrganizeCmd creates the organize command.
func NewOrganizeCmd(deps *Dependencies) *cobra.Command {
	var archiveFolders bool
	var format string

	cmd := &cobra.Command{
		Use:   "organize [files...]",
		Short: "Move recordings into one folder per date",
		Long:  "Move the given recordings, or every recording in the directory when none are given, into folders named after each date's earliest recording. Merge outputs are left in place.",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := targets(cmd, deps, args, len(args) == 0)
			if err != nil {
				return err
			}
			return runTask(cmd, deps, task.Request{
				Kind:      task.KindOrganize,
				Targets:   files,
				OutputDir: deps.Config.OutputDir,
				Params:    task.Params{Archive: archiveFolders, ArchiveFormat: format},
			})
		},
	}

	cmd.Flags().BoolVar(&archiveFolders, "archive", false, "Archive each date folder")
	cmd.Flags().StringVar(&format, "format", "", "Archive format: zip, tar.gz, tar.zst or 7z (default ARCHIVE_FORMAT)")

	return cmd
}

// NewImportCmd creates the import command.
func NewImportCmd(deps *Dependencies) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Move recordings from a capture folder into the output directory",
		Long:  "Move recordings from --from, or from the first OBS-style folder holding MP4 files (Movies, Videos, Documents/OBS, Desktop), into the output directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputDir := deps.Config.OutputDir
			if outputDir == "" {
				outputDir = deps.Config.WorkDir
			}
			return runTask(cmd, deps, task.Request{
				Kind:      task.KindImport,
				OutputDir: outputDir,
				Params:    task.Params{SourceDir: from},
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source folder (default: auto-locate)")

	return cmd
}
