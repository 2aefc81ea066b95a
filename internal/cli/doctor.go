package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maauso/audiotoolbox/internal/output"
)

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(cmd.OutOrStdout())
			cfg := deps.Config
			caps := deps.App.Toolbox.Capabilities()
			ok := true

			if caps.Transcode {
				f.SetupCheck("ffmpeg", true, caps.FFmpegPath)
			} else {
				f.SetupCheck("ffmpeg", false, "not found. convert, merge and trim are unavailable. Install ffmpeg or set FFMPEG_PATH")
				ok = false
			}

			format := deps.App.Toolbox.ArchiveFormat()
			switch {
			case caps.SevenZipPath != "":
				f.SetupCheck("7z", true, caps.SevenZipPath)
			case caps.Archive:
				f.SetupCheck("7z", true, fmt.Sprintf("not found, not needed for %s archives", format))
			default:
				f.SetupCheck("7z", false, fmt.Sprintf("not found, required for %s archives. Set SEVENZIP_PATH or ARCHIVE_FORMAT", format))
				ok = false
			}

			if info, err := os.Stat(cfg.WorkDir); err == nil && info.IsDir() {
				f.SetupCheck("Recordings directory", true, cfg.WorkDir)
			} else {
				f.SetupCheck("Recordings directory", false, cfg.WorkDir+" is not a directory")
				ok = false
			}

			f.SetupCheck("Output directory", true, cfg.EffectiveOutputDir())
			f.SetupCheck("Time zones", true, fmt.Sprintf("recorded in %s, grouped in %s, day starts at %02d:00",
				cfg.ReferenceTimezone, cfg.Timezone, cfg.CutoffHour))
			if cfg.HistoryDB != "" {
				f.SetupCheck("Task history", true, cfg.HistoryDB)
			} else {
				f.SetupCheck("Task history", true, "in memory (set HISTORY_DB to keep it)")
			}

			if ok {
				f.Success("\nAll prerequisites met.")
			} else {
				f.Warning("\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}
