package cli

import (
	"github.com/spf13/cobra"

	"github.com/maauso/audiotoolbox/internal/output"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd(deps *Dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent tasks",
		Long:  "List recent tasks. Records outlive the process only when HISTORY_DB is set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(cmd.OutOrStdout())

			records, err := deps.App.Service.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				f.Info("No tasks recorded")
				return nil
			}

			f.HistoryHeader()
			for _, rec := range records {
				f.HistoryItem(rec)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of tasks to show")

	return cmd
}
