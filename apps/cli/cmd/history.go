package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
	"github.com/abdul-hamid-achik/hitupload/packages/history"
	"github.com/abdul-hamid-achik/hitupload/packages/output"
)

var (
	historyLimitFlag  int
	historyOutputFlag string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded uploads",
	Long: `List the uploads hitupload has recorded, newest first.

Examples:
  hitupload history
  hitupload history --limit 5 -o json
  hitupload history clear`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every recorded upload",
	Args:  cobra.NoArgs,
	RunE:  historyClearCommand,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Number of entries to show (0 for all)")
	historyCmd.Flags().StringVarP(&historyOutputFlag, "output", "o", getEnvString("HITUPLOAD_OUTPUT", "console"), "Output format: raw, console, json (env: HITUPLOAD_OUTPUT)")
	historyCmd.AddCommand(historyClearCmd)
}

// openHistory opens the store named by the config file, or the default one.
func openHistory() (*history.Store, error) {
	cfg, err := loadFileConfig()
	if err != nil {
		return nil, err
	}
	path := cfg.HistoryPath
	if path == "" {
		path = history.DefaultPath()
	}
	return history.Open(path)
}

func historyCommand(cmd *cobra.Command, args []string) error {
	formatter, err := output.New(historyOutputFlag, cmd.OutOrStdout(), verboseFlag > 0, noColorFlag)
	if err != nil {
		return &uerrors.UsageError{Message: err.Error()}
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	return formatter.FormatHistory(entries)
}

func historyClearCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Clear(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries from %s\n", n, store.Path())
	return nil
}
