package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tesh254/gemd/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"list"},
	Short:   "Lists recorded downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.API.History(limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No downloads recorded.")
			return nil
		}
		fmt.Println(ui.HistoryTable(records))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Number of records to show (0 for all)")
}
