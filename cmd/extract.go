package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tesh254/gemd/internal/api"
	"github.com/tesh254/gemd/internal/ui"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file|url|-]",
	Short: "Prints the conversation extracted from a Gemini chat page as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pageURL, _ := cmd.Flags().GetString("page-url")
		format, _ := cmd.Flags().GetString("format")
		table, _ := cmd.Flags().GetBool("table")

		data := api.ExtractData{URL: args[0], PageURL: pageURL}
		if args[0] == "-" {
			body, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			data = api.ExtractData{HTML: string(body), PageURL: pageURL}
		}

		a, err := newApp(appOptions{Format: format})
		if err != nil {
			return err
		}
		defer a.Close()

		conv, err := a.API.ExtractChat(cmd.Context(), data)
		if err != nil {
			return err
		}

		if table {
			fmt.Println(ui.ConversationTable(conv))
			return nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(conv)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().String("page-url", "", "URL the page was saved from, overriding the canonical link")
	extractCmd.Flags().String("format", "", "Content format of turns: text or markdown (default from config)")
	extractCmd.Flags().Bool("table", false, "Print a table instead of JSON")
}
