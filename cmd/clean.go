package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Deletes the download history",
	Long:  `Deletes every record from the download history. Saved files are left in place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		if !yes {
			reader := bufio.NewReader(os.Stdin)
			color.Red("WARNING: This will delete the whole download history and is not recoverable.")
			fmt.Print("Are you sure you want to continue? (yes/no): ")

			response, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			if strings.TrimSpace(strings.ToLower(response)) != "yes" {
				fmt.Println("Clean operation cancelled.")
				return nil
			}
		}

		a, err := newApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.API.Clean(); err != nil {
			return err
		}
		fmt.Println("History cleaned successfully.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}
