package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tesh254/gemd/internal/download"
	"github.com/tesh254/gemd/internal/exporter"
	"github.com/tesh254/gemd/internal/scraper"
	"github.com/tesh254/gemd/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:   "export [file|url|-]",
	Short: "Extracts a Gemini chat and saves it as Markdown",
	Long: `Extracts the conversation from a Gemini chat page and saves it as a Markdown file named after the chat title.

The page can be a saved HTML file, an http(s) URL, or "-" to read HTML from stdin.
You are asked where to save the file unless --yes is given; answer with an empty
line to accept the suggested path or press Ctrl-D to cancel.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pageURL, _ := cmd.Flags().GetString("page-url")
		anyHost, _ := cmd.Flags().GetBool("any-host")
		yes, _ := cmd.Flags().GetBool("yes")
		format, _ := cmd.Flags().GetString("format")
		verbose, _ := cmd.Flags().GetBool("verbose")

		src := scraper.Source{Location: args[0], PageURL: pageURL}
		if args[0] == "-" {
			src.Body = os.Stdin
		}

		// Stdin carries the page, so it cannot answer the save dialog too.
		var prompter download.Prompter = download.TerminalPrompter{In: os.Stdin, Out: os.Stderr}
		if yes || src.Body != nil {
			prompter = download.AcceptPrompter{}
		}

		a, err := newApp(appOptions{
			Prompter:      prompter,
			Observer:      ui.StatusPrinter(func(line string) { fmt.Fprintln(os.Stderr, line) }),
			Format:        format,
			SkipHostCheck: anyHost,
		})
		if err != nil {
			return err
		}
		defer a.Close()

		if verbose {
			fmt.Fprintln(os.Stderr, ui.Banner(src.String(), viper.GetString("output-dir")))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		res := a.API.Export(ctx, src)
		if verbose && !res.Conversation.Empty() {
			fmt.Fprintln(os.Stderr, ui.ConversationTable(res.Conversation))
		}

		switch res.State {
		case exporter.StateCompleted:
			fmt.Println(res.Path)
		case exporter.StateFailed:
			return errReported
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("page-url", "", "URL the page was saved from, overriding the canonical link")
	exportCmd.Flags().Bool("any-host", false, "Export pages that are not on a configured host")
	exportCmd.Flags().BoolP("yes", "y", false, "Save to the suggested location without asking")
	exportCmd.Flags().String("format", "", "Content format of turns: text or markdown (default from config)")
	exportCmd.Flags().BoolP("verbose", "v", false, "Show the source and a table of the extracted turns")
}
