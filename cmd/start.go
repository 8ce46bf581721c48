package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tesh254/gemd/internal/core"
	"github.com/tesh254/gemd/internal/download"
	"github.com/tesh254/gemd/internal/logger"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts the MCP server",
	Long:  `Starts an MCP server exposing the extract_chat, download and export_chat tools. Stdio is used unless --transport http is given. Downloads are saved to the suggested location without asking.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{Prompter: download.AcceptPrompter{}})
		if err != nil {
			return err
		}
		defer a.Close()

		httpAddress := ""
		if viper.GetString("transport") == "http" {
			httpAddress = viper.GetString("http-address")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		a.Logger.Info("Starting MCP server", logger.String("transport", viper.GetString("transport")))
		mcpServer := &core.Core{Logger: a.Logger.With(logger.String("component", "mcp"))}
		return mcpServer.StartServer(ctx, a.API, httpAddress)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().String("http-address", "localhost:9014", "HTTP address to listen on")
	startCmd.Flags().String("transport", "stdio", "Transport type (stdio or http)")
	viper.BindPFlag("http-address", startCmd.Flags().Lookup("http-address"))
	viper.BindPFlag("transport", startCmd.Flags().Lookup("transport"))
}
