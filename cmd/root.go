package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tesh254/gemd/internal/extractor"
	"github.com/tesh254/gemd/internal/logger"
	"github.com/tesh254/gemd/internal/scraper"
	"github.com/tesh254/gemd/internal/ui"
)

// Version is set at build time with -ldflags "-X github.com/tesh254/gemd/cmd.Version=...".
var Version = "dev"

var (
	cfgFile string
	// installed is true on the first run, when the config file is created.
	installed bool
)

var rootCmd = &cobra.Command{
	Use:           "gemd",
	Short:         "gemd saves Gemini conversations as Markdown files.",
	Long:          `gemd reads a Gemini chat page (a saved HTML file, a URL or stdin), extracts the conversation and saves it as a Markdown document named after the chat title.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// errReported ends a command whose failure was already shown to the user.
var errReported = errors.New("failure already reported")

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, ui.Error(err))
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gemd/config.yaml)")
	rootCmd.PersistentFlags().String("db", filepath.Join(home, ".gemd", "history.db"), "Path to the download history database")
	rootCmd.PersistentFlags().String("output-dir", defaultOutputDir(home), "Directory downloads are saved to")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("output-dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.SetDefault("hosts", []string{"gemini.google.com"})
	viper.SetDefault("user-agent", scraper.DefaultConfig().UserAgent)
	viper.SetDefault("timeout", scraper.DefaultConfig().Timeout)
	viper.SetDefault("content-format", extractor.FormatText)
}

func defaultOutputDir(home string) string {
	dir := filepath.Join(home, "Downloads")
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return "."
}

func initConfig() {
	viper.SetEnvPrefix("gemd")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		configPath := filepath.Join(home, ".gemd")
		viper.AddConfigPath(configPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		// Create config file if it doesn't exist
		if err := os.MkdirAll(configPath, os.ModePerm); err != nil {
			fmt.Println("Error creating config directory:", err)
			os.Exit(1)
		}
		configFile := filepath.Join(configPath, "config.yaml")
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			if err := viper.SafeWriteConfig(); err != nil {
				var exists viper.ConfigFileAlreadyExistsError
				if !errors.As(err, &exists) {
					fmt.Println("Error writing config file:", err)
					os.Exit(1)
				}
			} else {
				installed = true
			}
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

// newLogger builds the process logger from the log-level setting and logs
// the install event on first run.
func newLogger() (logger.Logger, error) {
	log, err := logger.New(logger.Config{Level: viper.GetString("log-level")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if installed {
		log.Info("gemd installed", logger.String("config", viper.ConfigFileUsed()))
		installed = false
	}
	return log, nil
}

// extractorRules reads the extractor section of the config over the
// built-in rules.
func extractorRules(format string) (extractor.Rules, error) {
	rules := extractor.DefaultRules()
	if err := viper.UnmarshalKey("extractor", &rules); err != nil {
		return rules, fmt.Errorf("invalid extractor config: %w", err)
	}
	if format == "" {
		format = viper.GetString("content-format")
	}
	if format != "" {
		rules.ContentFormat = format
	}
	rules = rules.WithDefaults()
	if err := rules.Validate(); err != nil {
		return rules, err
	}
	return rules, nil
}

func scraperConfig() *scraper.Config {
	cfg := scraper.DefaultConfig()
	if ua := viper.GetString("user-agent"); ua != "" {
		cfg.UserAgent = ua
	}
	if timeout := viper.GetDuration("timeout"); timeout > 0 {
		cfg.Timeout = timeout
	}
	return cfg
}

func hosts() []string {
	hs := viper.GetStringSlice("hosts")
	if len(hs) == 0 {
		return []string{"gemini.google.com"}
	}
	return hs
}
