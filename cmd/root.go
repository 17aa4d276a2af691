// Package cmd implements the command-line interface for finfetch.
// It provides the root command and subcommands for downloading and
// organizing financial documents.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joho/godotenv"
	"github.com/jonesrussell/finfetch/cmd/fetch"
	cmdorganize "github.com/jonesrussell/finfetch/cmd/organize"
	cmdreport "github.com/jonesrussell/finfetch/cmd/report"
	"github.com/jonesrussell/finfetch/cmd/state"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug logging for all commands
	Debug bool

	// rootCmd represents the root command for the finfetch CLI.
	rootCmd = &cobra.Command{
		Use:   "finfetch",
		Short: "A resumable downloader for financial documents",
		Long: `finfetch downloads investor-relations documents in parallel,
classifies them by company, year and period, and organizes them on disk.
Interrupted runs resume from a checkpoint without re-downloading.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command
func Execute() error {
	// Load .env file early so environment variables are available
	_ = godotenv.Load()

	// Parse flags early to get debug flag before creating logger
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

// init initializes the root command and its subcommands.
func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("finfetch version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(fetch.Command())
	rootCmd.AddCommand(cmdorganize.Command())
	rootCmd.AddCommand(cmdreport.Command())
	rootCmd.AddCommand(state.Command())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	// Enable automatic environment variable reading before reading config
	// so environment variables take precedence over file values.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Config file is optional; defaults and environment variables cover
	// every setting.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config file not found: %v (using defaults and environment variables)\n", err)
	}

	if err := bindEnvVars(); err != nil {
		return err
	}

	if Debug || viper.GetBool("app.debug") {
		viper.Set("logger.level", "debug")
		Debug = true
	}
	if viper.GetString("app.environment") == "development" {
		viper.Set("logger.development", true)
		viper.Set("logger.encoding", "console")
	}

	return nil
}

// bindEnvVars maps environment variables to config keys.
func bindEnvVars() error {
	bindings := map[string][]string{
		"company":                  {"COMPANY_NAME"},
		"logger.level":             {"LOG_LEVEL"},
		"logger.encoding":          {"LOG_FORMAT"},
		"downloads.directory":      {"DOWNLOAD_DIR"},
		"downloads.user_agent":     {"USER_AGENT"},
		"app.environment":          {"APP_ENV"},
		"app.debug":                {"APP_DEBUG"},
		"downloads.max_concurrent": {"MAX_CONCURRENT_DOWNLOADS"},
	}
	for key, envs := range bindings {
		if err := viper.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", envs[0], err)
		}
	}
	return nil
}
