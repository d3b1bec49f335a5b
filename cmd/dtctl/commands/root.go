package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/dtclient/internal/constants"
)

// Viper keys bound to the global flags.
const (
	configKey   = "config"
	baseURLKey  = "base_url"
	outputKey   = "output"
	verboseKey  = "verbose"
	logLevelKey = "log_level"
	logFileKey  = "log_file"
)

// NewRootCommand creates the dtctl command tree.
func NewRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dtctl",
		Short: "Disruptive Technologies API CLI",
		Long: `A command-line interface for the Disruptive Technologies REST API.

Credentials are read from DT_SERVICE_ACCOUNT_KEY_ID, DT_SERVICE_ACCOUNT_SECRET
and DT_SERVICE_ACCOUNT_EMAIL, a .env file in the working directory, or the
config file given with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.dtctl/config.yml)")
	flags.String("base-url", "", "API base URL")
	flags.StringP("output", "o", constants.FormatTable, "output format (table, json, yaml)")
	flags.BoolP("verbose", "v", false, "log HTTP requests and responses")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "write logs to a rotated file instead of stderr")

	_ = viper.BindPFlag(configKey, flags.Lookup("config"))
	_ = viper.BindPFlag(baseURLKey, flags.Lookup("base-url"))
	_ = viper.BindPFlag(outputKey, flags.Lookup("output"))
	_ = viper.BindPFlag(verboseKey, flags.Lookup("verbose"))
	_ = viper.BindPFlag(logLevelKey, flags.Lookup("log-level"))
	_ = viper.BindPFlag(logFileKey, flags.Lookup("log-file"))

	rootCmd.AddCommand(NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(NewProjectsCommand())
	rootCmd.AddCommand(NewDevicesCommand())
	rootCmd.AddCommand(NewOrgsCommand())
	rootCmd.AddCommand(NewRolesCommand())
	rootCmd.AddCommand(NewEventsCommand())
	rootCmd.AddCommand(NewStreamCommand())
	rootCmd.AddCommand(NewTokenCommand())

	return rootCmd
}
