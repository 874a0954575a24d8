// Package cli provides the command-line interface for Fody
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	verbosity string
	version   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fody",
	Short: "Build-time assembly weaving orchestrator",
	Long: `Fody resolves which weavers apply to a build, orders them, and runs
them inside a cached, invalidatable isolation context so weaver state
and stale binaries never leak between builds sharing a process.`,

	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("Fody v%s\n", version)
			return
		}
		cmd.Help()
	},
}

// Execute runs the CLI
func Execute(v string) error {
	version = v

	// Initialize the root command explicitly (avoiding init())
	initializeRootCommand()

	return rootCmd.Execute()
}

// initializeRootCommand sets up the root command and its flags
func initializeRootCommand() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default: .fody.yaml in the solution directory)")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")

	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	rootCmd.AddCommand(newWeaveCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".fody")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("FODY")
	viper.AutomaticEnv()

	viper.SetDefault("changeDetection", "hash")
	viper.SetDefault("notifications.enabled", false)
	viper.SetDefault("worker.command", "fody-worker")
	viper.SetDefault("generateSchema", true)

	// A missing settings file is fine; defaults and flags cover it.
	_ = viper.ReadInConfig()
}
