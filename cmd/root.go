package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "bootforge",
	Short: "Inspect provisioning inventories and their inherited attributes",
	Long: "Bootforge loads a provisioning inventory of distros, profiles, images, systems, menus, and repos, " +
		"and shows how each item's attributes resolve through its parents and the global settings.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default .bootforge.yaml)")
	flags.StringP("inventory", "i", "", "inventory file (default inventory.toml)")
	flags.String("settings", "", "settings file (YAML or TOML)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("events", "", "append a JSONL event log to this file")
	flags.Bool("lazy", false, "load items on first access")
	flags.Bool("no-color", false, "disable colored output")

	_ = viper.BindPFlag("inventory", flags.Lookup("inventory"))
	_ = viper.BindPFlag("settings", flags.Lookup("settings"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("events", flags.Lookup("events"))
	_ = viper.BindPFlag("lazy", flags.Lookup("lazy"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".bootforge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("BOOTFORGE")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}
