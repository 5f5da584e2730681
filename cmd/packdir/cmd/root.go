package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "packdir",
	Short: "Pack store CLI",
	Long:  "CLI for inspecting and verifying directories of content-addressed pack files.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/packdir/config.yaml)")
	rootCmd.PersistentFlags().String("dir", "", "pack directory (default: current directory)")

	viper.BindPFlag("dir", rootCmd.PersistentFlags().Lookup("dir"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PACKDIR")
	viper.AutomaticEnv()
	viper.SetDefault("dir", ".")
	viper.SetDefault("cache_size", 16)
	viper.SetDefault("refresh_interval", time.Second)
	viper.SetDefault("delete_corrupt", false)

	viper.ReadInConfig()
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "packdir")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "packdir")
	}
	return ".packdir"
}

func getDir() string {
	return viper.GetString("dir")
}
