package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const configFlagName = "config"

var rootCmd = &cobra.Command{
	Use:          "forecast",
	Short:        "Play-money prediction market exchange",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String(configFlagName, "", "Path to a YAML config file (FORECAST_* env vars override it)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
