// Command loadsmith runs screen-based HTTP load scenarios against a target
// service.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "loadsmith",
	Short:   "A screen-based HTTP load generator",
	Long:    `loadsmith runs virtual users through a scenario of screens — HTTP requests, think time, and weighted branches — against a target base URL, and reports latency and throughput per endpoint.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./loadsmith.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
