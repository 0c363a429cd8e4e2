package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Headless CMS engine generating CRUD APIs from declarative collections",
	Long: `Quill turns a declarative set of collections into a running CRUD API
with a hook pipeline, access control, plugins, and webhooks.

Quick start:
  quill validate   # Check configuration and collection definitions
  quill serve      # Start the API server

Inspection:
  quill collections  # List the declared collections`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "quill.yaml", "config file path")
}
