// Command notes is a small notes backend served in-process by inproc.
//
//	notes demo      drive the routes through the in-process transport
//	notes serve     expose the same routes over HTTP for a browser
//	notes routes    print the route table
//
// Settings come from --config (YAML), .env and INPROC_* variables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "notes",
		Short:         "In-process notes backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	rootCmd.AddCommand(
		demoCmd(&configPath),
		serveCmd(&configPath),
		routesCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "notes: %s\n", err)
		os.Exit(1)
	}
}
