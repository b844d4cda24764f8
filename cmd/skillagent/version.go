package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openskills/skillagent/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version information of skillagent in JSON format.`,
	Run: func(_ *cobra.Command, _ []string) {
		out, err := version.Get().JSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error formatting version info: %s\n", err)
			os.Exit(1)
		}
		fmt.Println(out)
	},
}
