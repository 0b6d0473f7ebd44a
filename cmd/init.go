package cmd

import (
	"fmt"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/config"
	"github.com/spf13/cobra"
)

var (
	initPath  string
	initForce bool
)

// initCmd writes the built-in defaults as a starting configuration.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Write(config.Default(), initPath, initForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", initPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initPath, "path", config.DefaultFile, "Where to write the configuration")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")
}
