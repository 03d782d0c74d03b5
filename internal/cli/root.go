// Package cli implements the fenctl command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/chessfen/internal/builder"
	"github.com/park285/chessfen/internal/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "fenctl",
	Short:         "Recognize chess positions in board images",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("fenctl version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// loadDeps builds the recognizer from the same environment the server reads.
func loadDeps() (*builder.Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return builder.New(cfg, zap.NewNop())
}
