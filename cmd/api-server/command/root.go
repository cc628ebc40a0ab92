package command

// root.go defines the yamdb command tree. Every subcommand reads the same
// environment configuration (see internal/config).

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "yamdb",
	Short: "yamdb - review platform API server",
	Long: `yamdb serves the titles, reviews and comments API.

Use "yamdb serve" to run the HTTP server, "yamdb migrate" to create or update
the schema and "yamdb createsuperuser" to bootstrap an operator account.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, createSuperuserCmd)
}
