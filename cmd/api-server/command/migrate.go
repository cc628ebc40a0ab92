package command

import (
	"github.com/spf13/cobra"

	"yamdb/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		return database.Migrate(a.db, a.logger)
	},
}
