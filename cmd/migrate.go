package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openStorage(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.stop()

		logrus.Infof("[MIGRATION] %s schema is up to date", cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
