package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jo-hoe/cinememe/internal/backend/database"
	"github.com/jo-hoe/cinememe/internal/common"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Migrates the database to the latest version",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sync, err := common.SetupLogging(config.Environment)
			if err != nil {
				return err
			}
			defer sync()

			db, err := database.NewDatabase(context.Background(), config.Database.Type, config.Database.ConnectionString)
			if err != nil {
				return err
			}
			slog.Info("database migrated", "driver", config.Database.Type)
			return db.Close()
		},
	}
}
