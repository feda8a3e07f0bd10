package main

import (
	"whatsdesk/internal/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and partial indexes",
	Run:   runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) {
	cfg, log := bootstrap()
	defer log.Sync()

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("database migration completed")
}
