// Command migrate applies or rolls back the embedded schema migrations.
//
//	go run ./cmd/migrate -direction up
//	go run ./cmd/migrate -direction down -steps 1
package main

import (
	"database/sql"
	"errors"
	"flag"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-workflow-api/pkg/config"
	"github.com/noah-isme/classroom-workflow-api/pkg/database"
	"github.com/noah-isme/classroom-workflow-api/pkg/logger"
)

func main() {
	direction := flag.String("direction", "up", "up or down")
	steps := flag.Int("steps", 0, "number of migrations to roll back when direction=down (0 = all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	switch *direction {
	case "up":
		err = database.RunMigrations(db.DB, logr)
	case "down":
		err = rollback(db.DB, *steps)
	default:
		logr.Fatal("unknown direction", zap.String("direction", *direction))
	}
	if err != nil {
		logr.Fatal("migration failed", zap.Error(err))
	}
	logr.Info("migration finished", zap.String("direction", *direction))
}

func rollback(db *sql.DB, steps int) error {
	m, err := database.NewMigrator(db)
	if err != nil {
		return err
	}
	if steps > 0 {
		err = m.Steps(-steps)
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
