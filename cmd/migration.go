package cmd

import (
	"errors"
	"fmt"
	"log"
	"net/url"

	"quant-platform/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var migrationsDir string

// migrationTarget returns the source and database URLs for the configured
// driver. Each driver keeps its own SQL dialect under migrationsDir.
func migrationTarget(dbConfig config.Database) (string, string, error) {
	switch dbConfig.Driver {
	case "postgres":
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			url.QueryEscape(dbConfig.User),
			url.QueryEscape(dbConfig.Password),
			dbConfig.Host,
			dbConfig.Port,
			dbConfig.DBName,
			dbConfig.SSLMode)
		return "file://" + migrationsDir + "/postgres", dsn, nil
	case "sqlite":
		return "file://" + migrationsDir + "/sqlite", "sqlite3://" + dbConfig.SQLitePath + "?_foreign_keys=on", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", dbConfig.Driver)
	}
}

func runMigrations(direction string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	source, dsn, err := migrationTarget(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to resolve migration target: %v", err)
	}

	m, err := migrate.New(source, dsn)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}

	var migrationErr error
	switch direction {
	case "up":
		migrationErr = m.Up()
	case "down":
		migrationErr = m.Steps(-1)
	}

	if migrationErr != nil && !errors.Is(migrationErr, migrate.ErrNoChange) {
		log.Fatalf("Migration failed: %v", migrationErr)
	}
	if direction == "up" {
		fmt.Println("Applied migrations successfully.")
	} else {
		fmt.Println("Reverted last migration successfully.")
	}

	srcErr, dbErr := m.Close()
	if srcErr != nil {
		log.Printf("Migration source error on close: %v\n", srcErr)
	}
	if dbErr != nil {
		log.Printf("Migration database error on close: %v\n", dbErr)
	}
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all available database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		runMigrations("up")
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the last database migration",
	Run: func(cmd *cobra.Command, args []string) {
		runMigrations("down")
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "migrations", "directory holding the per-driver migrations")
	migrateCmd.AddCommand(upCmd)
	migrateCmd.AddCommand(downCmd)
}
