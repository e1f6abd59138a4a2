package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/iliyamo/slotswap/internal/config"
	"github.com/iliyamo/slotswap/internal/database"
)

const (
	migrationUp   = "up"
	migrationDown = "down"
)

func mustMigrateUp(m *migrate.Migrate) {
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}
		panic(err)
	}
	fmt.Println("migrations applied successfully")
}

func mustMigrateDown(m *migrate.Migrate) {
	if err := m.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}
		panic(err)
	}
	fmt.Println("migrations downed successfully")
}

// Connection settings come from the same DB_* variables the server uses.
func main() {
	var migrationsPath, migrationsTable, migrationType string
	flag.StringVar(&migrationType, "migration-type", migrationUp, "migration type (up|down)")
	flag.StringVar(&migrationsPath, "migrations-path", "migrations", "path to migrations")
	flag.StringVar(&migrationsTable, "migrations-table", "schema_migrations", "name of migrations table")
	flag.Parse()

	cfg := config.LoadDB()
	params := database.Params{User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName}

	m, err := migrate.New("file://"+migrationsPath, database.MigrateURL(params, migrationsTable))
	if err != nil {
		panic(err)
	}
	defer m.Close()

	switch migrationType {
	case migrationDown:
		mustMigrateDown(m)
	case migrationUp:
		mustMigrateUp(m)
	default:
		panic(fmt.Sprintf("unknown migration type %q", migrationType))
	}
}
