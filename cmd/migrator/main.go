package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/linemk/rewards-wallet/internal/config"
)

// migrateDSN добавляет к DSN имя таблицы версий миграций
func migrateDSN(cfg *config.Config, migrationTable string) string {
	return fmt.Sprintf("%s&x-migrations-table=%s", cfg.DatabaseDSN(), migrationTable)
}

func main() {
	var (
		migrationsPathFlag string
		down               bool
	)
	flag.StringVar(&migrationsPathFlag, "migrations-path", "", "path to migration files")
	flag.BoolVar(&down, "down", false, "roll back all migrations")

	// MustLoad сам вызывает flag.Parse
	cfg := config.MustLoad()

	migrationsPath := cfg.Migrations.Path
	if migrationsPathFlag != "" {
		migrationsPath = migrationsPathFlag
	}

	migrationTableName := "migrations"

	// Создаем объект мигратора
	m, err := migrate.New(
		"file://"+migrationsPath,
		migrateDSN(cfg, migrationTableName),
	)
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}

	apply := m.Up
	if down {
		apply = m.Down
	}
	if err := apply(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("No migrations to apply")
		} else {
			log.Fatalf("migration failed: %v", err)
		}
	} else {
		log.Println("Migrations applied successfully")
	}

	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name
	`)
	if err != nil {
		log.Fatalf("failed to query tables: %v", err)
	}
	defer rows.Close()

	fmt.Println("Current tables in the database:")
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			log.Fatalf("failed to scan row: %v", err)
		}
		fmt.Println(" -", tableName)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("error reading rows: %v", err)
	}
}
