package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"ratewatch/internal/config"
)

// EnsureDatabase connects to the postgres server and creates the
// configured database if it doesn't exist.
func EnsureDatabase(cfg config.PostgresConfig) error {
	// Connect to the default 'postgres' DB
	db, err := sql.Open("postgres", cfg.DSN("postgres"))
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer db.Close()

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1);`
	if err := db.QueryRow(query, cfg.DBName).Scan(&exists); err != nil {
		return fmt.Errorf("check db exists failed: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE %s", cfg.DBName)); err != nil {
		return fmt.Errorf("create db failed: %w", err)
	}
	return nil
}

// Open connects to the configured database, optionally creating it first,
// and runs migrations.
func Open(cfg config.PostgresConfig, createDB bool) (*Postgres, error) {
	if createDB {
		if err := EnsureDatabase(cfg); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}
	p, err := NewPostgres(cfg.DSN(""))
	if err != nil {
		return nil, err
	}
	if err := p.AutoMigrate(); err != nil {
		return nil, err
	}
	return p, nil
}
