// Package storage opens and tunes the MySQL connection pool shared by
// the appointment and notification stores, and applies schema
// migrations on startup.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	logx "agendazap/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Config configures the MySQL pool. DSN falls back to the DATABASE_DSN
// environment variable when empty.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to MySQL, verifies the connection and runs migrations.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*sql.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_DSN"))
	}
	if dsn == "" {
		return nil, errors.New("database dsn is required (config database.dsn or DATABASE_DSN)")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("storage: connected", logx.Int("max_open", cfg.MaxOpenConns))
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	// MySQL executes one statement per call; split on the trailing
	// semicolon of each statement.
	for _, stmt := range strings.Split(string(b), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
