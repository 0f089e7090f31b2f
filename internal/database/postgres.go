package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL and creates the client tables.
func ConnectPostgres(postgresURI string, log *logger.Logger) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = PostgresDB.PingContext(ctx); err != nil {
		return err
	}
	log.Info("connected to PostgreSQL")

	if err = InitPostgresTables(ctx, PostgresDB); err != nil {
		return err
	}
	log.Info("PostgreSQL tables initialized")
	return nil
}

// InitPostgresTables creates all necessary tables if they don't exist.
func InitPostgresTables(ctx context.Context, db *sql.DB) error {
	queries := []string{
		// Background is stored encrypted when ENCRYPTION_KEY is set.
		`CREATE TABLE IF NOT EXISTS clients (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			first_name VARCHAR(255) NOT NULL,
			last_name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			gender VARCHAR(10) NOT NULL DEFAULT 'Other',
			date_of_birth DATE,
			background TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			password_hash VARCHAR(255),
			invite_token VARCHAR(128) UNIQUE,
			invite_issued_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS client_files (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			client_id UUID NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
			filename VARCHAR(255) NOT NULL,
			path TEXT NOT NULL,
			mimetype VARCHAR(255) NOT NULL DEFAULT '',
			size BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Notes are append-only.
		`CREATE TABLE IF NOT EXISTS client_notes (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			client_id UUID NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
			body TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_clients_email_lower ON clients(LOWER(email))`,
		`CREATE INDEX IF NOT EXISTS idx_clients_name ON clients(last_name, first_name)`,
		`CREATE INDEX IF NOT EXISTS idx_client_files_client_id ON client_files(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_client_notes_client_id ON client_notes(client_id, created_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
