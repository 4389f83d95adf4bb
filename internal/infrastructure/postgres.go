package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	// Auto-migrate schema
	if err := client.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

func (p *PostgresClient) Migrate() error {
	ctx := context.Background()

	// Admin table. Setup is dynamic: no seeding here.
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS admins (
			username VARCHAR(50) PRIMARY KEY,
			password_hash VARCHAR(255) NOT NULL,
			must_change_password BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create admins table: %w", err)
	}

	// Accounts: one row per managed tenant. api_id stays plain for lookups;
	// the credential pair is stored JWT-encoded.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			api_id VARCHAR(32) PRIMARY KEY,
			api_id_jwt TEXT,
			api_hash_jwt TEXT,
			first_name VARCHAR(100),
			username VARCHAR(100),
			phone_number VARCHAR(32),
			session_string TEXT,
			last_login TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create accounts table: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS settings (
			owner_id VARCHAR(32) PRIMARY KEY,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			auto_reply_text TEXT NOT NULL DEFAULT '',
			wait_time INT NOT NULL DEFAULT 10
		);
	`)
	if err != nil {
		return fmt.Errorf("create settings table: %w", err)
	}

	// Keyword order is the insert order; the serial id carries it.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS keywords (
			id SERIAL PRIMARY KEY,
			owner_id VARCHAR(32) NOT NULL,
			keyword VARCHAR(100) NOT NULL,
			reply TEXT NOT NULL,
			UNIQUE (owner_id, keyword)
		);
	`)
	if err != nil {
		return fmt.Errorf("create keywords table: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS scheduled_messages (
			id VARCHAR(36) PRIMARY KEY,
			owner_id VARCHAR(32) NOT NULL,
			message TEXT NOT NULL,
			time_of_day VARCHAR(5) NOT NULL,
			chat_ids JSONB NOT NULL DEFAULT '[]',
			usernames JSONB NOT NULL DEFAULT '[]',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_sent_date VARCHAR(10)
		);
	`)
	if err != nil {
		return fmt.Errorf("create scheduled_messages table: %w", err)
	}

	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
