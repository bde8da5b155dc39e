package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Migrator struct {
	pool *pgxpool.Pool
}

func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool}
}

type migration struct {
	version string
	query   string
}

var migrations = []migration{
	{
		version: "001_create_indexes",
		query: `
			CREATE TABLE IF NOT EXISTS indexes (
				id UUID NOT NULL,
				uid TEXT PRIMARY KEY,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				version INTEGER NOT NULL DEFAULT 1
			)
		`,
	},
	{
		version: "002_create_index_fields",
		query: `
			CREATE TABLE IF NOT EXISTS index_fields (
				index_uid TEXT NOT NULL REFERENCES indexes(uid) ON DELETE CASCADE,
				field_id SMALLINT NOT NULL,
				name TEXT NOT NULL,
				displayed BOOLEAN NOT NULL DEFAULT TRUE,
				faceted BOOLEAN NOT NULL DEFAULT FALSE,
				position INTEGER NOT NULL,
				PRIMARY KEY (index_uid, field_id),
				UNIQUE (index_uid, name)
			)
		`,
	},
	{
		version: "003_index_fields_position_idx",
		query: `
			CREATE INDEX IF NOT EXISTS index_fields_position_idx
			ON index_fields (index_uid, position)
		`,
	},
}

func (m *Migrator) Run(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if _, ok := applied[migration.version]; ok {
			continue
		}
		if err := m.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.version, err)
		}
	}

	return nil
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := m.pool.Exec(ctx, query)
	return err
}

func (m *Migrator) getAppliedMigrations(ctx context.Context) (map[string]struct{}, error) {
	rows, err := m.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = struct{}{}
	}
	return applied, rows.Err()
}

func (m *Migrator) applyMigration(ctx context.Context, mig migration) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, mig.query); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, mig.version); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
