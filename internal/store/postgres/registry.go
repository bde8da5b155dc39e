package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sumandas0/querygate/internal/models"
	"github.com/sumandas0/querygate/pkg/utils"
)

// PostgresRegistry implements the IndexRegistry interface on PostgreSQL.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

func NewPostgresRegistry(connectionString string) (*PostgresRegistry, error) {
	config, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &PostgresRegistry{
		pool: pool,
	}, nil
}

func (r *PostgresRegistry) GetPool() *pgxpool.Pool {
	return r.pool
}

func (r *PostgresRegistry) CreateIndex(ctx context.Context, def *models.IndexDefinition) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO indexes (id, uid, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = tx.Exec(ctx, query, def.ID, def.UID, def.CreatedAt, def.UpdatedAt, def.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return utils.NewAppError(utils.CodeAlreadyExists, "index already exists", err).
				WithDetail("uid", def.UID)
		}
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := insertFields(ctx, tx, def); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PostgresRegistry) GetIndex(ctx context.Context, uid string) (*models.IndexDefinition, error) {
	return r.getIndex(ctx, r.pool, uid)
}

// GetIndexSnapshot reads the definition inside a read-only transaction so a
// search request observes one consistent field catalog. The transaction is
// released on every exit path.
func (r *PostgresRegistry) GetIndexSnapshot(ctx context.Context, uid string) (*models.IndexDefinition, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	def, err := r.getIndex(ctx, tx, uid)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to close read transaction: %w", err)
	}
	return def, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresRegistry) getIndex(ctx context.Context, q queryer, uid string) (*models.IndexDefinition, error) {
	query := `
		SELECT id, uid, created_at, updated_at, version
		FROM indexes
		WHERE uid = $1
	`

	var def models.IndexDefinition
	err := q.QueryRow(ctx, query, uid).Scan(
		&def.ID,
		&def.UID,
		&def.CreatedAt,
		&def.UpdatedAt,
		&def.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewAppError(utils.CodeNotFound, "index not found", err).
				WithDetail("uid", uid)
		}
		return nil, fmt.Errorf("failed to get index: %w", err)
	}

	fields, err := loadFields(ctx, q, uid)
	if err != nil {
		return nil, err
	}
	def.Fields = fields

	return &def, nil
}

func loadFields(ctx context.Context, q queryer, uid string) ([]models.FieldDefinition, error) {
	query := `
		SELECT field_id, name, displayed, faceted
		FROM index_fields
		WHERE index_uid = $1
		ORDER BY position
	`

	rows, err := q.Query(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to load index fields: %w", err)
	}
	defer rows.Close()

	var fields []models.FieldDefinition
	for rows.Next() {
		var f models.FieldDefinition
		if err := rows.Scan(&f.ID, &f.Name, &f.Displayed, &f.Faceted); err != nil {
			return nil, fmt.Errorf("failed to scan index field: %w", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate index fields: %w", err)
	}

	return fields, nil
}

func (r *PostgresRegistry) UpdateIndex(ctx context.Context, def *models.IndexDefinition) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE indexes
		SET updated_at = $2, version = version + 1
		WHERE uid = $1 AND version = $3
	`

	tag, err := tx.Exec(ctx, query, def.UID, time.Now().UTC(), def.Version)
	if err != nil {
		return fmt.Errorf("failed to update index: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.NewAppError(utils.CodeNotFound, "index not found or modified concurrently", nil).
			WithDetail("uid", def.UID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM index_fields WHERE index_uid = $1`, def.UID); err != nil {
		return fmt.Errorf("failed to replace index fields: %w", err)
	}
	if err := insertFields(ctx, tx, def); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index update: %w", err)
	}
	def.Version++
	return nil
}

func (r *PostgresRegistry) DeleteIndex(ctx context.Context, uid string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM indexes WHERE uid = $1`, uid)
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.NewAppError(utils.CodeNotFound, "index not found", nil).
			WithDetail("uid", uid)
	}
	return nil
}

func (r *PostgresRegistry) ListIndexes(ctx context.Context) ([]*models.IndexDefinition, error) {
	query := `
		SELECT id, uid, created_at, updated_at, version
		FROM indexes
		ORDER BY uid
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	defer rows.Close()

	var defs []*models.IndexDefinition
	for rows.Next() {
		var def models.IndexDefinition
		if err := rows.Scan(&def.ID, &def.UID, &def.CreatedAt, &def.UpdatedAt, &def.Version); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		defs = append(defs, &def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate indexes: %w", err)
	}

	for _, def := range defs {
		fields, err := loadFields(ctx, r.pool, def.UID)
		if err != nil {
			return nil, err
		}
		def.Fields = fields
	}

	return defs, nil
}

func (r *PostgresRegistry) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRegistry) Close() error {
	r.pool.Close()
	return nil
}

func insertFields(ctx context.Context, tx pgx.Tx, def *models.IndexDefinition) error {
	query := `
		INSERT INTO index_fields (index_uid, field_id, name, displayed, faceted, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for position, f := range def.Fields {
		_, err := tx.Exec(ctx, query, def.UID, f.ID, f.Name, f.Displayed, f.Faceted, position)
		if err != nil {
			if isUniqueViolation(err) {
				return utils.NewAppError(utils.CodeAlreadyExists, "duplicate field in index", err).
					WithDetail("uid", def.UID).
					WithDetail("field", f.Name)
			}
			return fmt.Errorf("failed to insert index field: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
