package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
	apperrors "pokeagent/pkg/errors"
	"pokeagent/pkg/migrations"
)

const insertPointQuery = `INSERT INTO metric_points (ts, class_name, labels, value) VALUES ($1, $2, $3, $4)`

// PostgresWriter inserts each batch in one transaction.
type PostgresWriter struct {
	db     *sql.DB
	logger logger.Logger
}

// NewPostgresWriter applies the embedded schema migrations first when
// cfg.RunMigrations is set. It does not own db.
func NewPostgresWriter(db *sql.DB, cfg config.PostgresStoreConfig, log logger.Logger) (*PostgresWriter, error) {
	if cfg.RunMigrations {
		if err := migrations.MigratePostgres(db); err != nil {
			return nil, apperrors.ErrStoreWrite.WithCause(err).AsFatal()
		}
	}

	return &PostgresWriter{db: db, logger: log}, nil
}

func (w *PostgresWriter) Name() string {
	return constants.StoreTypePostgres
}

func (w *PostgresWriter) Write(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.ErrStoreWrite.WithCause(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertPointQuery)
	if err != nil {
		return apperrors.ErrStoreWrite.WithCause(fmt.Errorf("failed to prepare insert: %w", err))
	}
	defer stmt.Close()

	for _, p := range points {
		labels, err := json.Marshal(p.LabelMap())
		if err != nil {
			return apperrors.ErrStoreWrite.WithCause(err).AsFatal()
		}
		if _, err := stmt.ExecContext(ctx, p.Timestamp.UTC(), p.ClassName, labels, p.Value); err != nil {
			return apperrors.ErrStoreWrite.WithCause(fmt.Errorf("failed to insert point: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.ErrStoreWrite.WithCause(fmt.Errorf("failed to commit: %w", err))
	}

	w.logger.Debugw("Points written to PostgreSQL",
		"points", len(points),
	)
	return nil
}

func (w *PostgresWriter) Close() error {
	return nil
}
