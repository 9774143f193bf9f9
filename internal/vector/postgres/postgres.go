// Package postgres stores translation memory in Postgres with the pgvector
// extension.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/config"
	"github.com/xxxsen/ratrans/internal/db"
	"github.com/xxxsen/ratrans/internal/model"
	"github.com/xxxsen/ratrans/internal/pkg/dbutil"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
	"github.com/xxxsen/ratrans/internal/vector"
)

const table = "translation_memory"

type Driver struct {
	db        *sql.DB
	dimension int
	location  string
}

func init() {
	vector.Register("pgvector", func(args interface{}, dimension int) (vector.Driver, error) {
		cfg := config.DatabaseConfig{}
		if err := vector.DecodeConfig(args, &cfg); err != nil {
			return nil, err
		}
		return Open(context.Background(), cfg, dimension)
	})
}

// Open connects, applies the embedded migrations and returns the driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, dimension int) (*Driver, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("pgvector embedding dimension must be positive")
	}
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.ApplyMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	location := "postgres://" + cfg.Host + "/" + cfg.DBName
	if cfg.DSN != "" {
		location = "postgres"
	}
	logutil.GetLogger(ctx).Info("pgvector driver initialized", zap.String("location", location), zap.Int("dimension", dimension))
	return New(conn, dimension, location), nil
}

// New wraps an existing connection whose schema is already migrated.
func New(conn *sql.DB, dimension int, location string) *Driver {
	return &Driver{db: conn, dimension: dimension, location: location}
}

func (d *Driver) checkDimension(v []float32) error {
	if len(v) != d.dimension {
		return fmt.Errorf("embedding dimension %d, want %d: %w", len(v), d.dimension, appErr.ErrInvalid)
	}
	return nil
}

func (d *Driver) Upsert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}
	const query = `
		INSERT INTO translation_memory (record_id, username, session_id, position, chunk_text, translations, created_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (record_id) DO UPDATE SET
			username = EXCLUDED.username,
			session_id = EXCLUDED.session_id,
			position = EXCLUDED.position,
			chunk_text = EXCLUDED.chunk_text,
			translations = EXCLUDED.translations,
			created_at = EXCLUDED.created_at,
			embedding = EXCLUDED.embedding
	`
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, rec := range records {
		if err := d.checkDimension(rec.Embedding); err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}
		translations, err := vector.EncodeTranslations(rec.Translations)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query,
			rec.ID, rec.Username, rec.SessionID, rec.Position, rec.ChunkText,
			translations, rec.CreatedAt, pgvector.NewVector(rec.Embedding),
		); err != nil {
			return fmt.Errorf("upsert record %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]model.MemoryMatch, error) {
	if topK <= 0 {
		return nil, nil
	}
	if err := d.checkDimension(embedding); err != nil {
		return nil, err
	}
	query := `SELECT record_id, username, session_id, position, chunk_text, translations, created_at, embedding <-> ? AS distance FROM ` + table
	args := []interface{}{pgvector.NewVector(embedding)}
	if !filter.Empty() {
		query += ` WHERE username = ?`
		args = append(args, filter.Username)
	}
	query += ` ORDER BY distance LIMIT ?`
	args = append(args, topK)
	query, args = dbutil.Finalize(query, args)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.MemoryMatch
	for rows.Next() {
		var (
			m            model.MemoryMatch
			translations string
			distance     float64
		)
		if err := rows.Scan(&m.ID, &m.Username, &m.SessionID, &m.Position, &m.ChunkText, &translations, &m.CreatedAt, &distance); err != nil {
			return nil, err
		}
		m.Translations = vector.DecodeTranslations(translations)
		m.Distance = float32(distance)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (d *Driver) Delete(ctx context.Context, filter vector.Filter) (int, error) {
	var (
		sqlStr string
		args   []interface{}
		err    error
	)
	if filter.Empty() {
		sqlStr = "DELETE FROM " + table
	} else {
		sqlStr, args, err = builder.BuildDelete(table, map[string]interface{}{"username": filter.Username})
		if err != nil {
			return 0, err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
	}
	res, err := d.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (d *Driver) Count(ctx context.Context) (int, error) {
	sqlStr, args, err := builder.BuildSelect(table, nil, []string{"COUNT(*)"})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var n int
	if err := d.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *Driver) Location() string {
	return d.location
}

func (d *Driver) Close() error {
	return d.db.Close()
}
