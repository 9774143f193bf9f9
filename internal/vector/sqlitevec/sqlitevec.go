// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/model"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
	"github.com/xxxsen/ratrans/internal/vector"
)

type Config struct {
	// Path is the database file. ":memory:" keeps everything in process.
	Path string `json:"path"`
}

type Driver struct {
	db        *sql.DB
	path      string
	dimension int
}

func init() {
	vector.Register("sqlitevec", func(args interface{}, dimension int) (vector.Driver, error) {
		cfg := Config{}
		if err := vector.DecodeConfig(args, &cfg); err != nil {
			return nil, err
		}
		return New(context.Background(), cfg, dimension)
	})
}

func New(ctx context.Context, c Config, dimension int) (*Driver, error) {
	sqlite_vec.Auto()

	if c.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimension must be positive")
	}
	if c.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", c.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// vec0 tables and the record table must be seen by one connection for
	// in-memory databases.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL,
			session_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			chunk_text TEXT NOT NULL,
			translations TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_records_username ON memory_records(username)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS memory_embeddings USING vec0(embedding float[%d])`, dimension),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	logutil.GetLogger(ctx).Info("sqlite-vec vector driver initialized",
		zap.String("path", c.Path),
		zap.Int("dimension", dimension),
		zap.String("vec_version", vecVersion),
	)
	return &Driver{db: db, path: c.Path, dimension: dimension}, nil
}

func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
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
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		if err := d.checkDimension(rec.Embedding); err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}
		translations, err := vector.EncodeTranslations(rec.Translations)
		if err != nil {
			return fmt.Errorf("encoding translations for %s: %w", rec.ID, err)
		}
		blob := serializeFloat32(rec.Embedding)

		var rowID int64
		err = tx.QueryRowContext(ctx, `SELECT rowid FROM memory_records WHERE record_id = ?`, rec.ID).Scan(&rowID)
		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE memory_records SET username = ?, session_id = ?, position = ?, chunk_text = ?, translations = ?, created_at = ? WHERE rowid = ?`,
				rec.Username, rec.SessionID, rec.Position, rec.ChunkText, translations, rec.CreatedAt, rowID,
			); err != nil {
				return fmt.Errorf("updating record %s: %w", rec.ID, err)
			}
			// vec0 has no UPDATE
			if _, err := tx.ExecContext(ctx, `DELETE FROM memory_embeddings WHERE rowid = ?`, rowID); err != nil {
				return fmt.Errorf("deleting old embedding for %s: %w", rec.ID, err)
			}
		case sql.ErrNoRows:
			res, err := tx.ExecContext(ctx,
				`INSERT INTO memory_records(record_id, username, session_id, position, chunk_text, translations, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, rec.Username, rec.SessionID, rec.Position, rec.ChunkText, translations, rec.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("inserting record %s: %w", rec.ID, err)
			}
			if rowID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("getting rowid for %s: %w", rec.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing record %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_embeddings(rowid, embedding) VALUES (?, ?)`, rowID, blob,
		); err != nil {
			return fmt.Errorf("inserting embedding for %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	logutil.GetLogger(ctx).Debug("upserted records into sqlite-vec", zap.Int("count", len(records)))
	return nil
}

const selectColumns = `r.record_id, r.username, r.session_id, r.position, r.chunk_text, r.translations, r.created_at`

// Query uses the vec0 KNN index when unfiltered. With a username filter the
// candidate set is the user's rows, ranked by vec_distance_l2.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]model.MemoryMatch, error) {
	if topK <= 0 {
		return nil, nil
	}
	if err := d.checkDimension(embedding); err != nil {
		return nil, err
	}
	blob := serializeFloat32(embedding)

	var (
		rows *sql.Rows
		err  error
	)
	if filter.Empty() {
		rows, err = d.db.QueryContext(ctx, `
			SELECT `+selectColumns+`, e.distance
			FROM memory_embeddings e
			INNER JOIN memory_records r ON r.rowid = e.rowid
			WHERE e.embedding MATCH ?
				AND e.k = ?
			ORDER BY e.distance
		`, blob, topK)
	} else {
		rows, err = d.db.QueryContext(ctx, `
			SELECT `+selectColumns+`, vec_distance_l2(e.embedding, ?) AS distance
			FROM memory_records r
			INNER JOIN memory_embeddings e ON e.rowid = r.rowid
			WHERE r.username = ?
			ORDER BY distance
			LIMIT ?
		`, blob, filter.Username, topK)
	}
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
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
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		m.Translations = vector.DecodeTranslations(translations)
		m.Distance = float32(distance)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}
	return out, nil
}

func (d *Driver) Delete(ctx context.Context, filter vector.Filter) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT rowid FROM memory_records`
	var args []interface{}
	if !filter.Empty() {
		query += ` WHERE username = ?`
		args = append(args, filter.Username)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("querying rowids for deletion: %w", err)
	}
	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_embeddings WHERE rowid = ?`, rowID); err != nil {
			return 0, fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_records WHERE rowid = ?`, rowID); err != nil {
			return 0, fmt.Errorf("deleting record rowid %d: %w", rowID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return len(rowIDs), nil
}

func (d *Driver) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func (d *Driver) Location() string {
	return d.path
}

func (d *Driver) Close() error {
	return d.db.Close()
}
