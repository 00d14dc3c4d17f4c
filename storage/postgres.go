package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mkorobov/tickertrack/core/logger"
	"log/slog"
)

// PostgresStore keeps each logical table as a two-column relation:
// the hash key and a JSONB document. Nested field updates map onto
// jsonb_set and the #- operator, which gives the same
// one-key-inside-a-map granularity the contract requires.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgres wraps an open sqlx connection pool.
func NewPostgres(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, table string, key Key) (Record, error) {
	if !validTableName(table) {
		return nil, wrapErr(table, "get", fmt.Errorf("invalid table name %q", table))
	}
	var raw []byte
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE k = $1`, table)
	if err := s.db.GetContext(ctx, &raw, query, string(key)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapErr(table, "get", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, wrapErr(table, "get", err)
	}
	return rec, nil
}

// Put implements Store with an upsert, so refresh overwrites rows by key.
func (s *PostgresStore) Put(ctx context.Context, table string, key Key, rec Record) error {
	if !validTableName(table) {
		return wrapErr(table, "put", fmt.Errorf("invalid table name %q", table))
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return wrapErr(table, "put", err)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (k, doc) VALUES ($1, $2) ON CONFLICT (k) DO UPDATE SET doc = EXCLUDED.doc`,
		table,
	)
	if _, err := s.db.ExecContext(ctx, query, string(key), doc); err != nil {
		return wrapErr(table, "put", err)
	}
	return nil
}

// Scan implements Store. The predicate is pushed down to SQL; the
// projection is applied on the fetched documents.
func (s *PostgresStore) Scan(ctx context.Context, table string, filter *Filter, projection []string) ([]Record, error) {
	if !validTableName(table) {
		return nil, wrapErr(table, "scan", fmt.Errorf("invalid table name %q", table))
	}
	start := time.Now()

	query := fmt.Sprintf(`SELECT doc FROM %s`, table)
	var args []any
	if filter != nil && filter.Field != "" && len(filter.Values) > 0 {
		if !validFieldName(filter.Field) {
			return nil, wrapErr(table, "scan", fmt.Errorf("invalid filter field %q", filter.Field))
		}
		if len(filter.Values) == 1 {
			query += fmt.Sprintf(` WHERE doc->>'%s' = $1`, filter.Field)
			args = append(args, stringify(filter.Values[0]))
		} else {
			vals := make([]string, len(filter.Values))
			for i, v := range filter.Values {
				vals[i] = stringify(v)
			}
			query += fmt.Sprintf(` WHERE doc->>'%s' = ANY($1)`, filter.Field)
			args = append(args, pq.Array(vals))
		}
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(table, "scan", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, wrapErr(table, "scan", err)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, wrapErr(table, "scan", err)
		}
		out = append(out, project(rec, projection))
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(table, "scan", err)
	}

	if logger.Store != nil && logger.ShouldSampleDebug() {
		logger.Store.LogAttrs(ctx, slog.LevelDebug, "scan",
			slog.String("event", "scan"),
			slog.String("status", "ok"),
			slog.String("table", table),
			slog.Int("count", len(out)),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return out, nil
}

// Update implements Store inside a single transaction; a missing key is ErrNotFound.
func (s *PostgresStore) Update(ctx context.Context, table string, key Key, ops []FieldOp) error {
	if !validTableName(table) {
		return wrapErr(table, "update", fmt.Errorf("invalid table name %q", table))
	}
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapErr(table, "update", err)
	}
	defer tx.Rollback()

	for _, op := range ops {
		path := pq.Array(SplitPath(op.Path))
		var res sql.Result
		switch op.Kind {
		case OpSet:
			val, err := json.Marshal(op.Value)
			if err != nil {
				return wrapErr(table, "update", err)
			}
			query := fmt.Sprintf(`UPDATE %s SET doc = jsonb_set(doc, $1, $2::jsonb, true) WHERE k = $3`, table)
			res, err = tx.ExecContext(ctx, query, path, val, string(key))
			if err != nil {
				return wrapErr(table, "update", err)
			}
		case OpRemove:
			query := fmt.Sprintf(`UPDATE %s SET doc = doc #- $1 WHERE k = $2`, table)
			res, err = tx.ExecContext(ctx, query, path, string(key))
			if err != nil {
				return wrapErr(table, "update", err)
			}
		default:
			return wrapErr(table, "update", fmt.Errorf("unknown field op %d", op.Kind))
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapErr(table, "update", err)
	}
	return nil
}

// EnsureTable implements Store. CREATE TABLE IF NOT EXISTS completes
// synchronously, which covers the block-until-ready requirement.
func (s *PostgresStore) EnsureTable(ctx context.Context, table string) error {
	if !validTableName(table) {
		return wrapErr(table, "ensure_table", fmt.Errorf("invalid table name %q", table))
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (k TEXT PRIMARY KEY, doc JSONB NOT NULL)`, table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return wrapErr(table, "ensure_table", err)
	}
	return nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
