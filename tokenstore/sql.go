package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// DefaultTable is the credentials table used when none is configured
const DefaultTable = "auth_tokens"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLStore keeps tokens in a two-column table keyed by token_key.
// Queries use PostgreSQL placeholders and upsert syntax.
type SQLStore struct {
	db    *sql.DB
	table string
	sb    sq.StatementBuilderType
	now   func() time.Time
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open database handle. table must be a plain or
// schema-qualified identifier.
func NewSQLStore(db *sql.DB, table string) (*SQLStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid token table name %q", table)
	}
	return &SQLStore{
		db:    db,
		table: table,
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:   time.Now,
	}, nil
}

// EnsureSchema creates the credentials table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	token_key VARCHAR(64) PRIMARY KEY,
	token_value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.table, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	query, args, err := s.sb.Select("token_value").
		From(s.table).
		Where(sq.Eq{"token_key": key}).
		ToSql()
	if err != nil {
		return "", err
	}

	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query %s: %w", s.table, err)
	}
	return value, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	query, args, err := s.sb.Insert(s.table).
		Columns("token_key", "token_value", "updated_at").
		Values(key, value, s.now().UTC()).
		Suffix("ON CONFLICT (token_key) DO UPDATE SET token_value = EXCLUDED.token_value, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", s.table, err)
	}
	return nil
}

func (s *SQLStore) Remove(ctx context.Context, key string) error {
	query, args, err := s.sb.Delete(s.table).
		Where(sq.Eq{"token_key": key}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", s.table, err)
	}
	return nil
}
