package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"portfolio.admin/internal/models"
)

var _ Store = (*SQLStore)(nil)

// Dialect captures what differs between the SQL backends.
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat
	// LockSuffix is appended to the read half of an update.
	LockSuffix string
	// encodeTime converts a timestamp into a driver value.
	encodeTime func(time.Time) any
}

var (
	Postgres = Dialect{
		Name:        "postgres",
		Placeholder: sq.Dollar,
		LockSuffix:  "FOR UPDATE",
		encodeTime:  func(t time.Time) any { return t },
	}
	SQLite = Dialect{
		Name:        "sqlite",
		Placeholder: sq.Question,
		encodeTime:  func(t time.Time) any { return t.UTC().Format(sqliteTimeFormat) },
	}
)

// sqliteTimeFormat is fixed width so text ordering matches time ordering.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// recordColumns lists columns returned by record SELECT queries.
var recordColumns = []string{"id", "data", "created_at", "updated_at"}

// SQLStore keeps each collection in its own table with a JSON payload column.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	qb      sq.StatementBuilderType
	tables  map[string]bool
	logger  *slog.Logger
	now     func() time.Time
}

// NewSQLStore wraps an open database. Table names are interpolated into SQL,
// so only the given allow-list is accepted.
func NewSQLStore(db *sql.DB, dialect Dialect, tables []string, logger *slog.Logger) *SQLStore {
	allowed := make(map[string]bool, len(tables))
	for _, t := range tables {
		allowed[t] = true
	}
	return &SQLStore{
		db:      db,
		dialect: dialect,
		qb:      sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
		tables:  allowed,
		logger:  logger.With("component", "store", "dialect", dialect.Name),
		now:     time.Now,
	}
}

func (s *SQLStore) checkTable(table string) error {
	if !s.tables[table] {
		return ErrUnknownTable
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, table string) ([]*models.Record, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	s.logger.Debug("sql", "op", "select", "table", table)

	query, args, err := s.qb.Select(recordColumns...).
		From(table).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", table, err)
	}
	return out, nil
}

func (s *SQLStore) Get(ctx context.Context, table, id string) (*models.Record, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	s.logger.Debug("sql", "op", "select", "table", table, "id", id)

	query, args, err := s.qb.Select(recordColumns...).
		From(table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SQLStore) Create(ctx context.Context, table string, data map[string]any) (*models.Record, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &models.Record{
		ID:        uuid.NewString(),
		Data:      models.StripReserved(data),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.logger.Debug("sql", "op", "insert", "table", table, "id", rec.ID)

	payload, err := json.Marshal(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}

	query, args, err := s.qb.Insert(table).
		Columns(recordColumns...).
		Values(rec.ID, string(payload), s.dialect.encodeTime(now), s.dialect.encodeTime(now)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", table, err)
	}
	return rec, nil
}

func (s *SQLStore) Update(ctx context.Context, table, id string, data map[string]any) (*models.Record, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	s.logger.Debug("sql", "op", "update", "table", table, "id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sel := s.qb.Select(recordColumns...).From(table).Where(sq.Eq{"id": id})
	if s.dialect.LockSuffix != "" {
		sel = sel.Suffix(s.dialect.LockSuffix)
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rec, err := scanRecord(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	for k, v := range models.StripReserved(data) {
		rec.Data[k] = v
	}
	rec.UpdatedAt = s.now().UTC()

	payload, err := json.Marshal(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}

	query, args, err = s.qb.Update(table).
		Set("data", string(payload)).
		Set("updated_at", s.dialect.encodeTime(rec.UpdatedAt)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("updating %s: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) Delete(ctx context.Context, table, id string) error {
	if err := s.checkTable(table); err != nil {
		return err
	}
	s.logger.Debug("sql", "op", "delete", "table", table, "id", id)

	query, args, err := s.qb.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		rec                  models.Record
		payload              []byte
		createdAt, updatedAt any
	)
	if err := row.Scan(&rec.ID, &payload, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	rec.Data = make(map[string]any)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.Data); err != nil {
			return nil, fmt.Errorf("unmarshal data: %w", err)
		}
	}

	var err error
	if rec.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if rec.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}
	return &rec, nil
}

func decodeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(t))
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unexpected time type %T", v)
	}
}
