// Package sqlstore implements domain.RecordStore on SQLite or PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/V4T54L/adru-export/internal/domain"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var errNotInitialized = errors.New("store schema not initialized")

// querier is the subset of *sql.DB and *sql.Tx the writers need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements domain.RecordStore.
type Store struct {
	db     *sql.DB
	d      dialect
	schema *domain.Schema
	logger *slog.Logger
}

// Open connects to the database named by url (sqlite://path or
// postgres://...). Initialize must be called before records are written.
func Open(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	d, dsn, err := parseDSN(url)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.name, err)
	}
	if d.name == sqliteDialect.name {
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY
		// between the ingest transaction and its reads.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", d.name, err)
	}

	return &Store{
		db:     db,
		d:      d,
		logger: logger.With("component", "sqlstore", "dialect", d.name),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns the engine name.
func (s *Store) Dialect() string {
	return s.d.name
}

// Schema returns the schema loaded by Initialize, or nil before it.
func (s *Store) Schema() *domain.Schema {
	return s.schema
}

func (s *Store) FindSourceFileByHash(ctx context.Context, hash string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT af_id FROM adru_file WHERE af_hash = ?`), hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find source file: %w", err)
	}
	return id, true, nil
}

func (s *Store) InsertSourceFile(ctx context.Context, name, hash string, createdAt time.Time) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		s.d.rebind(`INSERT INTO adru_file (af_name, af_hash, af_created_at) VALUES (?, ?, ?) RETURNING af_id`),
		name, hash, formatTime(createdAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert source file: %w", err)
	}
	return id, nil
}

const messageFileColumns = `amf_id, amf_af_id, amf_name, amf_hash, amf_message_count, amf_created_at`

func (s *Store) FindMessageFileByHash(ctx context.Context, hash string) (domain.MessageFile, bool, error) {
	row := s.db.QueryRowContext(ctx,
		s.d.rebind(`SELECT `+messageFileColumns+` FROM adru_message_file WHERE amf_hash = ?`), hash)
	mf, err := scanMessageFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MessageFile{}, false, nil
	}
	if err != nil {
		return domain.MessageFile{}, false, fmt.Errorf("find message file: %w", err)
	}
	return mf, true, nil
}

func (s *Store) InsertMessageFile(ctx context.Context, mf domain.MessageFile) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		s.d.rebind(`INSERT INTO adru_message_file (amf_af_id, amf_name, amf_hash, amf_message_count, amf_created_at)
			VALUES (?, ?, ?, ?, ?) RETURNING amf_id`),
		mf.SourceFileID, mf.Name, mf.Hash, mf.MessageCount, formatTime(mf.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert message file: %w", err)
	}
	return id, nil
}

func (s *Store) MessageFilesForSource(ctx context.Context, sourceFileID int64) ([]domain.MessageFile, error) {
	rows, err := s.db.QueryContext(ctx,
		s.d.rebind(`SELECT `+messageFileColumns+` FROM adru_message_file
			WHERE amf_af_id = ? ORDER BY amf_created_at DESC, amf_id DESC`), sourceFileID)
	if err != nil {
		return nil, fmt.Errorf("list message files: %w", err)
	}
	defer rows.Close()

	var out []domain.MessageFile
	for rows.Next() {
		mf, err := scanMessageFile(rows)
		if err != nil {
			return nil, fmt.Errorf("list message files: %w", err)
		}
		out = append(out, mf)
	}
	return out, rows.Err()
}

func (s *Store) ListSourcesWithMessageFiles(ctx context.Context) ([]domain.SourceFile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT af_id, af_name, af_hash, af_created_at FROM adru_file
		WHERE af_id IN (SELECT DISTINCT amf_af_id FROM adru_message_file)
		ORDER BY af_name, af_id`)
	if err != nil {
		return nil, fmt.Errorf("list source files: %w", err)
	}
	defer rows.Close()

	var out []domain.SourceFile
	for rows.Next() {
		var (
			sf      domain.SourceFile
			created string
		)
		if err := rows.Scan(&sf.ID, &sf.Name, &sf.Hash, &created); err != nil {
			return nil, fmt.Errorf("list source files: %w", err)
		}
		if sf.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, sf)
	}
	return out, rows.Err()
}

func (s *Store) HasAnyMessages(ctx context.Context, messageFileID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		s.d.rebind(`SELECT 1 FROM adru_messages WHERE am_amf_id = ? LIMIT 1`), messageFileID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check messages: %w", err)
	}
	return true, nil
}

func (s *Store) LookupMessageByLocalID(ctx context.Context, localID, messageFileID int64) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		s.d.rebind(`SELECT am_id FROM adru_messages WHERE am_local_id = ? AND am_amf_id = ? ORDER BY am_id LIMIT 1`),
		localID, messageFileID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup message: %w", err)
	}
	return id, true, nil
}

// FetchNamespaceRecord returns the non-null attributes of a message's
// namespace row in column order.
func (s *Store) FetchNamespaceRecord(ctx context.Context, namespace string, messageID int64) (*domain.Attributes, bool, error) {
	if s.schema == nil {
		return nil, false, errNotInitialized
	}
	t, ok := s.schema.Table(namespace)
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", domain.ErrUnknownNamespace, namespace)
	}
	if len(t.Columns) == 0 {
		return nil, false, nil
	}

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quote(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s LIMIT 1",
		strings.Join(cols, ", "), quote(t.Table()), quote(t.MessageIDColumn()), s.d.placeholder(1))

	values := make([]sql.NullString, len(t.Columns))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	err := s.db.QueryRowContext(ctx, query, messageID).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch %s record: %w", namespace, err)
	}

	attrs := domain.NewAttributes()
	for i, v := range values {
		if v.Valid {
			attrs.Set(t.Columns[i], v.String)
		}
	}
	return attrs, true, nil
}

func (s *Store) InsertMessage(ctx context.Context, localID, messageFileID int64) (int64, error) {
	return writer{q: s.db, s: s}.InsertMessage(ctx, localID, messageFileID)
}

func (s *Store) InsertNamespaceRecord(ctx context.Context, namespace string, messageID int64, attrs *domain.Attributes) error {
	return writer{q: s.db, s: s}.InsertNamespaceRecord(ctx, namespace, messageID, attrs)
}

// InTx runs fn in a transaction. Any error from fn rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(w domain.RecordWriter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	if err := fn(writer{q: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// writer implements domain.RecordWriter on a database or a transaction.
type writer struct {
	q querier
	s *Store
}

func (w writer) InsertMessage(ctx context.Context, localID, messageFileID int64) (int64, error) {
	var id int64
	err := w.q.QueryRowContext(ctx,
		w.s.d.rebind(`INSERT INTO adru_messages (am_local_id, am_amf_id) VALUES (?, ?) RETURNING am_id`),
		localID, messageFileID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert message %d: %w", localID, err)
	}
	return id, nil
}

// InsertNamespaceRecord writes one namespace row. Every attribute must be a
// column of the table; empty records are not stored.
func (w writer) InsertNamespaceRecord(ctx context.Context, namespace string, messageID int64, attrs *domain.Attributes) error {
	if attrs.Len() == 0 {
		return nil
	}
	if w.s.schema == nil {
		return errNotInitialized
	}
	if err := w.s.schema.Check(namespace, attrs); err != nil {
		return err
	}
	t, _ := w.s.schema.Table(namespace)

	cols := make([]string, 0, attrs.Len()+1)
	marks := make([]string, 0, attrs.Len()+1)
	args := make([]any, 0, attrs.Len()+1)

	cols = append(cols, quote(t.MessageIDColumn()))
	marks = append(marks, w.s.d.placeholder(1))
	args = append(args, messageID)
	attrs.Each(func(name, value string) {
		cols = append(cols, quote(name))
		args = append(args, value)
		marks = append(marks, w.s.d.placeholder(len(args)))
	})

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(t.Table()), strings.Join(cols, ", "), strings.Join(marks, ", "))
	if _, err := w.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s record: %w", namespace, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessageFile(row rowScanner) (domain.MessageFile, error) {
	var (
		mf      domain.MessageFile
		created string
	)
	if err := row.Scan(&mf.ID, &mf.SourceFileID, &mf.Name, &mf.Hash, &mf.MessageCount, &created); err != nil {
		return domain.MessageFile{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return domain.MessageFile{}, err
	}
	mf.CreatedAt = t
	return mf, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}
