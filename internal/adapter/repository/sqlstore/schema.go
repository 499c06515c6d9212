package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/V4T54L/adru-export/internal/domain"
)

const (
	sourceFileTable  = "adru_file"
	messageFileTable = "adru_message_file"
	messageTable     = "adru_messages"
)

// fixedDDL creates the identity and message tables.
func (d dialect) fixedDDL() []string {
	return []string{
		`CREATE TABLE ` + sourceFileTable + ` (
			af_id ` + d.primaryKey + `,
			af_name TEXT NOT NULL,
			af_hash TEXT NOT NULL UNIQUE,
			af_created_at TEXT NOT NULL
		)`,
		`CREATE TABLE ` + messageFileTable + ` (
			amf_id ` + d.primaryKey + `,
			amf_af_id ` + d.foreignKey + ` NOT NULL REFERENCES ` + sourceFileTable + `(af_id),
			amf_name TEXT NOT NULL,
			amf_hash TEXT NOT NULL UNIQUE,
			amf_message_count INTEGER NOT NULL,
			amf_created_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_amf_af_id ON ` + messageFileTable + ` (amf_af_id)`,
		`CREATE TABLE ` + messageTable + ` (
			am_id ` + d.primaryKey + `,
			am_local_id ` + d.foreignKey + ` NOT NULL,
			am_amf_id ` + d.foreignKey + ` NOT NULL REFERENCES ` + messageFileTable + `(amf_id)
		)`,
		`CREATE INDEX idx_am_amf_local ON ` + messageTable + ` (am_amf_id, am_local_id)`,
	}
}

// namespaceDDL creates the table of one namespace with one TEXT column per attribute.
func (d dialect) namespaceDDL(t domain.TableSchema) ([]string, error) {
	idx := "idx_" + t.MessageIDColumn()
	for _, name := range []string{t.Table(), idx} {
		if err := d.checkIdentifier(name); err != nil {
			return nil, fmt.Errorf("namespace %s: %w", t.Namespace, err)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n\t%s %s,\n\t%s %s NOT NULL REFERENCES %s(am_id)",
		quote(t.Table()),
		quote(t.IDColumn()), d.primaryKey,
		quote(t.MessageIDColumn()), d.foreignKey, messageTable)
	for _, col := range t.Columns {
		if err := d.checkIdentifier(col); err != nil {
			return nil, fmt.Errorf("namespace %s: %w", t.Namespace, err)
		}
		if col == t.IDColumn() || col == t.MessageIDColumn() {
			return nil, fmt.Errorf("namespace %s: attribute %q collides with a key column", t.Namespace, col)
		}
		fmt.Fprintf(&b, ",\n\t%s TEXT", quote(col))
	}
	b.WriteString("\n)")

	return []string{
		b.String(),
		fmt.Sprintf("CREATE INDEX %s ON %s (%s)", quote(idx), quote(t.Table()), quote(t.MessageIDColumn())),
	}, nil
}

// Initialize creates the tables from vocab when the database is empty, then
// loads the column sets of the namespace tables from the live database. The
// loaded schema, not vocab, is the contract afterwards.
func (s *Store) Initialize(ctx context.Context, vocab domain.Vocabulary) error {
	exists, err := s.tableExists(ctx, sourceFileTable)
	if err != nil {
		return err
	}

	if !exists {
		if err := s.create(ctx, domain.SchemaFromVocabulary(vocab)); err != nil {
			return err
		}
		s.logger.Info("Created database schema", "namespaces", len(vocab.Namespaces))
	}

	tables := make([]domain.TableSchema, 0, len(vocab.Namespaces))
	for _, key := range vocab.Keys() {
		t, err := s.loadTable(ctx, key)
		if err != nil {
			return err
		}
		tables = append(tables, t)
	}
	s.schema = domain.NewSchema(tables...)
	return nil
}

func (s *Store) create(ctx context.Context, schema *domain.Schema) error {
	stmts := s.d.fixedDDL()
	for _, t := range schema.Tables() {
		ddl, err := s.d.namespaceDDL(t)
		if err != nil {
			return err
		}
		stmts = append(stmts, ddl...)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema creation: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema creation: %w", err)
	}
	return nil
}

func (s *Store) tableExists(ctx context.Context, table string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.d.rebind(s.d.tableExists), table).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return true, nil
}

// loadTable introspects a namespace table, leaving out its key columns.
func (s *Store) loadTable(ctx context.Context, namespace string) (domain.TableSchema, error) {
	probe := domain.NewTableSchema(namespace, nil)

	rows, err := s.db.QueryContext(ctx, s.d.rebind(s.d.tableColumns), probe.Table())
	if err != nil {
		return domain.TableSchema{}, fmt.Errorf("introspect %s: %w", probe.Table(), err)
	}
	defer rows.Close()

	var columns []string
	found := false
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return domain.TableSchema{}, fmt.Errorf("introspect %s: %w", probe.Table(), err)
		}
		found = true
		if name == probe.IDColumn() || name == probe.MessageIDColumn() {
			continue
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return domain.TableSchema{}, fmt.Errorf("introspect %s: %w", probe.Table(), err)
	}
	if !found {
		return domain.TableSchema{}, fmt.Errorf("%w: table %s is missing", domain.ErrSchemaMismatch, probe.Table())
	}
	return domain.NewTableSchema(namespace, columns), nil
}
