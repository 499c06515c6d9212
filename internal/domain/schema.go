package domain

import "fmt"

const namespaceTablePrefix = "adru_message_"

// TableSchema is the fixed column set of one namespace table.
type TableSchema struct {
	Namespace string
	Columns   []string
	columns   map[string]struct{}
}

// NewTableSchema builds the descriptor of a namespace table.
func NewTableSchema(namespace string, columns []string) TableSchema {
	t := TableSchema{
		Namespace: namespace,
		Columns:   append([]string(nil), columns...),
		columns:   make(map[string]struct{}, len(columns)),
	}
	for _, c := range columns {
		t.columns[c] = struct{}{}
	}
	return t
}

// Table is the SQL table name.
func (t TableSchema) Table() string { return namespaceTablePrefix + t.Namespace }

// IDColumn is the primary key column.
func (t TableSchema) IDColumn() string { return t.Namespace + "_id" }

// MessageIDColumn references adru_messages.
func (t TableSchema) MessageIDColumn() string { return t.Namespace + "_am_id" }

// Has reports whether the column belongs to the table.
func (t TableSchema) Has(column string) bool {
	_, ok := t.columns[column]
	return ok
}

// Schema is the descriptor of every namespace table, built once when the
// store is initialized and reused for all inserts and reads.
type Schema struct {
	tables []TableSchema
	index  map[string]int
}

// NewSchema builds a schema from table descriptors, preserving their order.
func NewSchema(tables ...TableSchema) *Schema {
	s := &Schema{index: make(map[string]int, len(tables))}
	for _, t := range tables {
		s.index[t.Namespace] = len(s.tables)
		s.tables = append(s.tables, t)
	}
	return s
}

// SchemaFromVocabulary derives the schema a fresh store is created with.
func SchemaFromVocabulary(v Vocabulary) *Schema {
	tables := make([]TableSchema, 0, len(v.Namespaces))
	for _, ns := range v.Namespaces {
		tables = append(tables, NewTableSchema(ns.Key, ns.Attributes))
	}
	return NewSchema(tables...)
}

// Namespaces returns the namespace keys in table order.
func (s *Schema) Namespaces() []string {
	keys := make([]string, len(s.tables))
	for i, t := range s.tables {
		keys[i] = t.Namespace
	}
	return keys
}

// Tables returns the table descriptors in order.
func (s *Schema) Tables() []TableSchema {
	return append([]TableSchema(nil), s.tables...)
}

// Table returns the descriptor of a namespace table.
func (s *Schema) Table(namespace string) (TableSchema, bool) {
	i, ok := s.index[namespace]
	if !ok {
		return TableSchema{}, false
	}
	return s.tables[i], true
}

// Attributes returns the column sets as an AttributeSet. This is the master
// vocabulary drift is measured against.
func (s *Schema) Attributes() AttributeSet {
	set := NewAttributeSet()
	for _, t := range s.tables {
		set.Ensure(t.Namespace)
		for _, c := range t.Columns {
			set.Add(t.Namespace, c)
		}
	}
	return set
}

// Check verifies that every attribute name is a column of the namespace table.
func (s *Schema) Check(namespace string, attrs *Attributes) error {
	t, ok := s.Table(namespace)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNamespace, namespace)
	}
	var unknown []string
	attrs.Each(func(name, _ string) {
		if !t.Has(name) {
			unknown = append(unknown, name)
		}
	})
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s %q", ErrUnknownColumn, namespace, unknown)
	}
	return nil
}
