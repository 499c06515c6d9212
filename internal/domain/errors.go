package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaDrift means a decoded artifact carries attributes the fixed
	// schema has no column for. The run must stop until the schema is migrated.
	ErrSchemaDrift = errors.New("schema drift")

	// ErrMissingArtifact means no decoded text artifact could be found for a
	// source file.
	ErrMissingArtifact = errors.New("decoded text artifact not found")

	// ErrNotIngested means a source file has no message file with stored messages.
	ErrNotIngested = errors.New("source file has no ingested message file")

	// ErrUnknownColumn means a record holds an attribute outside its table's columns.
	ErrUnknownColumn = errors.New("attribute outside the fixed column set")

	// ErrUnknownNamespace means a namespace key has no table in the schema.
	ErrUnknownNamespace = errors.New("unknown namespace")

	// ErrSchemaMismatch means the live database does not match the vocabulary.
	ErrSchemaMismatch = errors.New("database schema does not match vocabulary")
)

// NamespaceDrift lists the attributes of one namespace missing from the schema.
type NamespaceDrift struct {
	Namespace  string   `json:"namespace"`
	Attributes []string `json:"attributes"`
}

// Drift is the outcome of reconciling observed attributes against the schema.
// Only namespaces with at least one unknown attribute are listed.
type Drift []NamespaceDrift

// Empty reports whether no namespace drifted.
func (d Drift) Empty() bool {
	return len(d) == 0
}

// Map returns the drift keyed by namespace.
func (d Drift) Map() map[string][]string {
	if d.Empty() {
		return nil
	}
	m := make(map[string][]string, len(d))
	for _, nd := range d {
		m[nd.Namespace] = nd.Attributes
	}
	return m
}

// Err returns a *DriftError, or nil when the drift is empty.
func (d Drift) Err() error {
	if d.Empty() {
		return nil
	}
	return &DriftError{Drift: d}
}

// DriftError carries the full list of offending attributes per namespace.
type DriftError struct {
	Drift Drift
}

func (e *DriftError) Error() string {
	var b strings.Builder
	b.WriteString(ErrSchemaDrift.Error())
	for i, nd := range e.Drift {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s %q", nd.Namespace, nd.Attributes)
	}
	return b.String()
}

func (e *DriftError) Unwrap() error {
	return ErrSchemaDrift
}
