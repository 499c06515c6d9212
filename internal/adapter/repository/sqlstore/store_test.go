package sqlstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/adru-export/internal/domain"
)

func testVocabulary() domain.Vocabulary {
	return domain.Vocabulary{Namespaces: []domain.Namespace{
		{Key: domain.NamespaceJRU, Marker: "JRU (", StripPrefix: true, Attributes: []string{"NID_C", "FOO", "L_CAPTION[0]"}},
		{Key: domain.NamespaceDRU, Marker: "DRU ETCS (", Attributes: []string{"GPS_VALIDITY", `QUOTED"NAME`}},
	}}
}

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(context.Background(), "sqlite://"+path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_InitializeAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "adru.db")
	s := openTestStore(t, path)

	require.NoError(t, s.Initialize(ctx, testVocabulary()))
	require.NotNil(t, s.Schema())
	assert.Equal(t, []string{domain.NamespaceJRU, domain.NamespaceDRU}, s.Schema().Namespaces())
	jru, _ := s.Schema().Table(domain.NamespaceJRU)
	assert.Equal(t, []string{"NID_C", "FOO", "L_CAPTION[0]"}, jru.Columns)

	created := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	afID, err := s.InsertSourceFile(ctx, "run_01.adru", "hash-a", created)
	require.NoError(t, err)

	id, found, err := s.FindSourceFileByHash(ctx, "hash-a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, afID, id)

	_, found, err = s.FindSourceFileByHash(ctx, "hash-unknown")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.InsertSourceFile(ctx, "copy.adru", "hash-a", created)
	assert.Error(t, err, "content hash must be unique")

	older := domain.MessageFile{SourceFileID: afID, Name: "run_01.txt", Hash: "txt-1", MessageCount: 2, CreatedAt: created}
	newer := domain.MessageFile{SourceFileID: afID, Name: "run_01.txt", Hash: "txt-2", MessageCount: 3, CreatedAt: created.Add(time.Hour)}
	olderID, err := s.InsertMessageFile(ctx, older)
	require.NoError(t, err)
	newerID, err := s.InsertMessageFile(ctx, newer)
	require.NoError(t, err)

	mf, found, err := s.FindMessageFileByHash(ctx, "txt-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, olderID, mf.ID)
	assert.Equal(t, 2, mf.MessageCount)
	assert.True(t, mf.CreatedAt.Equal(created))

	files, err := s.MessageFilesForSource(ctx, afID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, newerID, files[0].ID, "newest message file first")

	sources, err := s.ListSourcesWithMessageFiles(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "run_01.adru", sources[0].Name)

	has, err := s.HasAnyMessages(ctx, newerID)
	require.NoError(t, err)
	assert.False(t, has)

	err = s.InTx(ctx, func(w domain.RecordWriter) error {
		amID, err := w.InsertMessage(ctx, 7, newerID)
		if err != nil {
			return err
		}
		if err := w.InsertNamespaceRecord(ctx, domain.NamespaceJRU, amID, domain.AttributesOf("FOO", "1", "L_CAPTION[0]", "x")); err != nil {
			return err
		}
		return w.InsertNamespaceRecord(ctx, domain.NamespaceDRU, amID, domain.AttributesOf(`QUOTED"NAME`, "q"))
	})
	require.NoError(t, err)

	has, err = s.HasAnyMessages(ctx, newerID)
	require.NoError(t, err)
	assert.True(t, has)

	amID, found, err := s.LookupMessageByLocalID(ctx, 7, newerID)
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = s.LookupMessageByLocalID(ctx, 7, olderID)
	require.NoError(t, err)
	assert.False(t, found, "local ids are scoped to their message file")

	attrs, found, err := s.FetchNamespaceRecord(ctx, domain.NamespaceJRU, amID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"FOO", "L_CAPTION[0]"}, attrs.Keys(), "schema order, nulls left out")

	attrs, found, err = s.FetchNamespaceRecord(ctx, domain.NamespaceDRU, amID)
	require.NoError(t, err)
	require.True(t, found)
	v, _ := attrs.Get(`QUOTED"NAME`)
	assert.Equal(t, "q", v)

	_, found, err = s.FetchNamespaceRecord(ctx, domain.NamespaceDRU, amID+100)
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = s.FetchNamespaceRecord(ctx, "etcs", amID)
	assert.ErrorIs(t, err, domain.ErrUnknownNamespace)
}

func TestStore_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "adru.db"))
	require.NoError(t, s.Initialize(ctx, testVocabulary()))

	afID, err := s.InsertSourceFile(ctx, "a.adru", "a", time.Now())
	require.NoError(t, err)
	mfID, err := s.InsertMessageFile(ctx, domain.MessageFile{SourceFileID: afID, Name: "a.txt", Hash: "t", CreatedAt: time.Now()})
	require.NoError(t, err)

	err = s.InTx(ctx, func(w domain.RecordWriter) error {
		amID, err := w.InsertMessage(ctx, 1, mfID)
		if err != nil {
			return err
		}
		return w.InsertNamespaceRecord(ctx, domain.NamespaceJRU, amID, domain.AttributesOf("UNKNOWN", "1"))
	})
	require.ErrorIs(t, err, domain.ErrUnknownColumn)

	has, err := s.HasAnyMessages(ctx, mfID)
	require.NoError(t, err)
	assert.False(t, has, "the message row must be rolled back")
}

func TestStore_ReopenUsesLiveSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "adru.db")

	first := openTestStore(t, path)
	require.NoError(t, first.Initialize(ctx, testVocabulary()))
	require.NoError(t, first.Close())

	// A vocabulary that grew after creation does not alter existing tables.
	grown := testVocabulary()
	grown.Namespaces[0].Attributes = append(grown.Namespaces[0].Attributes, "NEW_ATTR")

	second := openTestStore(t, path)
	require.NoError(t, second.Initialize(ctx, grown))
	jru, _ := second.Schema().Table(domain.NamespaceJRU)
	assert.False(t, jru.Has("NEW_ATTR"))

	// A namespace with no table is a mismatch.
	extra := testVocabulary()
	extra.Namespaces = append(extra.Namespaces, domain.Namespace{Key: domain.NamespaceETCS, Marker: "ETCS (", Attributes: []string{"X"}})
	err := second.Initialize(ctx, extra)
	assert.True(t, errors.Is(err, domain.ErrSchemaMismatch), "got %v", err)
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		url     string
		dialect string
		dsn     string
		wantErr bool
	}{
		{"sqlite://data/adru.db", "sqlite", "file:data/adru.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", false},
		{"sqlite://adru.db?cache=shared", "sqlite", "file:adru.db?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", false},
		{"postgres://u:p@localhost/adru", "postgres", "postgres://u:p@localhost/adru", false},
		{"postgresql://localhost/adru", "postgres", "postgresql://localhost/adru", false},
		{"sqlite://", "", "", true},
		{"mysql://localhost", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			d, dsn, err := parseDSN(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, d.name)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", postgresDialect.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	assert.Equal(t, "x = ?", sqliteDialect.rebind("x = ?"))
	assert.Equal(t, `"a""b"`, quote(`a"b`))

	long := make([]byte, 64)
	for i := range long {
		long[i] = 'A'
	}
	assert.Error(t, postgresDialect.checkIdentifier(string(long)))
	assert.NoError(t, sqliteDialect.checkIdentifier(string(long)))

	_, err := postgresDialect.namespaceDDL(domain.NewTableSchema("jru", []string{"jru_id"}))
	assert.Error(t, err, "attribute colliding with the key column")
}
