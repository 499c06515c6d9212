package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/V4T54L/adru-export/internal/domain"
)

// StoredMessage is a message row recorded by MockRecordStore.
type StoredMessage struct {
	ID            int64
	LocalID       int64
	MessageFileID int64
}

// StoredRecord is a namespace row recorded by MockRecordStore.
type StoredRecord struct {
	Namespace string
	MessageID int64
	Attrs     *domain.Attributes
}

// MockRecordStore is an in-memory implementation of domain.RecordStore for testing.
type MockRecordStore struct {
	mu sync.Mutex

	SchemaValue  *domain.Schema
	SourceFiles  []domain.SourceFile
	MessageFiles []domain.MessageFile
	Messages     []StoredMessage
	Records      []StoredRecord

	// Commits and Rollbacks count InTx outcomes.
	Commits   int
	Rollbacks int

	FindErr          error
	InsertFileErr    error
	InsertMessageErr error
	InsertRecordErr  error
	FetchErr         error
	TxErr            error

	nextID int64
}

// NewMockRecordStore returns an empty store using schema.
func NewMockRecordStore(schema *domain.Schema) *MockRecordStore {
	return &MockRecordStore{SchemaValue: schema}
}

func (m *MockRecordStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MockRecordStore) Schema() *domain.Schema {
	return m.SchemaValue
}

func (m *MockRecordStore) FindSourceFileByHash(ctx context.Context, hash string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return 0, false, m.FindErr
	}
	for _, sf := range m.SourceFiles {
		if sf.Hash == hash {
			return sf.ID, true, nil
		}
	}
	return 0, false, nil
}

func (m *MockRecordStore) InsertSourceFile(ctx context.Context, name, hash string, createdAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertFileErr != nil {
		return 0, m.InsertFileErr
	}
	sf := domain.SourceFile{ID: m.id(), Name: name, Hash: hash, CreatedAt: createdAt}
	m.SourceFiles = append(m.SourceFiles, sf)
	return sf.ID, nil
}

func (m *MockRecordStore) FindMessageFileByHash(ctx context.Context, hash string) (domain.MessageFile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return domain.MessageFile{}, false, m.FindErr
	}
	for _, mf := range m.MessageFiles {
		if mf.Hash == hash {
			return mf, true, nil
		}
	}
	return domain.MessageFile{}, false, nil
}

func (m *MockRecordStore) InsertMessageFile(ctx context.Context, mf domain.MessageFile) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertFileErr != nil {
		return 0, m.InsertFileErr
	}
	mf.ID = m.id()
	m.MessageFiles = append(m.MessageFiles, mf)
	return mf.ID, nil
}

func (m *MockRecordStore) MessageFilesForSource(ctx context.Context, sourceFileID int64) ([]domain.MessageFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	var out []domain.MessageFile
	for _, mf := range m.MessageFiles {
		if mf.SourceFileID == sourceFileID {
			out = append(out, mf)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MockRecordStore) ListSourcesWithMessageFiles(ctx context.Context) ([]domain.SourceFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	var out []domain.SourceFile
	for _, sf := range m.SourceFiles {
		for _, mf := range m.MessageFiles {
			if mf.SourceFileID == sf.ID {
				out = append(out, sf)
				break
			}
		}
	}
	return out, nil
}

func (m *MockRecordStore) HasAnyMessages(ctx context.Context, messageFileID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return false, m.FindErr
	}
	for _, msg := range m.Messages {
		if msg.MessageFileID == messageFileID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRecordStore) InsertMessage(ctx context.Context, localID, messageFileID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertMessageErr != nil {
		return 0, m.InsertMessageErr
	}
	msg := StoredMessage{ID: m.id(), LocalID: localID, MessageFileID: messageFileID}
	m.Messages = append(m.Messages, msg)
	return msg.ID, nil
}

func (m *MockRecordStore) InsertNamespaceRecord(ctx context.Context, namespace string, messageID int64, attrs *domain.Attributes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertRecordErr != nil {
		return m.InsertRecordErr
	}
	if attrs.Len() == 0 {
		return nil
	}
	if m.SchemaValue != nil {
		if err := m.SchemaValue.Check(namespace, attrs); err != nil {
			return err
		}
	}
	m.Records = append(m.Records, StoredRecord{Namespace: namespace, MessageID: messageID, Attrs: attrs})
	return nil
}

func (m *MockRecordStore) LookupMessageByLocalID(ctx context.Context, localID, messageFileID int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return 0, false, m.FetchErr
	}
	for _, msg := range m.Messages {
		if msg.LocalID == localID && msg.MessageFileID == messageFileID {
			return msg.ID, true, nil
		}
	}
	return 0, false, nil
}

func (m *MockRecordStore) FetchNamespaceRecord(ctx context.Context, namespace string, messageID int64) (*domain.Attributes, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, false, m.FetchErr
	}
	for _, rec := range m.Records {
		if rec.Namespace == namespace && rec.MessageID == messageID {
			return rec.Attrs, true, nil
		}
	}
	return nil, false, nil
}

// InTx runs fn against the store itself. Rows written by a failed fn are
// discarded to mimic a rollback.
func (m *MockRecordStore) InTx(ctx context.Context, fn func(w domain.RecordWriter) error) error {
	m.mu.Lock()
	if m.TxErr != nil {
		m.mu.Unlock()
		return m.TxErr
	}
	messages, records := len(m.Messages), len(m.Records)
	m.mu.Unlock()

	err := fn(m)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.Messages = m.Messages[:messages]
		m.Records = m.Records[:records]
		m.Rollbacks++
		return err
	}
	m.Commits++
	return nil
}

// MockReportRepository is a mock implementation of domain.ReportRepository for testing.
type MockReportRepository struct {
	mu         sync.Mutex
	Published  []domain.IngestReport
	PublishErr error
}

func (m *MockReportRepository) Publish(ctx context.Context, report domain.IngestReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, report)
	return nil
}

// Reports returns a copy of the published reports.
func (m *MockReportRepository) Reports() []domain.IngestReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.IngestReport(nil), m.Published...)
}
