package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/phonebook-api/internal/models"
	appErrors "github.com/noah-isme/phonebook-api/pkg/errors"
	"github.com/noah-isme/phonebook-api/pkg/export"
)

type changeLogReaderStub struct {
	entries     []models.ChangeLog
	latestCalls int
	err         error
	afterRead   func()
}

func (s *changeLogReaderStub) LatestFor(ctx context.Context, personID string) (*models.ChangeLog, error) {
	s.latestCalls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.entries) == 0 {
		return nil, sql.ErrNoRows
	}
	entry := s.entries[0]
	if s.afterRead != nil {
		s.afterRead()
	}
	return &entry, nil
}

func (s *changeLogReaderStub) AllFor(ctx context.Context, personID string) ([]models.ChangeLog, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.entries, nil
}

type memoryCache struct {
	values  map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

func historyEntries() []models.ChangeLog {
	ts := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	return []models.ChangeLog{
		{ID: "log-2", PersonID: testPersonID, Descriptions: models.Descriptions{
			"Редактирана фамилия: Petrov -> Ivanov",
			"Добавена снимка: <img src='data:image/png;base64,AAAA' alt='Updated Picture' />",
		}, ChangedBy: "Admin", ChangedAt: ts},
		{ID: "log-1", PersonID: testPersonID, Descriptions: models.Descriptions{models.ChangeDescriptionCreated}, ChangedBy: "Admin", ChangedAt: ts.Add(-time.Hour)},
	}
}

func newChangeLogServiceFixture(entries []models.ChangeLog, cacheEnabled bool) (*ChangeLogService, *changeLogReaderStub, *memoryCache) {
	reader := &changeLogReaderStub{entries: entries}
	person := samplePerson()
	people := &personRepoStub{person: &person}
	memory := newMemoryCache()
	cache := NewCacheService(memory, NewMetricsService(), time.Minute, nil, cacheEnabled)
	exporters := map[string]Exporter{
		"csv":  export.NewCSVExporter(),
		"xlsx": export.NewXLSXExporter(),
		"pdf":  export.NewPDFExporter(""),
	}
	return NewChangeLogService(reader, people, cache, exporters, nil, ChangeLogServiceConfig{CacheTTL: time.Minute}), reader, memory
}

func TestChangeLogServiceLatestUsesCache(t *testing.T) {
	svc, reader, _ := newChangeLogServiceFixture(historyEntries(), true)

	first, err := svc.Latest(context.Background(), testPersonID)
	require.NoError(t, err)
	second, err := svc.Latest(context.Background(), testPersonID)
	require.NoError(t, err)

	assert.Equal(t, "log-2", first.ID)
	assert.Equal(t, first.Descriptions, second.Descriptions)
	assert.Equal(t, 1, reader.latestCalls)

	newer := &models.ChangeLog{ID: "log-3", PersonID: testPersonID, Descriptions: models.Descriptions{"Редактиран имейл: a -> b"}, ChangedBy: "Admin"}
	svc.RecordLatest(context.Background(), newer)
	third, err := svc.Latest(context.Background(), testPersonID)
	require.NoError(t, err)
	assert.Equal(t, "log-3", third.ID)
	assert.Equal(t, 1, reader.latestCalls)
}

func TestChangeLogServiceLatestKeepsEntryRecordedDuringMiss(t *testing.T) {
	svc, reader, _ := newChangeLogServiceFixture(historyEntries(), true)
	newer := &models.ChangeLog{ID: "log-3", PersonID: testPersonID, Descriptions: models.Descriptions{"Редактиран имейл: a -> b"}, ChangedBy: "Admin"}
	reader.afterRead = func() {
		// an edit commits between the database read and the cache fill
		svc.RecordLatest(context.Background(), newer)
	}

	stale, err := svc.Latest(context.Background(), testPersonID)
	require.NoError(t, err)
	assert.Equal(t, "log-2", stale.ID)

	reader.afterRead = nil
	fresh, err := svc.Latest(context.Background(), testPersonID)
	require.NoError(t, err)
	assert.Equal(t, "log-3", fresh.ID)
	assert.Equal(t, 1, reader.latestCalls)
}

func TestChangeLogServiceRejectsMalformedPersonID(t *testing.T) {
	svc, reader, _ := newChangeLogServiceFixture(historyEntries(), true)

	for _, id := range []string{"p-1", "", "abc'; DROP TABLE people; --"} {
		_, err := svc.Latest(context.Background(), id)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code, id)
		_, err = svc.History(context.Background(), id)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code, id)
		_, err = svc.Export(context.Background(), id, "csv")
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code, id)
	}
	assert.Zero(t, reader.latestCalls)
}

func TestChangeLogServiceLatestWithoutCache(t *testing.T) {
	svc, reader, memory := newChangeLogServiceFixture(historyEntries(), false)

	for i := 0; i < 2; i++ {
		_, err := svc.Latest(context.Background(), testPersonID)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, reader.latestCalls)
	assert.Empty(t, memory.values)
}

func TestChangeLogServiceLatestNotFound(t *testing.T) {
	svc, _, _ := newChangeLogServiceFixture(nil, true)

	_, err := svc.Latest(context.Background(), testPersonID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestChangeLogServiceHistory(t *testing.T) {
	svc, reader, _ := newChangeLogServiceFixture(historyEntries(), false)

	entries, err := svc.History(context.Background(), testPersonID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "log-2", entries[0].ID)

	_, err = svc.History(context.Background(), "8d1e4f6a-0b2c-4d3e-8f9a-1b2c3d4e5f60")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	reader.err = errors.New("db down")
	_, err = svc.History(context.Background(), testPersonID)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestChangeLogServiceExportCSV(t *testing.T) {
	svc, _, _ := newChangeLogServiceFixture(historyEntries(), false)

	result, err := svc.Export(context.Background(), testPersonID, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "changes-"+testPersonID+".csv", result.FileName)
	assert.Equal(t, "text/csv; charset=utf-8", result.ContentType)

	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(result.Body, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Дата", "Редактирал", "Промени"}, records[0])
	assert.Equal(t, "01.03.2024 10:00", records[1][0])
	assert.Equal(t, "Редактирана фамилия: Petrov -> Ivanov\nДобавена снимка: [снимка]", records[1][2])
	assert.NotContains(t, string(result.Body), "base64")
}

func TestChangeLogServiceExportFormats(t *testing.T) {
	svc, _, _ := newChangeLogServiceFixture(historyEntries(), false)

	xlsx, err := svc.Export(context.Background(), testPersonID, "xlsx")
	require.NoError(t, err)
	assert.Equal(t, "changes-"+testPersonID+".xlsx", xlsx.FileName)
	assert.NotEmpty(t, xlsx.Body)

	pdf, err := svc.Export(context.Background(), testPersonID, "pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Body, []byte("%PDF-")))

	_, err = svc.Export(context.Background(), testPersonID, "docx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
