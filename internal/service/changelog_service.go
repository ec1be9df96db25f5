package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/phonebook-api/internal/models"
	appErrors "github.com/noah-isme/phonebook-api/pkg/errors"
	"github.com/noah-isme/phonebook-api/pkg/export"
)

const (
	exportHeaderChangedAt    = "Дата"
	exportHeaderChangedBy    = "Редактирал"
	exportHeaderDescriptions = "Промени"
	exportPhotoPlaceholder   = "[снимка]"
	exportTimeLayout         = "02.01.2006 15:04"
)

var embeddedImagePattern = regexp.MustCompile(`<img [^>]*/?>`)

type changeLogReader interface {
	LatestFor(ctx context.Context, personID string) (*models.ChangeLog, error)
	AllFor(ctx context.Context, personID string) ([]models.ChangeLog, error)
}

type personReader interface {
	FindByID(ctx context.Context, id string) (*models.Person, error)
}

// Exporter renders a dataset into a downloadable document.
type Exporter interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportResult is a rendered history document.
type ExportResult struct {
	FileName    string
	ContentType string
	Body        []byte
}

// ChangeLogServiceConfig governs caching of the latest entry.
type ChangeLogServiceConfig struct {
	CacheTTL time.Duration
}

// ChangeLogService answers change history queries.
type ChangeLogService struct {
	entries   changeLogReader
	people    personReader
	cache     *CacheService
	exporters map[string]Exporter
	logger    *zap.Logger
	cfg       ChangeLogServiceConfig
}

// NewChangeLogService constructs a ChangeLogService. exporters is keyed by the
// format name accepted by Export.
func NewChangeLogService(entries changeLogReader, people personReader, cache *CacheService, exporters map[string]Exporter, logger *zap.Logger, cfg ChangeLogServiceConfig) *ChangeLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exporters == nil {
		exporters = map[string]Exporter{}
	}
	return &ChangeLogService{entries: entries, people: people, cache: cache, exporters: exporters, logger: logger, cfg: cfg}
}

func latestCacheKey(personID string) string {
	return "changelog:latest:" + personID
}

// Latest returns the newest entry for a person. A cache miss is filled only if
// no writer has published a newer entry in the meantime.
func (s *ChangeLogService) Latest(ctx context.Context, personID string) (*models.ChangeLog, error) {
	if err := checkPersonID(personID); err != nil {
		return nil, err
	}
	var cached models.ChangeLog
	if hit, err := s.cache.Get(ctx, latestCacheKey(personID), &cached); err == nil && hit {
		return &cached, nil
	}

	entry, err := s.entries.LatestFor(ctx, personID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no changes recorded for person")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest change")
	}

	_, _ = s.cache.SetIfAbsent(ctx, latestCacheKey(personID), entry, s.cfg.CacheTTL)
	return entry, nil
}

// History returns every entry for an existing person, newest first.
func (s *ChangeLogService) History(ctx context.Context, personID string) ([]models.ChangeLog, error) {
	if _, err := s.person(ctx, personID); err != nil {
		return nil, err
	}
	entries, err := s.entries.AllFor(ctx, personID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change history")
	}
	return entries, nil
}

// Export renders the history of a person in the requested format.
func (s *ChangeLogService) Export(ctx context.Context, personID, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	person, err := s.person(ctx, personID)
	if err != nil {
		return nil, err
	}
	entries, err := s.entries.AllFor(ctx, personID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change history")
	}

	title := fmt.Sprintf("Промени: %s %s", person.FirstName, person.LastName)
	body, err := exporter.Render(historyDataset(entries), title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("change history exported", zap.String("person_id", personID), zap.String("format", format), zap.Int("entries", len(entries)))
	return &ExportResult{
		FileName:    fmt.Sprintf("changes-%s.%s", personID, exporter.Extension()),
		ContentType: exporter.ContentType(),
		Body:        body,
	}, nil
}

// RecordLatest stores a freshly committed entry as the cached latest change,
// replacing whatever was cached. Failures drop the key and are logged only.
func (s *ChangeLogService) RecordLatest(ctx context.Context, entry *models.ChangeLog) {
	if entry == nil {
		return
	}
	key := latestCacheKey(entry.PersonID)
	if err := s.cache.Set(ctx, key, entry, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("latest change cache not updated", zap.String("person_id", entry.PersonID), zap.Error(err))
		_ = s.cache.Invalidate(ctx, key)
	}
}

func (s *ChangeLogService) person(ctx context.Context, personID string) (*models.Person, error) {
	if err := checkPersonID(personID); err != nil {
		return nil, err
	}
	person, err := s.people.FindByID(ctx, personID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	return person, nil
}

func historyDataset(entries []models.ChangeLog) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		lines := make([]string, 0, len(entry.Descriptions))
		for _, d := range entry.Descriptions {
			lines = append(lines, embeddedImagePattern.ReplaceAllString(d, exportPhotoPlaceholder))
		}
		rows = append(rows, map[string]string{
			exportHeaderChangedAt:    entry.ChangedAt.Format(exportTimeLayout),
			exportHeaderChangedBy:    entry.ChangedBy,
			exportHeaderDescriptions: strings.Join(lines, "\n"),
		})
	}
	return export.Dataset{
		Headers: []string{exportHeaderChangedAt, exportHeaderChangedBy, exportHeaderDescriptions},
		Rows:    rows,
		Widths:  []float64{1, 1, 3},
	}
}
