package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/phonebook-api/internal/models"
)

const changeLogColumns = `seq, id, person_id, descriptions, changed_by, changed_at`

// ChangeLogRepository persists append-only change history entries.
type ChangeLogRepository struct {
	db *sqlx.DB
}

// NewChangeLogRepository constructs a ChangeLogRepository.
func NewChangeLogRepository(db *sqlx.DB) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

func (r *ChangeLogRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Append inserts a new entry. The store assigns Seq; ID and ChangedAt are
// filled in when empty.
func (r *ChangeLogRepository) Append(ctx context.Context, exec sqlx.ExtContext, entry *models.ChangeLog) error {
	if entry == nil {
		return fmt.Errorf("change log payload is nil")
	}
	if entry.PersonID == "" {
		return fmt.Errorf("person_id is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	if entry.Descriptions == nil {
		entry.Descriptions = models.Descriptions{}
	}

	const query = `
INSERT INTO change_logs (id, person_id, descriptions, changed_by, changed_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING seq`
	row := r.exec(exec).QueryRowxContext(ctx, query, entry.ID, entry.PersonID, entry.Descriptions, entry.ChangedBy, entry.ChangedAt)
	if err := row.Scan(&entry.Seq); err != nil {
		return fmt.Errorf("insert change log: %w", err)
	}
	return nil
}

// LatestFor returns the most recent entry for a person or sql.ErrNoRows.
func (r *ChangeLogRepository) LatestFor(ctx context.Context, personID string) (*models.ChangeLog, error) {
	query := `SELECT ` + changeLogColumns + ` FROM change_logs WHERE person_id = $1 ORDER BY changed_at DESC, seq DESC LIMIT 1`
	var entry models.ChangeLog
	if err := r.db.GetContext(ctx, &entry, query, personID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// AllFor returns every entry for a person, newest first.
func (r *ChangeLogRepository) AllFor(ctx context.Context, personID string) ([]models.ChangeLog, error) {
	query := `SELECT ` + changeLogColumns + ` FROM change_logs WHERE person_id = $1 ORDER BY changed_at DESC, seq DESC`
	entries := make([]models.ChangeLog, 0)
	if err := r.db.SelectContext(ctx, &entries, query, personID); err != nil {
		return nil, fmt.Errorf("list change logs: %w", err)
	}
	return entries, nil
}
