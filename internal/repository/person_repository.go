package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/phonebook-api/internal/models"
)

const personColumns = `p.id, p.first_name, p.middle_name, p.last_name, p.email, p.personal_phone, p.business_phone,
        p.birthdate, p.hire_date, p.leave_date, p.role_id, r.name AS role_name, p.department_id, d.name AS department_name,
        p.subject_group, p.subject, p.is_deleted, p.comment_on_deletion, p.created_at, p.updated_at`

const personJoins = `FROM people p JOIN roles r ON r.id = p.role_id JOIN departments d ON d.id = p.department_id`

// PersonRepository manages persistence for directory records.
type PersonRepository struct {
	db *sqlx.DB
}

// NewPersonRepository constructs a PersonRepository.
func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

func (r *PersonRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns people matching the filter without photo payloads. Every
// whitespace separated search token must match at least one text column.
func (r *PersonRepository) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error) {
	args := []interface{}{filter.Deleted}
	conditions := []string{"p.is_deleted = $1"}

	for _, token := range strings.Fields(strings.ToLower(filter.Search)) {
		args = append(args, "%"+token+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(p.first_name) LIKE $%d OR LOWER(COALESCE(p.middle_name, '')) LIKE $%d OR LOWER(p.last_name) LIKE $%d OR LOWER(p.email) LIKE $%d OR LOWER(r.name) LIKE $%d OR LOWER(d.name) LIKE $%d OR LOWER(COALESCE(p.subject, '')) LIKE $%d)",
			n, n, n, n, n, n, n))
	}

	base := fmt.Sprintf("%s WHERE %s", personJoins, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s,
        (SELECT MAX(cl.changed_at) FROM change_logs cl WHERE cl.person_id = p.id) AS last_changed_at
        %s ORDER BY p.first_name ASC, p.last_name ASC LIMIT %d OFFSET %d`, personColumns, base, size, offset)

	people := make([]models.Person, 0)
	if err := r.db.SelectContext(ctx, &people, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list people: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count people: %w", err)
	}
	return people, total, nil
}

// FindByID loads a person with relation names, photo and last change time.
func (r *PersonRepository) FindByID(ctx context.Context, id string) (*models.Person, error) {
	query := fmt.Sprintf(`SELECT %s, p.photo,
        (SELECT MAX(cl.changed_at) FROM change_logs cl WHERE cl.person_id = p.id) AS last_changed_at
        %s WHERE p.id = $1`, personColumns, personJoins)
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, id); err != nil {
		return nil, err
	}
	return &person, nil
}

// LockWithRelations loads the current snapshot and holds a row lock on the
// person until exec's transaction ends. Concurrent writers for the same person
// are serialised by this lock.
func (r *PersonRepository) LockWithRelations(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Person, error) {
	query := fmt.Sprintf(`SELECT %s, p.photo %s WHERE p.id = $1 FOR UPDATE OF p`, personColumns, personJoins)
	var person models.Person
	if err := sqlx.GetContext(ctx, r.exec(exec), &person, query, id); err != nil {
		return nil, err
	}
	return &person, nil
}

// ExistsByEmail reports whether another person already uses the address.
func (r *PersonRepository) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM people WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check email: %w", err)
	}
	return true, nil
}

// Create inserts a new person.
func (r *PersonRepository) Create(ctx context.Context, exec sqlx.ExtContext, person *models.Person) error {
	if person == nil {
		return fmt.Errorf("person payload is nil")
	}
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if person.CreatedAt.IsZero() {
		person.CreatedAt = now
	}
	person.UpdatedAt = now

	const query = `INSERT INTO people (id, first_name, middle_name, last_name, email, personal_phone, business_phone, birthdate,
        hire_date, photo, role_id, department_id, subject_group, subject, is_deleted, created_at, updated_at)
        VALUES (:id, :first_name, :middle_name, :last_name, :email, :personal_phone, :business_phone, :birthdate,
        :hire_date, :photo, :role_id, :department_id, :subject_group, :subject, FALSE, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, person); err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// Update overwrites the editable fields of an existing person.
func (r *PersonRepository) Update(ctx context.Context, exec sqlx.ExtContext, person *models.Person) error {
	if person == nil {
		return fmt.Errorf("person payload is nil")
	}
	person.UpdatedAt = time.Now().UTC()

	const query = `UPDATE people SET first_name = :first_name, middle_name = :middle_name, last_name = :last_name, email = :email,
        personal_phone = :personal_phone, business_phone = :business_phone, birthdate = :birthdate, hire_date = :hire_date,
        photo = :photo, role_id = :role_id, department_id = :department_id, subject_group = :subject_group, subject = :subject,
        updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, person)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return requireAffected(result, "update person")
}

// SoftDelete marks a person as left with an optional comment.
func (r *PersonRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, leaveDate time.Time, comment *string) error {
	const query = `UPDATE people SET is_deleted = TRUE, leave_date = $2, comment_on_deletion = $3, updated_at = $4 WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id, leaveDate, comment, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("soft delete person: %w", err)
	}
	return requireAffected(result, "soft delete person")
}

// Restore clears the deletion markers of a person.
func (r *PersonRepository) Restore(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE people SET is_deleted = FALSE, leave_date = NULL, comment_on_deletion = NULL, updated_at = $2 WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("restore person: %w", err)
	}
	return requireAffected(result, "restore person")
}

func requireAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
