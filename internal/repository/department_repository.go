package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/phonebook-api/internal/models"
)

// DepartmentRepository reads organisational units.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs a DepartmentRepository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// List returns active departments ordered by name.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	const query = `SELECT id, name, is_deleted, created_at FROM departments WHERE is_deleted = FALSE ORDER BY name ASC`
	departments := make([]models.Department, 0)
	if err := r.db.SelectContext(ctx, &departments, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// FindByName returns the active department with the exact name or sql.ErrNoRows.
func (r *DepartmentRepository) FindByName(ctx context.Context, name string) (*models.Department, error) {
	const query = `SELECT id, name, is_deleted, created_at FROM departments WHERE name = $1 AND is_deleted = FALSE`
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, name); err != nil {
		return nil, err
	}
	return &department, nil
}
