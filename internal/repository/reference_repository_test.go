package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, is_deleted, created_at FROM roles WHERE is_deleted = FALSE ORDER BY name ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_deleted", "created_at"}).
			AddRow("r-1", "Директор", false, time.Now()).
			AddRow("r-2", "Учител", false, time.Now()))

	roles, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "Учител", roles[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepositoryFindByNameMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM roles WHERE name = $1 AND is_deleted = FALSE")).
		WithArgs("Пилот").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_deleted", "created_at"}))

	_, err := repo.FindByName(context.Background(), "Пилот")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDepartmentRepositoryFindByName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM departments WHERE name = $1 AND is_deleted = FALSE")).
		WithArgs("Начален етап").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_deleted", "created_at"}).AddRow("d-1", "Начален етап", false, time.Now()))

	department, err := repo.FindByName(context.Background(), "Начален етап")
	require.NoError(t, err)
	assert.Equal(t, "d-1", department.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM departments WHERE is_deleted = FALSE ORDER BY name ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_deleted", "created_at"}))

	departments, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, departments)
}
