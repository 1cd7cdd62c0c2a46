package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

var studentRowColumns = []string{"id", "name", "email", "phone", "address", "gender", "education", "occupation", "emergency_contact", "password_hash", "created_at", "updated_at"}

func TestStudentRepositoryListSearch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("student-001", "John Doe", "john@example.com", "555", "", "", "", "", "", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE (name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1) ORDER BY name, id LIMIT 10 OFFSET 10")).
		WithArgs("%john%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE (name ILIKE $1")).
		WithArgs("%john%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Search: " john ", Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "John Doe", students[0].Name)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(email) = LOWER($1)")).
		WithArgs("John@Example.com").
		WillReturnRows(sqlmock.NewRows(studentRowColumns).
			AddRow("student-001", "John Doe", "john@example.com", "555", "", "", "", "", "", "hash", now, now))

	student, err := repo.FindByEmail(context.Background(), "John@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "student-001", student.ID)
	assert.Equal(t, "hash", student.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{Name: "Priya", Email: "priya@example.com"}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.False(t, student.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
