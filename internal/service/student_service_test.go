package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

func TestStudentServiceRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	student, err := f.students.Register(ctx, RegisterStudentRequest{
		StudentProfile: StudentProfile{Name: " Ada Lovelace ", Email: "Ada@Example.com", Phone: "555-0199"},
		Password:       "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", student.Name)
	assert.Equal(t, "ada@example.com", student.Email)
	require.NotEmpty(t, student.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte("correct horse")))
	assert.Contains(t, f.auditActions(t, student.ID), models.AuditStudentRegistered)

	_, err = f.students.Register(ctx, RegisterStudentRequest{
		StudentProfile: StudentProfile{Name: "Ada", Email: "ADA@example.com"},
		Password:       "another secret",
	})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = f.students.Register(ctx, RegisterStudentRequest{
		StudentProfile: StudentProfile{Name: "Bob", Email: "bob@example.com"},
		Password:       "short",
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestStudentServiceResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profile := StudentProfile{Name: "Jane Roe", Email: "jane@example.com"}

	created, isNew, err := f.students.Resolve(ctx, profile)
	require.NoError(t, err)
	assert.True(t, isNew)

	found, isNew, err := f.students.Resolve(ctx, StudentProfile{Name: "Jane R.", Email: "JANE@example.com"})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Jane Roe", found.Name)

	_, _, err = f.students.Resolve(ctx, StudentProfile{Email: "jane@example.com"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestStudentServiceListAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, _, err := f.students.Resolve(ctx, StudentProfile{Name: "Student " + email[:1], Email: email})
		require.NoError(t, err)
	}

	students, pagination, err := f.students.List(ctx, models.StudentFilter{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, students, 2)
	assert.Equal(t, 3, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)

	matched, _, err := f.students.List(ctx, models.StudentFilter{Search: "B@EXAMPLE"})
	require.NoError(t, err)
	require.Len(t, matched, 1)

	got, err := f.students.Get(ctx, matched[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", got.Email)

	_, err = f.students.Get(ctx, "ghost")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
