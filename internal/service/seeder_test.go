package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ledger-api/internal/models"
	"github.com/noah-isme/course-ledger-api/internal/seed"
)

func TestSeederLoadsSampleDataOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeder := NewSeeder(f.catalog, f.store.Courses(), f.store.Students(), f.store.Enrollments(), f.store.Payments(), f.reconciler, nil)

	data, err := seed.Load()
	require.NoError(t, err)
	inserted, err := seeder.Seed(ctx, data)
	require.NoError(t, err)
	assert.True(t, inserted)

	paidInFull, err := f.enrollments.Get(ctx, "ENR-1006")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, paidInFull.Status)
	assert.True(t, paidInFull.PaymentInfo.IsComplete)

	first, err := f.enrollments.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", first.Student.Name)
	assert.True(t, first.PaymentInfo.TotalPaid.Equal(decimal.NewFromInt(9000)))
	assert.Equal(t, 1, first.PaymentInfo.PaidInstallments)

	legacy, err := f.ledger.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, legacy.Status)

	again, err := seeder.Seed(ctx, data)
	require.NoError(t, err)
	assert.False(t, again)

	payments, err := f.ledger.List(ctx, models.PaymentFilter{})
	require.NoError(t, err)
	assert.Len(t, payments.Items, len(data.Payments))
}
