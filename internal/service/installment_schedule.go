package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

// GenerateSchedule splits price into count installments spread across
// [start, end]. Every installment but the last gets floor(price/count); the
// last absorbs the remainder so the amounts sum to price exactly. The first
// installment is due on start and later ones follow at equal intervals,
// truncated to the day.
func GenerateSchedule(price decimal.Decimal, count int, start, end time.Time) ([]models.Installment, error) {
	if count < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "installment count must be at least 1")
	}
	if !price.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price must be greater than zero")
	}
	start, end = truncateDay(start), truncateDay(end)
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
	}

	n := decimal.NewFromInt(int64(count))
	base := price.Div(n).Floor()
	if !base.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price is too small for the installment count")
	}
	remainder := price.Sub(base.Mul(n))
	interval := end.Sub(start) / time.Duration(count)

	schedule := make([]models.Installment, count)
	for i := range schedule {
		amount := base
		if i == count-1 {
			amount = base.Add(remainder)
		}
		schedule[i] = models.Installment{
			No:         i + 1,
			Amount:     amount,
			DueDate:    clampDay(truncateDay(start.Add(interval*time.Duration(i))), start, end),
			PaidAmount: decimal.Zero,
			Status:     models.InstallmentPending,
		}
	}
	return schedule, nil
}

// ScheduleEntry is one student-chosen installment. A zero Amount on a trailing
// entry is filled from the unallocated part of the price; an empty DueDate
// takes the generated due date for that position.
type ScheduleEntry struct {
	Amount  decimal.Decimal `json:"amount"`
	DueDate string          `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
}

// BuildSchedule turns entries into installments for a course priced at price
// running [start, end]. Amounts must be positive after filling and sum to
// price exactly; due dates must fall inside the course window.
func BuildSchedule(price decimal.Decimal, entries []ScheduleEntry, start, end time.Time) ([]models.Installment, error) {
	schedule, err := GenerateSchedule(price, len(entries), start, end)
	if err != nil {
		return nil, err
	}
	start, end = truncateDay(start), truncateDay(end)

	amounts := make([]decimal.Decimal, len(entries))
	for i, entry := range entries {
		if entry.Amount.IsNegative() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("installment %d amount must be greater than zero", i+1))
		}
		amounts[i] = entry.Amount
	}
	fillTrailing(amounts, price)

	total := decimal.Zero
	for i := range schedule {
		if !amounts[i].IsPositive() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("installment %d amount must be greater than zero", i+1))
		}
		total = total.Add(amounts[i])
		schedule[i].Amount = amounts[i]

		if entries[i].DueDate == "" {
			continue
		}
		due, err := time.Parse("2006-01-02", entries[i].DueDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("installment %d due date is invalid", i+1))
		}
		if due.Before(start) || due.After(end) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "all installment dates must be within the course duration")
		}
		schedule[i].DueDate = due
	}
	if !total.Equal(price) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("installment amounts total %s, course price is %s", total.StringFixed(2), price.StringFixed(2)))
	}
	return schedule, nil
}

// fillTrailing splits what the non-zero amounts leave of price across the
// trailing run of zero amounts, floor per entry with the remainder on the last.
func fillTrailing(amounts []decimal.Decimal, price decimal.Decimal) {
	first := len(amounts)
	for first > 0 && amounts[first-1].IsZero() {
		first--
	}
	if first == len(amounts) {
		return
	}
	allocated := decimal.Zero
	for _, amount := range amounts[:first] {
		allocated = allocated.Add(amount)
	}
	left := price.Sub(allocated)
	if !left.IsPositive() {
		return
	}
	n := decimal.NewFromInt(int64(len(amounts) - first))
	share := left.Div(n).Floor()
	for i := first; i < len(amounts); i++ {
		amounts[i] = share
	}
	amounts[len(amounts)-1] = share.Add(left.Sub(share.Mul(n)))
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clampDay(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}
