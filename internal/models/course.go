package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Course is catalog reference data. Price is in whole currency units.
type Course struct {
	ID              string          `db:"id" json:"id"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description"`
	Price           decimal.Decimal `db:"price" json:"price"`
	StartDate       time.Time       `db:"start_date" json:"startDate"`
	EndDate         time.Time       `db:"end_date" json:"endDate"`
	MaxInstallments int             `db:"max_installments" json:"maxInstallments"`
	Active          bool            `db:"active" json:"active"`
	Category        string          `db:"category" json:"category"`
	Instructor      string          `db:"instructor" json:"instructor"`
	Duration        string          `db:"duration" json:"duration"`
}

// CourseFilter narrows catalog listings.
type CourseFilter struct {
	ActiveOnly bool
	Category   string
}
