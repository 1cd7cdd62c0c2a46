// Package seed embeds the sample catalog, students, enrollments and payments
// served by the sample-data endpoint and loaded into an empty store.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

//go:embed data.json
var raw []byte

// Enrollment is a seeded enrollment. Its schedule is generated from the
// course at load time.
type Enrollment struct {
	ID           string        `json:"id"`
	StudentID    string        `json:"studentId"`
	CourseID     string        `json:"courseId"`
	Installments int           `json:"installments"`
	Source       models.Source `json:"source"`
	Notes        string        `json:"notes,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Dataset is the full sample dataset.
type Dataset struct {
	Courses     []models.Course  `json:"courses"`
	Students    []models.Student `json:"students"`
	Enrollments []Enrollment     `json:"enrollments"`
	Payments    []models.Payment `json:"payments"`
}

// Load decodes a fresh copy of the embedded dataset.
func Load() (*Dataset, error) {
	var data Dataset
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode seed dataset: %w", err)
	}
	return &data, nil
}
