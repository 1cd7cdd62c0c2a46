package models

import "time"

// Student is the canonical learner identity. Enrollments reference it by ID.
type Student struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Email            string    `db:"email" json:"email"`
	Phone            string    `db:"phone" json:"phone"`
	Address          string    `db:"address" json:"address,omitempty"`
	Gender           string    `db:"gender" json:"gender,omitempty"`
	Education        string    `db:"education" json:"education,omitempty"`
	Occupation       string    `db:"occupation" json:"occupation,omitempty"`
	EmergencyContact string    `db:"emergency_contact" json:"emergencyContact,omitempty"`
	PasswordHash     string    `db:"password_hash" json:"-"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	Search   string
	Page     int
	PageSize int
}

// StudentRef is the display projection embedded in enrollment and payment views.
type StudentRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}
