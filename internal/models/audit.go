package models

import (
	"encoding/json"
	"time"
)

// Audit actions recorded by the services.
const (
	AuditEnrollmentCreated       = "enrollment_created"
	AuditEnrollmentStatusChanged = "enrollment_status_changed"
	AuditEnrollmentDeleted       = "enrollment_deleted"
	AuditPaymentRecorded         = "payment_recorded"
	AuditPaymentUpdated          = "payment_updated"
	AuditPaymentDeleted          = "payment_deleted"
	AuditInstallmentsOverdue     = "installments_marked_overdue"
	AuditStudentRegistered       = "student_registered"
)

// Audited entity names.
const (
	AuditEntityEnrollment = "enrollment"
	AuditEntityPayment    = "payment"
	AuditEntityStudent    = "student"
)

// ActorType identifies who performed an audited change.
type ActorType string

const (
	ActorStudent ActorType = "student"
	ActorAdmin   ActorType = "admin"
	ActorSystem  ActorType = "system"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID        string          `db:"id" json:"id"`
	ActorID   string          `db:"actor_id" json:"actorId,omitempty"`
	ActorType ActorType       `db:"actor_type" json:"actorType"`
	Action    string          `db:"action" json:"action"`
	Entity    string          `db:"entity" json:"entity"`
	EntityID  string          `db:"entity_id" json:"entityId"`
	Before    json.RawMessage `db:"before" json:"before,omitempty"`
	After     json.RawMessage `db:"after" json:"after,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	Entity   string
	EntityID string
	Action   string
	Page     int
	PageSize int
}
