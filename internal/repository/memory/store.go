// Package memory implements the repository method sets over in-process maps.
// Every write snapshots the whole store to a JSON file so a restart resumes
// where the previous process stopped.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	"github.com/noah-isme/course-ledger-api/pkg/storage"
)

const snapshotFile = "store.json"

// SnapshotStorage persists the serialised store.
type SnapshotStorage interface {
	Save(filename string, data []byte) (string, error)
	Load(filename string) ([]byte, error)
}

type snapshot struct {
	Version     int                 `json:"version"`
	Courses     []models.Course     `json:"courses"`
	Students    []persistedStudent  `json:"students"`
	Enrollments []models.Enrollment `json:"enrollments"`
	Payments    []models.Payment    `json:"payments"`
	AuditLogs   []models.AuditLog   `json:"auditLogs"`
}

// persistedStudent keeps the password hash that models.Student hides from API JSON.
type persistedStudent struct {
	models.Student
	PasswordHash string `json:"passwordHash,omitempty"`
}

// Store owns all in-memory state. The repository views returned by its
// accessors share one lock.
type Store struct {
	mu sync.RWMutex

	courses     map[string]models.Course
	courseOrder []string
	students    map[string]models.Student
	enrollments map[string]models.Enrollment
	payments    []models.Payment
	auditLogs   []models.AuditLog

	snapshots SnapshotStorage
	logger    *zap.Logger
}

// NewStore builds a store, restoring the last snapshot when one exists. A nil
// SnapshotStorage keeps everything in memory only.
func NewStore(snapshots SnapshotStorage, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		courses:     make(map[string]models.Course),
		students:    make(map[string]models.Student),
		enrollments: make(map[string]models.Enrollment),
		snapshots:   snapshots,
		logger:      logger,
	}
	if snapshots == nil {
		return s, nil
	}

	raw, err := snapshots.Load(snapshotFile)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	s.restore(snap)
	logger.Info("store restored from snapshot",
		zap.Int("courses", len(snap.Courses)),
		zap.Int("enrollments", len(snap.Enrollments)),
		zap.Int("payments", len(snap.Payments)),
	)
	return s, nil
}

// Courses returns the course repository view.
func (s *Store) Courses() *CourseRepository { return &CourseRepository{store: s} }

// Students returns the student repository view.
func (s *Store) Students() *StudentRepository { return &StudentRepository{store: s} }

// Enrollments returns the enrollment repository view.
func (s *Store) Enrollments() *EnrollmentRepository { return &EnrollmentRepository{store: s} }

// Payments returns the payment repository view.
func (s *Store) Payments() *PaymentRepository { return &PaymentRepository{store: s} }

// AuditLogs returns the audit repository view.
func (s *Store) AuditLogs() *AuditRepository { return &AuditRepository{store: s} }

// Empty reports whether nothing has been enrolled yet.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.enrollments) == 0 && len(s.students) == 0
}

func (s *Store) restore(snap snapshot) {
	for _, c := range snap.Courses {
		s.putCourseLocked(c)
	}
	for _, ps := range snap.Students {
		st := ps.Student
		st.PasswordHash = ps.PasswordHash
		s.students[st.ID] = st
	}
	for _, e := range snap.Enrollments {
		for i := range e.Schedule {
			e.Schedule[i].EnrollmentID = e.ID
		}
		s.enrollments[e.ID] = e
	}
	s.payments = append(s.payments, snap.Payments...)
	s.auditLogs = append(s.auditLogs, snap.AuditLogs...)
}

func (s *Store) putCourseLocked(c models.Course) {
	if _, exists := s.courses[c.ID]; !exists {
		s.courseOrder = append(s.courseOrder, c.ID)
	}
	s.courses[c.ID] = c
}

// persistLocked writes the snapshot. Callers hold the write lock. A failed
// write is returned so the caller can surface it; in-memory state is kept.
func (s *Store) persistLocked() error {
	if s.snapshots == nil {
		return nil
	}
	snap := snapshot{
		Version:     1,
		Courses:     make([]models.Course, 0, len(s.courseOrder)),
		Students:    make([]persistedStudent, 0, len(s.students)),
		Enrollments: make([]models.Enrollment, 0, len(s.enrollments)),
		Payments:    s.payments,
		AuditLogs:   s.auditLogs,
	}
	for _, id := range s.courseOrder {
		snap.Courses = append(snap.Courses, s.courses[id])
	}
	for _, st := range s.students {
		snap.Students = append(snap.Students, persistedStudent{Student: st, PasswordHash: st.PasswordHash})
	}
	for _, e := range s.enrollments {
		snap.Enrollments = append(snap.Enrollments, e)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := s.snapshots.Save(snapshotFile, raw); err != nil {
		s.logger.Error("snapshot write failed", zap.Error(err))
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
