package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

const courseColumns = `id, title, description, price, start_date, end_date, max_installments, active, category, instructor, duration`

// CourseRepository reads the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns catalog entries ordered by start date.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	var b clauseBuilder
	if filter.ActiveOnly {
		b.add("active = $%d", true)
	}
	if filter.Category != "" {
		b.add("LOWER(category) = LOWER($%d)", filter.Category)
	}
	query := "SELECT " + courseColumns + " FROM courses" + b.where() + " ORDER BY start_date, id"

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, b.args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindByID returns a course or sql.ErrNoRows.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := "SELECT " + courseColumns + " FROM courses WHERE id = $1"
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Upsert inserts a course or refreshes an existing row with the same ID.
func (r *CourseRepository) Upsert(ctx context.Context, course *models.Course) error {
	const query = `INSERT INTO courses (id, title, description, price, start_date, end_date, max_installments, active, category, instructor, duration)
        VALUES (:id, :title, :description, :price, :start_date, :end_date, :max_installments, :active, :category, :instructor, :duration)
        ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description, price = EXCLUDED.price,
            start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date, max_installments = EXCLUDED.max_installments,
            active = EXCLUDED.active, category = EXCLUDED.category, instructor = EXCLUDED.instructor, duration = EXCLUDED.duration`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("upsert course: %w", err)
	}
	return nil
}
