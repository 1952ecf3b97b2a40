package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/course"
	"github.com/darasahub/darasa/core/user"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

type assignmentRow struct {
	ID          string        `db:"id"`
	CourseID    string        `db:"course_id"`
	Title       string        `db:"title"`
	Description string        `db:"description"`
	DueAt       time.Time     `db:"due_at"`
	AllowLate   bool          `db:"allow_late"`
	MaxPoints   int           `db:"max_points"`
	Materials   core.FileList `db:"materials_json"`
	CreatedAt   time.Time     `db:"created_at"`
}

func (r assignmentRow) unpack() course.Assignment {
	return course.Assignment{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		DueAt:       r.DueAt,
		AllowLate:   r.AllowLate,
		MaxPoints:   r.MaxPoints,
		Materials:   r.Materials,
		CreatedAt:   r.CreatedAt,
	}
}

type enrollmentRow struct {
	ID           string         `db:"id"`
	CourseID     string         `db:"course_id"`
	UserID       string         `db:"user_id"`
	RoleInCourse string         `db:"role_in_course"`
	UserName     string         `db:"user_name"`
	UserEmail    sql.NullString `db:"user_email"`
	StudentID    sql.NullString `db:"user_student_id"`
	UserRole     string         `db:"user_role"`
}

func (r enrollmentRow) unpack() course.Enrollment {
	return course.Enrollment{
		ID:           r.ID,
		CourseID:     r.CourseID,
		UserID:       r.UserID,
		RoleInCourse: r.RoleInCourse,
		User: &user.User{
			ID:        r.UserID,
			Name:      r.UserName,
			Email:     r.UserEmail.String,
			StudentID: r.StudentID.String,
			Role:      r.UserRole,
		},
	}
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var c course.Course
	err := repo.db.QueryRowContext(ctx,
		`SELECT id, name, term, code, owner_id, created_at FROM course WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Term, &c.Code, &c.OwnerID, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrCourseNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	return c, nil
}

func (repo *courseRepository) CreateAssignment(ctx context.Context, a course.Assignment) (course.Assignment, error) {
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()
	materials, err := a.Materials.Value()
	if err != nil {
		return course.Assignment{}, err
	}
	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO assignment (id, course_id, title, description, due_at, allow_late, max_points, materials_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.CourseID, a.Title, a.Description, a.DueAt, a.AllowLate, a.MaxPoints, materials, a.CreatedAt,
	)
	if err != nil {
		return course.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo *courseRepository) GetAssignment(ctx context.Context, id string) (course.Assignment, error) {
	var row assignmentRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM assignment WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return course.Assignment{}, course.ErrAssignmentNotFound
		}
		return course.Assignment{}, errors.Wrap(err, "finding assignment")
	}
	return row.unpack(), nil
}

func (repo *courseRepository) AssignmentsByCourse(ctx context.Context, courseID string) ([]course.Assignment, error) {
	var rows []assignmentRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM assignment WHERE course_id = $1 ORDER BY due_at ASC`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]course.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.unpack())
	}
	return assignments, nil
}

func (repo *courseRepository) UpdateAssignmentMaterials(ctx context.Context, id string, materials core.FileList) error {
	val, err := materials.Value()
	if err != nil {
		return err
	}
	res, err := repo.db.ExecContext(ctx,
		`UPDATE assignment SET materials_json = $1 WHERE id = $2`, val, id)
	if err != nil {
		return errors.Wrap(err, "updating assignment materials")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrAssignmentNotFound
	}
	return nil
}

func (repo *courseRepository) Enrollments(ctx context.Context, courseID string, roles ...string) ([]course.Enrollment, error) {
	q := `
		SELECT e.id, e.course_id, e.user_id, e.role_in_course,
		       u.name AS user_name, u.email AS user_email, u.student_id AS user_student_id, u.role AS user_role
		FROM enrollment e
		JOIN "user" u ON u.id = e.user_id
		WHERE e.course_id = ?`
	args := []interface{}{courseID}
	if len(roles) > 0 {
		var err error
		q, args, err = sqlx.In(q+` AND e.role_in_course IN (?)`, courseID, roles)
		if err != nil {
			return nil, errors.Wrap(err, "building enrollments query")
		}
	}
	q = repo.db.Rebind(q + ` ORDER BY e.id ASC`)

	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]course.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.unpack())
	}
	return enrollments, nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, courseID, userID string) (course.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT e.id, e.course_id, e.user_id, e.role_in_course,
		       u.name AS user_name, u.email AS user_email, u.student_id AS user_student_id, u.role AS user_role
		FROM enrollment e
		JOIN "user" u ON u.id = e.user_id
		WHERE e.course_id = $1 AND e.user_id = $2`, courseID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return course.Enrollment{}, course.ErrEnrollmentNotFound
		}
		return course.Enrollment{}, errors.Wrap(err, "finding enrollment")
	}
	return row.unpack(), nil
}
