package course

import (
	"time"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/user"
)

// Course enrollment roles
const (
	RoleOwner   = "OWNER"
	RoleTeacher = "TEACHER"
	RoleTA      = "TA"
	RoleStudent = "STUDENT"
)

// StaffRoles are the enrollment roles allowed to grade, run plagiarism checks
// and export submissions.
var StaffRoles = []string{RoleOwner, RoleTeacher, RoleTA}

type Course struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Term      string    `json:"term"`
	Code      string    `json:"code"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Assignment struct {
	ID          string        `json:"id"`
	CourseID    string        `json:"course_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	DueAt       time.Time     `json:"due_at"` // UTC
	AllowLate   bool          `json:"allow_late"`
	MaxPoints   int           `json:"max_points"`
	Materials   core.FileList `json:"-"`
	CreatedAt   time.Time     `json:"created_at"` // UTC
}

type Enrollment struct {
	ID           string     `json:"id"`
	CourseID     string     `json:"course_id"`
	UserID       string     `json:"user_id"`
	RoleInCourse string     `json:"role_in_course"`
	User         *user.User `json:"user,omitempty"`
}

func (e Enrollment) IsStaff() bool {
	for _, role := range StaffRoles {
		if e.RoleInCourse == role {
			return true
		}
	}
	return false
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	DueAt       time.Time `json:"due_at" validate:"required"`
	AllowLate   *bool     `json:"allow_late"`
	MaxPoints   int       `json:"max_points"`
}

func (na *NewAssignment) Validate() error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	if na.MaxPoints == 0 {
		na.MaxPoints = 100
	}
	return core.Validate.Struct(na)
}
