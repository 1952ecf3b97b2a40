package dummydb

import (
	"context"
	"time"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/course"
	"github.com/darasahub/darasa/core/user"
)

type courseRepository struct {
	db    *courseTable
	users *userTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db.course, users: db.user}
}

// CreateCourse is a test fixture helper; course CRUD proper lives outside this service.
func (repo *courseRepository) CreateCourse(c course.Course) course.Course {
	repo.db.Lock()
	defer repo.db.Unlock()

	c.ID = nextPK()
	c.CreatedAt = time.Now().UTC()
	repo.db.courses[c.ID] = &c
	return c
}

// Enroll is a test fixture helper.
func (repo *courseRepository) Enroll(courseID, userID, roleInCourse string) course.Enrollment {
	repo.db.Lock()
	defer repo.db.Unlock()

	enr := course.Enrollment{
		ID:           nextPK(),
		CourseID:     courseID,
		UserID:       userID,
		RoleInCourse: roleInCourse,
	}
	repo.db.enrollments = append(repo.db.enrollments, &enr)
	return enr
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return *c, nil
	}
	return course.Course{}, course.ErrCourseNotFound
}

func (repo *courseRepository) CreateAssignment(_ context.Context, a course.Assignment) (course.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = nextPK()
	a.CreatedAt = time.Now().UTC()
	if a.Materials == nil {
		a.Materials = core.FileList{}
	}
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *courseRepository) GetAssignment(_ context.Context, id string) (course.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return course.Assignment{}, course.ErrAssignmentNotFound
}

func (repo *courseRepository) AssignmentsByCourse(_ context.Context, courseID string) ([]course.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var assignments []course.Assignment
	for _, a := range repo.db.assignments {
		if a.CourseID == courseID {
			assignments = append(assignments, *a)
		}
	}
	return assignments, nil
}

func (repo *courseRepository) UpdateAssignmentMaterials(_ context.Context, id string, materials core.FileList) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	a, ok := repo.db.assignments[id]
	if !ok {
		return course.ErrAssignmentNotFound
	}
	a.Materials = materials
	return nil
}

func (repo *courseRepository) Enrollments(_ context.Context, courseID string, roles ...string) ([]course.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var enrollments []course.Enrollment
	for _, enr := range repo.db.enrollments {
		if enr.CourseID != courseID {
			continue
		}
		if len(roles) > 0 && !containsRole(roles, enr.RoleInCourse) {
			continue
		}
		e := *enr
		e.User = repo.lookupUser(enr.UserID)
		enrollments = append(enrollments, e)
	}
	return enrollments, nil
}

func (repo *courseRepository) GetEnrollment(_ context.Context, courseID, userID string) (course.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID && enr.UserID == userID {
			e := *enr
			e.User = repo.lookupUser(enr.UserID)
			return e, nil
		}
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) lookupUser(id string) *user.User {
	repo.users.RLock()
	defer repo.users.RUnlock()

	if usr, ok := repo.users.table[id]; ok {
		u := *usr
		return &u
	}
	return nil
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
