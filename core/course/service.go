package course

import (
	"context"
	"io"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/user"
)

var (
	ErrCourseNotFound     = errors.New("course not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
)

type (
	Repository interface {
		GetCourse(ctx context.Context, id string) (Course, error)
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		// AssignmentsByCourse returns the course's assignments ordered by due date ascending.
		AssignmentsByCourse(ctx context.Context, courseID string) ([]Assignment, error)
		UpdateAssignmentMaterials(ctx context.Context, id string, materials core.FileList) error
		// Enrollments returns the course's enrollments in stable ascending
		// enrollment-ID order, optionally filtered by roleInCourse.
		Enrollments(ctx context.Context, courseID string, roles ...string) ([]Enrollment, error)
		GetEnrollment(ctx context.Context, courseID, userID string) (Enrollment, error)
	}

	Service struct {
		repo  Repository
		store core.FileStore
		log   core.Logger
	}
)

func NewService(repo Repository, store core.FileStore, log core.Logger) *Service {
	return &Service{repo: repo, store: store, log: log}
}

func (svc *Service) GetCourse(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *Service) AssignmentsByCourse(ctx context.Context, courseID string) ([]Assignment, error) {
	return svc.repo.AssignmentsByCourse(ctx, courseID)
}

func (svc *Service) CreateAssignment(ctx context.Context, courseID string, na NewAssignment) (Assignment, error) {
	allowLate := true
	if na.AllowLate != nil {
		allowLate = *na.AllowLate
	}
	a := Assignment{
		CourseID:    courseID,
		Title:       na.Title,
		Description: na.Description,
		DueAt:       na.DueAt.UTC(),
		AllowLate:   allowLate,
		MaxPoints:   na.MaxPoints,
		Materials:   core.FileList{},
	}
	return svc.repo.CreateAssignment(ctx, a)
}

func (svc *Service) Enrollments(ctx context.Context, courseID string, roles ...string) ([]Enrollment, error) {
	return svc.repo.Enrollments(ctx, courseID, roles...)
}

func (svc *Service) GetEnrollment(ctx context.Context, courseID, userID string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, courseID, userID)
}

// IsStaff reports whether usr may run staff operations (grading, plagiarism
// check, export) on the course: a staff enrollment, or global ADMIN.
func (svc *Service) IsStaff(ctx context.Context, courseID string, usr user.User) (bool, error) {
	if usr.IsAdmin() {
		return true, nil
	}
	enr, err := svc.repo.GetEnrollment(ctx, courseID, usr.ID)
	if err != nil {
		if errors.Cause(err) == ErrEnrollmentNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "finding enrollment")
	}
	return enr.IsStaff(), nil
}

// IsMember reports whether usr belongs to the course in any role, or is a global ADMIN.
func (svc *Service) IsMember(ctx context.Context, courseID string, usr user.User) (bool, error) {
	if usr.IsAdmin() {
		return true, nil
	}
	if _, err := svc.repo.GetEnrollment(ctx, courseID, usr.ID); err != nil {
		if errors.Cause(err) == ErrEnrollmentNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "finding enrollment")
	}
	return true, nil
}

// MaterialUpload is one incoming teacher-material file.
type MaterialUpload struct {
	Filename string
	Src      io.Reader
}

// AddMaterials stores the uploaded files and appends them to the assignment's
// materials list.
func (svc *Service) AddMaterials(ctx context.Context, a Assignment, uploads []MaterialUpload) (core.FileList, error) {
	materials := a.Materials
	if materials == nil {
		materials = core.FileList{}
	}

	subdir := filepath.Join("materials", a.CourseID, a.ID)
	for _, up := range uploads {
		sf, err := svc.store.Save(subdir, up.Filename, up.Src)
		if err != nil {
			return nil, errors.Wrap(err, "saving material")
		}
		materials = append(materials, sf)
	}

	if err := svc.repo.UpdateAssignmentMaterials(ctx, a.ID, materials); err != nil {
		// keep storage consistent with the DB row
		for i := len(a.Materials); i < len(materials); i++ {
			if rmErr := svc.store.Remove(materials[i].Path); rmErr != nil {
				svc.log.Warn("removing orphaned material", rmErr)
			}
		}
		return nil, errors.Wrap(err, "updating assignment materials")
	}
	return materials, nil
}
