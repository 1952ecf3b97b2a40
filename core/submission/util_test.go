package submission_test

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/darasahub/darasa/core/course"
	"github.com/darasahub/darasa/core/submission"
	"github.com/darasahub/darasa/core/user"
	logsvc "github.com/darasahub/darasa/services/logger"
	"github.com/darasahub/darasa/storage/database/dummy"
	"github.com/darasahub/darasa/storage/files"
)

// courseFixtureRepo adds the dummydb-only seeding helpers to course.Repository.
type courseFixtureRepo interface {
	course.Repository
	CreateCourse(c course.Course) course.Course
	Enroll(courseID, userID, roleInCourse string) course.Enrollment
}

type fixture struct {
	svc        *submission.Service
	usrRepo    user.Repository
	courseRepo courseFixtureRepo
	store      *files.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	store, err := files.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("files.NewStore() failed: %v", err)
	}

	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	courseRepo := dummydb.NewCourseRepository(db)
	svc := submission.NewService(dummydb.NewSubmissionRepository(db), courseRepo, store, logger)

	return &fixture{
		svc:        svc,
		usrRepo:    dummydb.NewUserRepository(db),
		courseRepo: courseRepo,
		store:      store,
	}
}

func (f *fixture) createStudent(t *testing.T, name, studentID string) user.User {
	t.Helper()
	usr, err := f.usrRepo.CreateUser(context.Background(), user.User{
		Name:      name,
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@school.test",
		StudentID: studentID,
		Role:      user.RoleStudent,
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// createAssignment seeds a course with an assignment and returns both.
func (f *fixture) createAssignment(t *testing.T) (course.Course, course.Assignment) {
	t.Helper()
	c := f.courseRepo.CreateCourse(course.Course{Name: "Algorithms", Term: "2021T1", Code: "CS201"})
	a, err := f.courseRepo.CreateAssignment(context.Background(), course.Assignment{
		CourseID:  c.ID,
		Title:     "Problem Set 1",
		MaxPoints: 100,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return c, a
}

// submit hands in one version with the given files (name -> content).
func (f *fixture) submit(t *testing.T, assignmentID, studentID string, fileContents [][2]string) submission.Submission {
	t.Helper()
	ns := submission.NewSubmission{AssignmentID: assignmentID, StudentID: studentID}
	for _, fc := range fileContents {
		ns.Uploads = append(ns.Uploads, submission.FileUpload{Filename: fc[0], Src: strings.NewReader(fc[1])})
	}
	if len(fileContents) == 0 {
		ns.ExternalLink = "https://repo.school.test/" + studentID
	}
	sub, err := f.svc.Create(context.Background(), ns)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return sub
}
