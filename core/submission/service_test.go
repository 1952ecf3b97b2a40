package submission_test

import (
	"context"
	"io/ioutil"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/darasahub/darasa/core/course"
	"github.com/darasahub/darasa/core/submission"
)

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, a := f.createAssignment(t)
	student := f.createStudent(t, "Alice Aoki", "s001")

	sub1 := f.submit(t, a.ID, student.ID, [][2]string{{"main.go", "package main"}, {"notes.txt", "wip"}})
	assert.Equal(t, 1, sub1.Version)
	assert.Len(t, sub1.Files, 2)
	assert.Equal(t, "main.go", sub1.Files[0].Filename)

	// files land on disk under the store root
	data, err := ioutil.ReadFile(sub1.Files[0].Path)
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	assert.Equal(t, "package main", string(data))

	// re-submitting appends a new version; v1 and its files stay put
	sub2 := f.submit(t, a.ID, student.ID, [][2]string{{"main.go", "package main // fixed"}})
	assert.Equal(t, 2, sub2.Version)
	assert.NotEqual(t, sub1.ID, sub2.ID)

	got, err := f.svc.GetByID(ctx, sub1.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	assert.Equal(t, 1, got.Version)
	if _, err := ioutil.ReadFile(sub1.Files[0].Path); err != nil {
		t.Errorf("v1 file gone after re-submission: %v", err)
	}

	// unknown assignment
	_, err = f.svc.Create(ctx, submission.NewSubmission{AssignmentID: "nope", StudentID: student.ID, ExternalLink: "https://x.test"})
	assert.Equal(t, course.ErrAssignmentNotFound, errors.Cause(err))
}

func TestService_Create_linkOnly(t *testing.T) {
	f := setup(t)
	_, a := f.createAssignment(t)
	student := f.createStudent(t, "Bob Brown", "s002")

	sub := f.submit(t, a.ID, student.ID, nil)
	assert.Empty(t, sub.Files)
	assert.NotEmpty(t, sub.ExternalLink)
}

func TestNewSubmission_Validate(t *testing.T) {
	ns := submission.NewSubmission{AssignmentID: "a1", StudentID: "u1"}
	assert.Error(t, ns.Validate()) // neither files nor link

	ns.ExternalLink = "  https://repo.test  "
	if err := ns.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	assert.Equal(t, "https://repo.test", ns.ExternalLink)
}

func TestService_History(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, a := f.createAssignment(t)
	student := f.createStudent(t, "Alice Aoki", "s001")
	grader := f.createStudent(t, "Prof Pat", "")

	sub1 := f.submit(t, a.ID, student.ID, [][2]string{{"v1.txt", "one"}})
	sub2 := f.submit(t, a.ID, student.ID, [][2]string{{"v2.txt", "two"}})

	if _, err := f.svc.SetGrade(ctx, sub1.ID, grader.ID, submission.NewGrade{Score: 60}); err != nil {
		t.Fatalf("SetGrade() failed: %v", err)
	}

	rows, err := f.svc.History(ctx, a.ID, student.ID)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("History() returned %d rows; want 2", len(rows))
	}
	// newest version first
	assert.Equal(t, sub2.ID, rows[0].Submission.ID)
	assert.Equal(t, sub1.ID, rows[1].Submission.ID)
	assert.Nil(t, rows[0].Grade)
	if assert.NotNil(t, rows[1].Grade) {
		assert.Equal(t, float64(60), rows[1].Grade.Score)
	}
}

func TestService_ResolveAuthoritative(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c, a := f.createAssignment(t)

	s1 := f.createStudent(t, "Alice Aoki", "s001")
	s2 := f.createStudent(t, "Bob Brown", "s002")
	s3 := f.createStudent(t, "Carol Cho", "s003")
	ta := f.createStudent(t, "Tina Assist", "")

	// enrollment order fixes the output order
	f.courseRepo.Enroll(c.ID, s1.ID, course.RoleStudent)
	f.courseRepo.Enroll(c.ID, s2.ID, course.RoleStudent)
	f.courseRepo.Enroll(c.ID, ta.ID, course.RoleTA)
	f.courseRepo.Enroll(c.ID, s3.ID, course.RoleStudent)

	f.submit(t, a.ID, s1.ID, [][2]string{{"old.txt", "draft"}})
	latest := f.submit(t, a.ID, s1.ID, [][2]string{{"new.txt", "final"}})
	f.submit(t, a.ID, s3.ID, [][2]string{{"only.txt", "one shot"}})

	rows, err := f.svc.ResolveAuthoritative(ctx, a.ID)
	if err != nil {
		t.Fatalf("ResolveAuthoritative() failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows; want 3 (TA excluded)", len(rows))
	}

	assert.Equal(t, "s001", rows[0].Student.StudentID)
	if assert.NotNil(t, rows[0].Submission) {
		assert.Equal(t, latest.ID, rows[0].Submission.ID)
		assert.Equal(t, 2, rows[0].Submission.Version)
	}

	// silent student shows up with no submission
	assert.Equal(t, "s002", rows[1].Student.StudentID)
	assert.Nil(t, rows[1].Submission)

	assert.Equal(t, "s003", rows[2].Student.StudentID)
	assert.NotNil(t, rows[2].Submission)

	_, err = f.svc.ResolveAuthoritative(ctx, "nope")
	assert.Equal(t, course.ErrAssignmentNotFound, errors.Cause(err))
}

func TestService_ListLatest(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c, a := f.createAssignment(t)

	s1 := f.createStudent(t, "Alice Aoki", "s001")
	s2 := f.createStudent(t, "Bob Brown", "s002")
	grader := f.createStudent(t, "Prof Pat", "")
	f.courseRepo.Enroll(c.ID, s1.ID, course.RoleStudent)
	f.courseRepo.Enroll(c.ID, s2.ID, course.RoleStudent)

	old := f.submit(t, a.ID, s1.ID, [][2]string{{"v1.txt", "one"}})
	cur := f.submit(t, a.ID, s1.ID, [][2]string{{"v2.txt", "two"}})

	// grading an old version must not leak into the latest view
	if _, err := f.svc.SetGrade(ctx, old.ID, grader.ID, submission.NewGrade{Score: 10}); err != nil {
		t.Fatalf("SetGrade() failed: %v", err)
	}
	if _, err := f.svc.SetGrade(ctx, cur.ID, grader.ID, submission.NewGrade{Score: 85, FeedbackText: "much better"}); err != nil {
		t.Fatalf("SetGrade() failed: %v", err)
	}

	rows, err := f.svc.ListLatest(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListLatest() failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows; want 2", len(rows))
	}
	if assert.NotNil(t, rows[0].Grade) {
		assert.Equal(t, float64(85), rows[0].Grade.Score)
		assert.Equal(t, "much better", rows[0].Grade.FeedbackText)
	}
	assert.Nil(t, rows[1].Submission)
	assert.Nil(t, rows[1].Grade)
}

func TestService_SetGrade(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, a := f.createAssignment(t)
	student := f.createStudent(t, "Alice Aoki", "s001")
	grader := f.createStudent(t, "Prof Pat", "")

	sub := f.submit(t, a.ID, student.ID, [][2]string{{"f.txt", "x"}})

	g, err := f.svc.SetGrade(ctx, sub.ID, grader.ID, submission.NewGrade{Score: 70, FeedbackText: "ok"})
	if err != nil {
		t.Fatalf("SetGrade() failed: %v", err)
	}
	assert.Equal(t, float64(70), g.Score)

	// re-grading replaces, never duplicates
	g, err = f.svc.SetGrade(ctx, sub.ID, grader.ID, submission.NewGrade{Score: 75})
	if err != nil {
		t.Fatalf("SetGrade() failed: %v", err)
	}
	assert.Equal(t, float64(75), g.Score)

	rows, err := f.svc.History(ctx, a.ID, student.ID)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	assert.Equal(t, float64(75), rows[0].Grade.Score)

	_, err = f.svc.SetGrade(ctx, "nope", grader.ID, submission.NewGrade{Score: 1})
	assert.Equal(t, submission.ErrNotFound, errors.Cause(err))
}

func TestService_File(t *testing.T) {
	f := setup(t)
	_, a := f.createAssignment(t)
	student := f.createStudent(t, "Alice Aoki", "s001")
	sub := f.submit(t, a.ID, student.ID, [][2]string{{"a.txt", "a"}, {"b.txt", "b"}})

	file, err := f.svc.File(sub, 1)
	if err != nil {
		t.Fatalf("File() failed: %v", err)
	}
	assert.Equal(t, "b.txt", file.Filename)

	for _, idx := range []int{-1, 2} {
		if _, err := f.svc.File(sub, idx); errors.Cause(err) != submission.ErrFileNotFound {
			t.Errorf("File(%d) err = %v; want %v", idx, err, submission.ErrFileNotFound)
		}
	}
}
