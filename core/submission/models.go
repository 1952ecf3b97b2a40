package submission

import (
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/user"
)

// Submission is one versioned hand-in for an (assignment, student) pair.
// Submissions are append-only: a re-hand-in creates a new row with
// Version = max(existing)+1, never mutates or merges an old one.
type Submission struct {
	ID           string        `json:"id"`
	AssignmentID string        `json:"assignment_id"`
	StudentID    string        `json:"student_id"` // user PK, not the school identifier
	Version      int           `json:"version"`
	Files        core.FileList `json:"files"`
	ExternalLink string        `json:"external_link,omitempty"`
	SubmittedAt  time.Time     `json:"submitted_at"` // UTC
}

// Grade is the (single) grade attached to a submission.
type Grade struct {
	SubmissionID string    `json:"submission_id"`
	GraderID     string    `json:"grader_id"`
	Score        float64   `json:"score"`
	FeedbackText string    `json:"feedback_text"`
	GradedAt     time.Time `json:"graded_at"` // UTC
}

// StudentRef identifies a student in resolver / duplicate-check output.
type StudentRef struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

func newStudentRef(usr *user.User, userID string) StudentRef {
	ref := StudentRef{ID: userID}
	if usr != nil {
		ref.StudentID = usr.StudentID
		ref.Name = usr.Name
		ref.Email = usr.Email
	}
	return ref
}

// StudentSubmission pairs an enrolled student with their authoritative
// (highest-version) submission, or nil if they never submitted.
type StudentSubmission struct {
	Student    StudentRef  `json:"student"`
	Submission *Submission `json:"submission"`
	Grade      *Grade      `json:"grade,omitempty"`
}

// DuplicateMember is one file occurrence inside a DuplicateGroup.
type DuplicateMember struct {
	Digest       string     `json:"digest"`
	SubmissionID string     `json:"submission_id"`
	Student      StudentRef `json:"student"`
}

// DuplicateGroup holds all files across an assignment's authoritative
// submissions sharing one content digest. Only groups with more than one
// member are reported; groups are derived, never persisted.
type DuplicateGroup struct {
	Digest  string            `json:"digest"`
	Members []DuplicateMember `json:"members"`
}

// DuplicateReport is the result of a plagiarism scan over one assignment.
type DuplicateReport struct {
	Groups            []DuplicateGroup `json:"matches"`
	TotalFilesScanned int              `json:"total_files"`
}

// FileUpload is one incoming submission file.
type FileUpload struct {
	Filename string
	Src      io.Reader
}

// NewSubmission contains information needed to create a new Submission.
type NewSubmission struct {
	AssignmentID string
	StudentID    string
	Uploads      []FileUpload
	ExternalLink string
}

func (ns *NewSubmission) Validate() error {
	ns.ExternalLink = core.CleanString(ns.ExternalLink)
	if len(ns.Uploads) == 0 && ns.ExternalLink == "" {
		return core.NewValidationError(errors.New("a submission requires at least one file or an external link"))
	}
	return nil
}

// NewGrade contains information needed to grade a submission.
type NewGrade struct {
	Score        float64 `json:"score"`
	FeedbackText string  `json:"feedback_text"`
}

func (ng *NewGrade) Validate() error {
	ng.FeedbackText = core.CleanString(ng.FeedbackText)
	return core.Validate.Struct(ng)
}
