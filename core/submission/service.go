package submission

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/course"
)

var (
	ErrNotFound      = errors.New("submission not found")
	ErrFileNotFound  = errors.New("submission file not found")
	ErrGradeNotFound = errors.New("grade not found")
)

type (
	Repository interface {
		// CreateSubmission inserts sub with Version = max(existing)+1 for its
		// (assignment, student) pair, assigned transactionally.
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		// SubmissionsByStudent returns the pair's submissions ordered by version descending.
		SubmissionsByStudent(ctx context.Context, assignmentID, studentID string) ([]Submission, error)
		// LatestSubmission returns the authoritative (max-version) submission
		// for the pair, or ErrNotFound.
		LatestSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		UpsertGrade(ctx context.Context, g Grade) (Grade, error)
		GetGrade(ctx context.Context, submissionID string) (Grade, error)
	}

	Service struct {
		repo       Repository
		courseRepo course.Repository
		store      core.FileStore
		log        core.Logger
	}
)

func NewService(repo Repository, courseRepo course.Repository, store core.FileStore, log core.Logger) *Service {
	return &Service{repo: repo, courseRepo: courseRepo, store: store, log: log}
}

// Create stores the uploaded files and appends a new submission version for
// the (assignment, student) pair. Earlier versions and their files are never
// touched.
func (svc *Service) Create(ctx context.Context, ns NewSubmission) (Submission, error) {
	a, err := svc.courseRepo.GetAssignment(ctx, ns.AssignmentID)
	if err != nil {
		return Submission{}, err
	}

	files := core.FileList{}
	subdir := filepath.Join("submissions", a.CourseID, a.ID, ns.StudentID)
	for _, up := range ns.Uploads {
		sf, err := svc.store.Save(subdir, up.Filename, up.Src)
		if err != nil {
			return Submission{}, errors.Wrap(err, "saving submission file")
		}
		files = append(files, sf)
	}

	sub, err := svc.repo.CreateSubmission(ctx, Submission{
		AssignmentID: ns.AssignmentID,
		StudentID:    ns.StudentID,
		Files:        files,
		ExternalLink: ns.ExternalLink,
		SubmittedAt:  time.Now().UTC(),
	})
	if err != nil {
		// keep storage consistent with the DB
		for _, sf := range files {
			if rmErr := svc.store.Remove(sf.Path); rmErr != nil {
				svc.log.Warn("removing orphaned submission file", rmErr)
			}
		}
		return Submission{}, err
	}
	return sub, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmission(ctx, id)
}

// History returns a student's own submissions for an assignment, newest version first.
func (svc *Service) History(ctx context.Context, assignmentID, studentID string) ([]StudentSubmission, error) {
	subs, err := svc.repo.SubmissionsByStudent(ctx, assignmentID, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	rows := make([]StudentSubmission, 0, len(subs))
	for i := range subs {
		sub := subs[i]
		row := StudentSubmission{Student: StudentRef{ID: studentID}, Submission: &sub}
		if grade, err := svc.repo.GetGrade(ctx, sub.ID); err == nil {
			row.Grade = &grade
		} else if errors.Cause(err) != ErrGradeNotFound {
			return nil, errors.Wrap(err, "querying grade")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ResolveAuthoritative enumerates the assignment's course STUDENT enrollments
// in stable ascending order and pairs each with the max-version submission for
// the (assignment, student) pair, or nil if none exists. Both the duplicate
// detector and the archive exporter consume this single definition of
// "current state of the world".
func (svc *Service) ResolveAuthoritative(ctx context.Context, assignmentID string) ([]StudentSubmission, error) {
	a, err := svc.courseRepo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	enrollments, err := svc.courseRepo.Enrollments(ctx, a.CourseID, course.RoleStudent)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	rows := make([]StudentSubmission, 0, len(enrollments))
	for _, enr := range enrollments {
		row := StudentSubmission{Student: newStudentRef(enr.User, enr.UserID)}
		sub, err := svc.repo.LatestSubmission(ctx, assignmentID, enr.UserID)
		switch errors.Cause(err) {
		case nil:
			row.Submission = &sub
		case ErrNotFound:
			// student never submitted
		default:
			return nil, errors.Wrap(err, "querying latest submission")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ListLatest is the staff view: ResolveAuthoritative plus each submission's grade.
func (svc *Service) ListLatest(ctx context.Context, assignmentID string) ([]StudentSubmission, error) {
	rows, err := svc.ResolveAuthoritative(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Submission == nil {
			continue
		}
		grade, err := svc.repo.GetGrade(ctx, rows[i].Submission.ID)
		if err != nil {
			if errors.Cause(err) == ErrGradeNotFound {
				continue
			}
			return nil, errors.Wrap(err, "querying grade")
		}
		rows[i].Grade = &grade
	}
	return rows, nil
}

// SetGrade records (or replaces) the grade on a submission.
func (svc *Service) SetGrade(ctx context.Context, submissionID, graderID string, ng NewGrade) (Grade, error) {
	if _, err := svc.repo.GetSubmission(ctx, submissionID); err != nil {
		return Grade{}, err
	}
	return svc.repo.UpsertGrade(ctx, Grade{
		SubmissionID: submissionID,
		GraderID:     graderID,
		Score:        ng.Score,
		FeedbackText: ng.FeedbackText,
		GradedAt:     time.Now().UTC(),
	})
}

// File returns the idx-th file of a submission, or ErrFileNotFound.
func (svc *Service) File(sub Submission, idx int) (core.StoredFile, error) {
	if idx < 0 || idx >= len(sub.Files) {
		return core.StoredFile{}, ErrFileNotFound
	}
	return sub.Files[idx], nil
}
