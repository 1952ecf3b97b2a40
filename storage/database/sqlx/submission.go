package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/submission"
)

type submissionRepository struct {
	db *sqlx.DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *sqlx.DB) *submissionRepository {
	return &submissionRepository{db: db}
}

type submissionRow struct {
	ID           string        `db:"id"`
	AssignmentID string        `db:"assignment_id"`
	StudentID    string        `db:"student_id"`
	Version      int           `db:"version"`
	Files        core.FileList `db:"files_json"`
	ExternalLink string        `db:"external_link"`
	SubmittedAt  time.Time     `db:"submitted_at"`
}

func (r submissionRow) unpack() submission.Submission {
	return submission.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		Version:      r.Version,
		Files:        r.Files,
		ExternalLink: r.ExternalLink,
		SubmittedAt:  r.SubmittedAt,
	}
}

// CreateSubmission assigns Version = max(existing)+1 inside one transaction;
// the (assignment_id, student_id, version) unique constraint backstops
// concurrent hand-ins from the same student.
func (repo *submissionRepository) CreateSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	var maxVersion int
	err = tx.GetContext(ctx, &maxVersion, `
		SELECT COALESCE(MAX(version), 0) FROM submission
		WHERE assignment_id = $1 AND student_id = $2`,
		sub.AssignmentID, sub.StudentID)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "querying max version")
	}

	sub.ID = uuid.New().String()
	sub.Version = maxVersion + 1
	files, err := sub.Files.Value()
	if err != nil {
		return submission.Submission{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO submission (id, assignment_id, student_id, version, files_json, external_link, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.AssignmentID, sub.StudentID, sub.Version, files, sub.ExternalLink, sub.SubmittedAt)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}

	if err := tx.Commit(); err != nil {
		return submission.Submission{}, errors.Wrap(err, "committing submission")
	}
	return sub, nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM submission WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "finding submission")
	}
	return row.unpack(), nil
}

func (repo *submissionRepository) SubmissionsByStudent(ctx context.Context, assignmentID, studentID string) ([]submission.Submission, error) {
	var rows []submissionRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM submission
		WHERE assignment_id = $1 AND student_id = $2
		ORDER BY version DESC`, assignmentID, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.unpack())
	}
	return subs, nil
}

func (repo *submissionRepository) LatestSubmission(ctx context.Context, assignmentID, studentID string) (submission.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT * FROM submission
		WHERE assignment_id = $1 AND student_id = $2
		ORDER BY version DESC
		LIMIT 1`, assignmentID, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "finding latest submission")
	}
	return row.unpack(), nil
}

func (repo *submissionRepository) UpsertGrade(ctx context.Context, g submission.Grade) (submission.Grade, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO grade (submission_id, grader_id, score, feedback_text, graded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (submission_id)
		DO UPDATE SET grader_id = $2, score = $3, feedback_text = $4, graded_at = $5`,
		g.SubmissionID, g.GraderID, g.Score, g.FeedbackText, g.GradedAt)
	if err != nil {
		return submission.Grade{}, errors.Wrap(err, "upserting grade")
	}
	return g, nil
}

func (repo *submissionRepository) GetGrade(ctx context.Context, submissionID string) (submission.Grade, error) {
	var g submission.Grade
	err := repo.db.QueryRowContext(ctx, `
		SELECT submission_id, grader_id, score, feedback_text, graded_at
		FROM grade WHERE submission_id = $1`, submissionID).
		Scan(&g.SubmissionID, &g.GraderID, &g.Score, &g.FeedbackText, &g.GradedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return submission.Grade{}, submission.ErrGradeNotFound
		}
		return submission.Grade{}, errors.Wrap(err, "finding grade")
	}
	return g, nil
}
