package dummydb

import (
	"context"
	"sort"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/submission"
)

type submissionRepository struct {
	db *submissionTable
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db.submission}
}

func (repo *submissionRepository) CreateSubmission(_ context.Context, sub submission.Submission) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	maxVersion := 0
	for _, s := range repo.db.table {
		if s.AssignmentID == sub.AssignmentID && s.StudentID == sub.StudentID && s.Version > maxVersion {
			maxVersion = s.Version
		}
	}

	sub.ID = nextPK()
	sub.Version = maxVersion + 1
	if sub.Files == nil {
		sub.Files = core.FileList{}
	}
	repo.db.table[sub.ID] = &sub
	return sub, nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.table[id]; ok {
		return *sub, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) SubmissionsByStudent(_ context.Context, assignmentID, studentID string) ([]submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var subs []submission.Submission
	for _, s := range repo.db.table {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			subs = append(subs, *s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Version > subs[j].Version })
	return subs, nil
}

func (repo *submissionRepository) LatestSubmission(_ context.Context, assignmentID, studentID string) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *submission.Submission
	for _, s := range repo.db.table {
		if s.AssignmentID != assignmentID || s.StudentID != studentID {
			continue
		}
		if latest == nil || s.Version > latest.Version {
			latest = s
		}
	}
	if latest == nil {
		return submission.Submission{}, submission.ErrNotFound
	}
	return *latest, nil
}

func (repo *submissionRepository) UpsertGrade(_ context.Context, g submission.Grade) (submission.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.grades[g.SubmissionID] = &g
	return g, nil
}

func (repo *submissionRepository) GetGrade(_ context.Context, submissionID string) (submission.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if g, ok := repo.db.grades[submissionID]; ok {
		return *g, nil
	}
	return submission.Grade{}, submission.ErrGradeNotFound
}
