package submission

import (
	"context"

	"github.com/pkg/errors"
)

// DetectDuplicates groups every file across the assignment's authoritative
// submissions by content digest and reports the groups with more than one
// member, in the order their digests were first encountered. Files whose bytes
// cannot be hashed are logged and skipped; a single bad file never aborts the
// scan. TotalFilesScanned counts every file examined, hashed or not.
//
// Detection is byte-exact and filename-independent: the digest is the sole
// similarity signal, and scope is always a single assignment.
func (svc *Service) DetectDuplicates(ctx context.Context, assignmentID string) (DuplicateReport, error) {
	rows, err := svc.ResolveAuthoritative(ctx, assignmentID)
	if err != nil {
		return DuplicateReport{}, err
	}

	report := DuplicateReport{Groups: []DuplicateGroup{}}
	byDigest := make(map[string][]DuplicateMember)
	var order []string

	for _, row := range rows {
		if row.Submission == nil {
			continue
		}
		for _, file := range row.Submission.Files {
			if err := ctx.Err(); err != nil {
				return DuplicateReport{}, errors.Wrap(err, "scanning files")
			}
			report.TotalFilesScanned++

			digest, err := svc.store.Hash(file.Path)
			if err != nil {
				svc.log.Warn("hashing submission file failed; skipping", err, file.Path)
				continue
			}

			if _, seen := byDigest[digest]; !seen {
				order = append(order, digest)
			}
			byDigest[digest] = append(byDigest[digest], DuplicateMember{
				Digest:       digest,
				SubmissionID: row.Submission.ID,
				Student:      row.Student,
			})
		}
	}

	for _, digest := range order {
		if members := byDigest[digest]; len(members) > 1 {
			report.Groups = append(report.Groups, DuplicateGroup{Digest: digest, Members: members})
		}
	}
	return report, nil
}
