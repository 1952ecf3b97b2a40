package submission

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
)

// ExportArchive streams every authoritative submission's files into a single
// zip written directly to w; the archive is never materialized on disk or
// buffered whole in memory. Entry names are
// {sanitized studentID|user ID}{sanitized student name}{original extension},
// made collision-free by the name allocator. Students with no authoritative
// submission, or with one holding zero files, produce no entry. Source files
// that cannot be opened are logged and skipped so one missing file cannot fail
// a whole course's export; the archive is finalized on every exit path so the
// client always receives a terminated stream.
func (svc *Service) ExportArchive(ctx context.Context, assignmentID string, w io.Writer) (err error) {
	rows, err := svc.ResolveAuthoritative(ctx, assignmentID)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "finalizing archive")
		}
	}()

	flusher, _ := w.(http.Flusher)
	alloc := make(nameAllocator)

	for _, row := range rows {
		if row.Submission == nil {
			continue
		}
		base := core.SanitizeFilename(entryBase(row.Student))

		for _, file := range row.Submission.Files {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "streaming archive")
			}

			name := alloc.allocate(base + filepath.Ext(file.Filename))

			src, err := svc.store.Open(file.Path)
			if err != nil {
				svc.log.Warn("opening submission file failed; skipping entry", err, file.Path)
				continue
			}

			if err := appendEntry(zw, name, file, src); err != nil {
				_ = src.Close()
				return err
			}
			if err := src.Close(); err != nil {
				svc.log.Warn("closing submission file", err, file.Path)
			}

			// hand the finished entry to the client before reading the next file
			_ = zw.Flush()
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
	return nil
}

func appendEntry(zw *zip.Writer, name string, file core.StoredFile, src io.Reader) error {
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: file.UploadedAt,
	})
	if err != nil {
		return errors.Wrap(err, "creating archive entry")
	}
	if _, err := io.Copy(entry, src); err != nil {
		// the outbound stream is unusable once an entry write fails
		return errors.Wrap(err, "writing archive entry")
	}
	return nil
}

// entryBase prefers the school-issued student identifier, falling back to the
// user PK when a roster has none.
func entryBase(student StudentRef) string {
	id := student.StudentID
	if id == "" {
		id = student.ID
	}
	return id + student.Name
}
