package echoapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/course"
	"github.com/darasahub/darasa/core/submission"
	"github.com/darasahub/darasa/core/user"
)

type submissionApi struct {
	svc       *submission.Service
	courseSvc *course.Service
	userSvc   *user.Service
	store     core.FileStore
}

func registerSubmissionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *submission.Service,
	courseSvc *course.Service,
	userSvc *user.Service,
	store core.FileStore,
) {
	api := submissionApi{svc: svc, courseSvc: courseSvc, userSvc: userSvc, store: store}

	ag := g.Group("/assignments/:id", jwt)
	ag.POST("/submissions", api.submit)
	ag.GET("/submissions", api.queryLatest)
	ag.GET("/submissions/export", api.export)
	ag.GET("/my-submissions", api.history)
	ag.POST("/plagiarism-check", api.plagiarismCheck)

	sg := g.Group("/submissions/:id", jwt)
	sg.GET("/files", api.queryFiles)
	sg.GET("/files/:idx/download", api.downloadFile)
	sg.POST("/grade", api.grade)
}

// Handlers

func (api *submissionApi) submit(ctx echo.Context) error {
	a, err := api.courseSvc.GetAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	enr, err := api.courseSvc.GetEnrollment(ctx.Request().Context(), a.CourseID, usr.ID)
	if err != nil {
		if errors.Cause(err) == course.ErrEnrollmentNotFound {
			return errHttpForbidden
		}
		return errors.Wrap(err, "finding enrollment")
	}
	// only enrolled students hand in; staff and admins do not own submissions
	if enr.RoleInCourse != course.RoleStudent {
		return errHttpForbidden
	}

	if !a.AllowLate && time.Now().UTC().After(a.DueAt) {
		return core.NewValidationError(errors.New("the deadline has passed"))
	}

	ns := submission.NewSubmission{
		AssignmentID: a.ID,
		StudentID:    usr.ID,
		ExternalLink: ctx.FormValue("external_link"),
	}
	if form, err := ctx.MultipartForm(); err == nil {
		for _, fh := range form.File["files"] {
			src, err := fh.Open()
			if err != nil {
				return errors.Wrap(err, "opening uploaded file")
			}
			defer func() { _ = src.Close() }()
			ns.Uploads = append(ns.Uploads, submission.FileUpload{Filename: fh.Filename, Src: src})
		}
	}
	if err := ns.Validate(); err != nil {
		return err
	}

	sub, err := api.svc.Create(ctx.Request().Context(), ns)
	if err != nil {
		return errors.Wrap(err, "creating submission")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *submissionApi) history(ctx echo.Context) error {
	a, err := api.courseSvc.GetAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	usr, err := api.requireMember(ctx, a.CourseID)
	if err != nil {
		return err
	}

	rows, err := api.svc.History(ctx.Request().Context(), a.ID, usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying submission history")
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *submissionApi) queryLatest(ctx echo.Context) error {
	a, err := api.requireStaffAssignment(ctx)
	if err != nil {
		return err
	}

	rows, err := api.svc.ListLatest(ctx.Request().Context(), a.ID)
	if err != nil {
		return errors.Wrap(err, "querying latest submissions")
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *submissionApi) plagiarismCheck(ctx echo.Context) error {
	a, err := api.requireStaffAssignment(ctx)
	if err != nil {
		return err
	}

	report, err := api.svc.DetectDuplicates(ctx.Request().Context(), a.ID)
	if err != nil {
		return errors.Wrap(err, "detecting duplicates")
	}
	return ctx.JSON(http.StatusOK, report)
}

// export streams the archive straight to the client. All permission and
// existence checks run before the first byte is written; past that point a
// failure can only truncate the stream.
func (api *submissionApi) export(ctx echo.Context) error {
	a, err := api.requireStaffAssignment(ctx)
	if err != nil {
		return err
	}

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "application/zip")
	resp.Header().Set(echo.HeaderContentDisposition, contentDisposition(core.SanitizeFilename(a.Title)+"-submissions.zip"))
	resp.WriteHeader(http.StatusOK)

	return api.svc.ExportArchive(ctx.Request().Context(), a.ID, resp)
}

func (api *submissionApi) queryFiles(ctx echo.Context) error {
	sub, err := api.requireSubmissionAccess(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newFileResponses(sub.Files))
}

func (api *submissionApi) downloadFile(ctx echo.Context) error {
	sub, err := api.requireSubmissionAccess(ctx)
	if err != nil {
		return err
	}

	idx, err := strconv.Atoi(ctx.Param("idx"))
	if err != nil {
		return errHttpNotFound
	}
	file, err := api.svc.File(sub, idx)
	if err != nil {
		return err
	}
	return sendStoredFile(ctx, api.store, file)
}

func (api *submissionApi) grade(ctx echo.Context) error {
	sub, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	a, err := api.courseSvc.GetAssignment(ctx.Request().Context(), sub.AssignmentID)
	if err != nil {
		return err
	}
	usr, err := api.requireStaff(ctx, a.CourseID)
	if err != nil {
		return err
	}

	var data submission.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if data.Score < 0 || data.Score > float64(a.MaxPoints) {
		return core.NewValidationError(fmt.Errorf("score must be between 0 and %d", a.MaxPoints))
	}

	g, err := api.svc.SetGrade(ctx.Request().Context(), sub.ID, usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, g)
}

// Access checks

func (api *submissionApi) requireMember(ctx echo.Context, courseID string) (user.User, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return user.User{}, err
	}
	member, err := api.courseSvc.IsMember(ctx.Request().Context(), courseID, usr)
	if err != nil {
		return user.User{}, err
	}
	if !member {
		return user.User{}, errHttpForbidden
	}
	return usr, nil
}

func (api *submissionApi) requireStaff(ctx echo.Context, courseID string) (user.User, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return user.User{}, err
	}
	staff, err := api.courseSvc.IsStaff(ctx.Request().Context(), courseID, usr)
	if err != nil {
		return user.User{}, err
	}
	if !staff {
		return user.User{}, errHttpForbidden
	}
	return usr, nil
}

// requireStaffAssignment loads the :id assignment and authorizes the caller as
// course staff, in that order, so missing assignments read as 404 and known
// ones as 403.
func (api *submissionApi) requireStaffAssignment(ctx echo.Context) (course.Assignment, error) {
	a, err := api.courseSvc.GetAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return course.Assignment{}, err
	}
	if _, err := api.requireStaff(ctx, a.CourseID); err != nil {
		return course.Assignment{}, err
	}
	return a, nil
}

// requireSubmissionAccess authorizes the owning student or course staff.
func (api *submissionApi) requireSubmissionAccess(ctx echo.Context) (submission.Submission, error) {
	sub, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return submission.Submission{}, err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return submission.Submission{}, err
	}
	if usr.ID == sub.StudentID {
		return sub, nil
	}

	a, err := api.courseSvc.GetAssignment(ctx.Request().Context(), sub.AssignmentID)
	if err != nil {
		return submission.Submission{}, err
	}
	if _, err := api.requireStaff(ctx, a.CourseID); err != nil {
		return submission.Submission{}, err
	}
	return sub, nil
}
