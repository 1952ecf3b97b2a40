package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/course"
	"github.com/darasahub/darasa/core/user"
)

type assignmentApi struct {
	svc     *course.Service
	userSvc *user.Service
	store   core.FileStore
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *course.Service, userSvc *user.Service, store core.FileStore) {
	api := assignmentApi{svc: svc, userSvc: userSvc, store: store}

	cg := g.Group("/courses/:courseID/assignments", jwt)
	cg.POST("", api.create)
	cg.GET("", api.query)

	ag := g.Group("/assignments/:id", jwt)
	ag.GET("", api.retrieve)
	ag.POST("/materials", api.uploadMaterials)
	ag.GET("/materials", api.queryMaterials)
	ag.GET("/materials/:idx/download", api.downloadMaterial)
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	c, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("courseID"))
	if err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	staff, err := api.svc.IsStaff(ctx.Request().Context(), c.ID, usr)
	if err != nil {
		return err
	}
	if !staff {
		return errHttpForbidden
	}

	var data course.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	a, err := api.svc.CreateAssignment(ctx.Request().Context(), c.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	c, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("courseID"))
	if err != nil {
		return err
	}

	if err := api.requireMember(ctx, c.ID); err != nil {
		return err
	}
	assignments, err := api.svc.AssignmentsByCourse(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []course.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	a, err := api.svc.GetAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if err := api.requireMember(ctx, a.CourseID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, AssignmentResponse{
		Assignment: a,
		Materials:  newFileResponses(a.Materials),
	})
}

func (api *assignmentApi) uploadMaterials(ctx echo.Context) error {
	a, err := api.svc.GetAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	staff, err := api.svc.IsStaff(ctx.Request().Context(), a.CourseID, usr)
	if err != nil {
		return err
	}
	if !staff {
		return errHttpForbidden
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return errors.Wrap(err, "reading multipart form")
	}
	var uploads []course.MaterialUpload
	for _, fh := range form.File["files"] {
		src, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening uploaded file")
		}
		defer func() { _ = src.Close() }()
		uploads = append(uploads, course.MaterialUpload{Filename: fh.Filename, Src: src})
	}

	materials, err := api.svc.AddMaterials(ctx.Request().Context(), a, uploads)
	if err != nil {
		return errors.Wrap(err, "adding materials")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"materials": newFileResponses(materials)})
}

func (api *assignmentApi) queryMaterials(ctx echo.Context) error {
	a, err := api.svc.GetAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if err := api.requireMember(ctx, a.CourseID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newFileResponses(a.Materials))
}

func (api *assignmentApi) downloadMaterial(ctx echo.Context) error {
	a, err := api.svc.GetAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if err := api.requireMember(ctx, a.CourseID); err != nil {
		return err
	}

	idx, err := strconv.Atoi(ctx.Param("idx"))
	if err != nil || idx < 0 || idx >= len(a.Materials) {
		return errHttpNotFound
	}
	return sendStoredFile(ctx, api.store, a.Materials[idx])
}

func (api *assignmentApi) requireMember(ctx echo.Context, courseID string) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	member, err := api.svc.IsMember(ctx.Request().Context(), courseID, usr)
	if err != nil {
		return err
	}
	if !member {
		return errHttpForbidden
	}
	return nil
}

type (
	// FileResponse lists one stored file by position; downloads address files
	// by this index, never by path.
	FileResponse struct {
		Idx        int       `json:"idx"`
		Filename   string    `json:"filename"`
		Size       int64     `json:"size"`
		UploadedAt time.Time `json:"uploaded_at"`
	}

	AssignmentResponse struct {
		course.Assignment
		Materials []FileResponse `json:"materials"`
	}
)

func newFileResponses(files core.FileList) []FileResponse {
	resp := make([]FileResponse, 0, len(files))
	for i, f := range files {
		resp = append(resp, FileResponse{Idx: i, Filename: f.Filename, Size: f.Size, UploadedAt: f.UploadedAt})
	}
	return resp
}
