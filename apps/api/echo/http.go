package echoapi

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
)

// contentDisposition builds an attachment header carrying both an ASCII-safe
// fallback filename and the RFC 5987 UTF-8 parameter.
func contentDisposition(filename string) string {
	fallback := core.SanitizeFilename(filename)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback, url.PathEscape(filename))
}

// sendStoredFile streams one stored file as an attachment. Path violations
// surface as 403 via the error handler; files whose bytes are gone as 404.
func sendStoredFile(ctx echo.Context, store core.FileStore, file core.StoredFile) error {
	src, err := store.Open(file.Path)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return errHttpNotFound
		}
		return err
	}
	defer func() { _ = src.Close() }()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, contentDisposition(file.Filename))
	return ctx.Stream(http.StatusOK, echo.MIMEOctetStream, src)
}
