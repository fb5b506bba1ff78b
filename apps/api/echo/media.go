package echoapi

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// serveMedia serves the uploaded files.
func (s *Server) serveMedia(ctx echo.Context) error {
	f, info, err := s.deps.Media.Open(ctx.Param("*"))
	if err != nil {
		if os.IsNotExist(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "opening media file")
	}
	defer f.Close()

	ctx.Response().Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(ctx.Response(), ctx.Request(), info.Name(), info.ModTime(), f)
	return nil
}
