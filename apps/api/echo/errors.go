package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/content"
	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/core/user"
)

var (
	errUnauthorized     = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAccountSuspended = echo.NewHTTPError(http.StatusForbidden, user.ErrAccountSuspended.Error())
	errRefreshExpired   = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden    = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound     = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// domainErrorCode returns the HTTP status of a known domain error, or 0.
func domainErrorCode(err error) int {
	switch err {
	case user.ErrInvalidCredentials:
		return http.StatusBadRequest
	case role.ErrForbidden, content.ErrForbidden, user.ErrAccountSuspended:
		return http.StatusForbidden
	case role.ErrNotFound, user.ErrNotFound, content.ErrNotFound:
		return http.StatusNotFound
	case role.ErrDuplicateRequest, role.ErrStaleRequest, role.ErrRoleAlreadyChosen, role.ErrAlreadyGranted:
		return http.StatusConflict
	default:
		return 0
	}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if code = domainErrorCode(origErr); code != 0 {
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := "something went wrong, please try again"
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, http.StatusText(code)), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
