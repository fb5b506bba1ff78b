package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/core/user"
)

// ctxUserMiddleware loads the User behind the token, if any.
// A suspended account is refused even with a valid token: it is signed out on its next request.
func ctxUserMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil { // anonymous
				return next(ctx)
			}
			usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if usr.IsSuspended() {
				return errAccountSuspended
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

// adminMiddleware rejects accounts that are neither admin nor the owner. The services check again.
func adminMiddleware(svc *role.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := mustGetContextUser(ctx)
			if err != nil {
				return err
			}
			ok, err := svc.CanManage(ctx.Request().Context(), usr)
			if err != nil {
				return errors.Wrap(err, "checking admin")
			}
			if !ok {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// ctxUserOrAdminMiddleware sets the User ":id" as "object" when it is the context User, or the context User is an admin.
func ctxUserOrAdminMiddleware(usrSvc *user.Service, roleSvc *role.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := mustGetContextUser(ctx)
			if err != nil {
				return err
			}

			allowed := ctx.Param("id") == ctxUsr.ID
			if !allowed {
				if allowed, err = roleSvc.CanManage(ctx.Request().Context(), ctxUsr); err != nil {
					return errors.Wrap(err, "checking admin")
				}
			}
			if allowed {
				if usr, err := usrSvc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set("object", usr)
					return next(ctx)
				} else if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}
