package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/core/user"
)

type roleApi struct {
	svc *role.Service
}

func registerRoleAPI(g *echo.Group, s *Server, authed []echo.MiddlewareFunc) {
	api := roleApi{svc: s.deps.RoleSvc}

	rg := g.Group("/roles", authed...)
	rg.GET("/me", api.status)
	rg.POST("/choose", api.choose)
	rg.POST("/request", api.request)

	qg := g.Group("/role-requests", authed...)
	qg.GET("", api.listPending)
	qg.GET("/mine", api.listMine)
	qg.POST("/:id/approve", api.approve)
	qg.POST("/:id/reject", api.reject)
}

type RoleRequest struct {
	Role role.Role `json:"role"`
}

func (api *roleApi) status(ctx echo.Context) error {
	usr, err := mustGetContextUser(ctx)
	if err != nil {
		return err
	}
	status, err := api.svc.CurrentState(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting role state")
	}
	return ctx.JSON(http.StatusOK, status)
}

func (api *roleApi) choose(ctx echo.Context) error {
	return api.submit(ctx, api.svc.ChooseRole)
}

func (api *roleApi) request(ctx echo.Context) error {
	return api.submit(ctx, api.svc.RequestRole)
}

func (api *roleApi) submit(ctx echo.Context, fn func(context.Context, user.User, role.Role) (role.Submission, error)) error {
	var data RoleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RoleRequest")
	}
	usr, err := mustGetContextUser(ctx)
	if err != nil {
		return err
	}

	sub, err := fn(ctx.Request().Context(), usr, data.Role)
	if err != nil {
		return errors.Wrap(err, "submitting role")
	}
	code := http.StatusOK
	if sub.Request != nil {
		code = http.StatusCreated
	}
	return ctx.JSON(code, sub)
}

func (api *roleApi) listPending(ctx echo.Context) error {
	usr, err := mustGetContextUser(ctx)
	if err != nil {
		return err
	}
	reqs, err := api.svc.ListPending(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing pending requests")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *roleApi) listMine(ctx echo.Context) error {
	usr, err := mustGetContextUser(ctx)
	if err != nil {
		return err
	}
	reqs, err := api.svc.ListMine(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing requests")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *roleApi) approve(ctx echo.Context) error {
	return api.review(ctx, api.svc.Approve)
}

func (api *roleApi) reject(ctx echo.Context) error {
	return api.review(ctx, api.svc.Reject)
}

func (api *roleApi) review(ctx echo.Context, fn func(context.Context, user.User, string) (role.Request, error)) error {
	usr, err := mustGetContextUser(ctx)
	if err != nil {
		return err
	}
	req, err := fn(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "reviewing request")
	}
	return ctx.JSON(http.StatusOK, req)
}
