package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/core/user"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type userApi struct {
	svc      *user.Service
	roleSvc  *role.Service
	validate *validator.Validate
	server   *Server
}

func registerUserAPI(g *echo.Group, s *Server, authed []echo.MiddlewareFunc) {
	api := userApi{
		svc:      s.deps.UserSvc,
		roleSvc:  s.deps.RoleSvc,
		validate: s.deps.Validate,
		server:   s,
	}
	admin := adminMiddleware(api.roleSvc)

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/signup", api.signup)
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", authed...)
	ag.POST("/logout", api.logout)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.GET("", api.query, admin)
	ag.POST("/:id/suspend", api.suspend, admin)
	ag.POST("/:id/unsuspend", api.unsuspend, admin)
	ag.PUT("/:id/role", api.changeRole, admin)

	// detail endpoints
	dg := ag.Group("/:id", ctxUserOrAdminMiddleware(api.svc, api.roleSvc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
}

// Handlers

func (api *userApi) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	resp, err := api.loginResponse(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, resp)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return err
	}
	resp, err := api.loginResponse(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

// loginResponse tells the client where usr lands.
func (api *userApi) loginResponse(ctx echo.Context, usr user.User) (LoginResponse, error) {
	token, err := api.server.newToken(usr)
	if err != nil {
		return LoginResponse{}, err
	}
	status, err := api.roleSvc.CurrentState(ctx.Request().Context(), usr)
	if err != nil {
		return LoginResponse{}, errors.Wrap(err, "getting role state")
	}
	return LoginResponse{Token: token, User: usr, Status: status}, nil
}

// logout is a no-op: tokens are discarded by the client.
func (api *userApi) logout(ctx echo.Context) error {
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.server.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := mustGetContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	ctxUsr, err := mustGetContextUser(ctx)
	if err != nil {
		return err
	}
	isAdmin, err := api.roleSvc.CanManage(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "checking admin")
	}
	// the owner's account is the owner's business
	if !api.roleSvc.Policy().CanActOn(ctxUsr, usr) {
		return errHttpForbidden
	}
	// `IsActive` and `Email` can only be changed by admin
	if !isAdmin && (data.IsActive != nil || (data.Email != "" && data.Email != usr.Email)) {
		return errHttpForbidden
	}
	// admins cannot suspend themselves
	if data.IsActive != nil && !*data.IsActive && usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if err = data.Validate(ctx.Request().Context(), usr, api.validate, api.svc); err != nil {
		return err
	}
	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) suspend(ctx echo.Context) error {
	return api.setActive(ctx, false)
}

func (api *userApi) unsuspend(ctx echo.Context) error {
	return api.setActive(ctx, true)
}

func (api *userApi) setActive(ctx echo.Context, active bool) error {
	ctxUsr, err := mustGetContextUser(ctx)
	if err != nil {
		return err
	}
	// Say No to Suicide! ctxUser cannot suspend themselves
	if ctx.Param("id") == ctxUsr.ID {
		return errHttpForbidden
	}

	target, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	if !api.roleSvc.Policy().CanActOn(ctxUsr, target) {
		return errHttpForbidden
	}

	usr, err := api.svc.SetActive(ctx.Request().Context(), target.ID, active)
	if err != nil {
		return errors.Wrap(err, "setting active")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) changeRole(ctx echo.Context) error {
	var data RoleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RoleRequest")
	}
	ctxUsr, err := mustGetContextUser(ctx)
	if err != nil {
		return err
	}

	grant, err := api.roleSvc.ChangeRole(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data.Role)
	if err != nil {
		return errors.Wrap(err, "changing role")
	}
	return ctx.JSON(http.StatusOK, grant)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token  string             `json:"token"`
		User   user.User          `json:"user"`
		Status role.AccountStatus `json:"status"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
