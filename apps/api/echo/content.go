package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/content"
	"github.com/trezcool/shule/core/user"
)

// contentService is implemented by content.Service and the services embedding it.
type contentService[T any] interface {
	Collection() content.Collection
	List(ctx context.Context, actor *user.User, filter content.Filter) ([]T, error)
	Get(ctx context.Context, actor *user.User, id string) (T, error)
	Create(ctx context.Context, actor *user.User, item T) (T, error)
	Update(ctx context.Context, actor *user.User, id string, item T) (T, error)
	Delete(ctx context.Context, actor *user.User, id string) error
}

type contentApi[T any] struct {
	svc contentService[T]
}

// registerContentAPI registers the CRUD endpoints of svc's Collection on g.
// Access is checked by svc: g only needs to set the context User, if any.
func registerContentAPI[T any](g *echo.Group, svc contentService[T]) {
	api := &contentApi[T]{svc: svc}
	g.GET("", api.list)
	g.POST("", api.create)
	g.GET("/:id", api.retrieve)
	g.PUT("/:id", api.update)
	g.DELETE("/:id", api.destroy)
}

func (api *contentApi[T]) list(ctx echo.Context) error {
	filter, err := bindFilter(ctx)
	if err != nil {
		return err
	}
	items, err := api.svc.List(ctx.Request().Context(), getContextUser(ctx), filter)
	if err != nil {
		return errors.Wrapf(err, "listing %s", api.svc.Collection())
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *contentApi[T]) retrieve(ctx echo.Context) error {
	item, err := api.svc.Get(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "getting %s", api.svc.Collection())
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *contentApi[T]) create(ctx echo.Context) error {
	var item T
	if err := ctx.Bind(&item); err != nil {
		return errors.Wrapf(err, "binding to %T", item)
	}
	item, err := api.svc.Create(ctx.Request().Context(), getContextUser(ctx), item)
	if err != nil {
		return errors.Wrapf(err, "creating %s", api.svc.Collection())
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *contentApi[T]) update(ctx echo.Context) error {
	var item T
	if err := ctx.Bind(&item); err != nil {
		return errors.Wrapf(err, "binding to %T", item)
	}
	item, err := api.svc.Update(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"), item)
	if err != nil {
		return errors.Wrapf(err, "updating %s", api.svc.Collection())
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *contentApi[T]) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrapf(err, "deleting %s", api.svc.Collection())
	}
	return ctx.NoContent(http.StatusNoContent)
}

func registerGalleryAPI(g *echo.Group, svc *content.GalleryService) {
	registerContentAPI[content.GalleryImage](g, svc)
	g.POST("/upload", func(ctx echo.Context) error {
		fh, err := ctx.FormFile("file")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"file": "this field is required"})
		}
		f, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening upload")
		}
		defer f.Close()

		img := content.GalleryImage{
			Title:   ctx.FormValue("title"),
			Caption: ctx.FormValue("caption"),
			Album:   ctx.FormValue("album"),
		}
		img, err = svc.Upload(ctx.Request().Context(), getContextUser(ctx), img, fh.Filename, f)
		if err != nil {
			return errors.Wrap(err, "uploading gallery image")
		}
		return ctx.JSON(http.StatusCreated, img)
	})
}

type ReplyRequest struct {
	Reply string `json:"reply"`
}

func registerFeedbackAPI(g *echo.Group, svc *content.FeedbackService) {
	registerContentAPI[content.FeedbackEntry](g, svc)
	g.POST("/:id/reply", func(ctx echo.Context) error {
		var data ReplyRequest
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to ReplyRequest")
		}
		fb, err := svc.Reply(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"), data.Reply)
		if err != nil {
			return errors.Wrap(err, "replying to feedback")
		}
		return ctx.JSON(http.StatusOK, fb)
	})
}
