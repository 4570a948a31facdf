package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core/parent"
	"github.com/maktab-uz/maktab/core/permission"
)

type parentApi struct {
	svc      parent.Service
	validate *validator.Validate
}

// registerParentAPI mounts the staff-only parent endpoints under `/parents`.
func registerParentAPI(g *echo.Group, deps *Deps, jwt, session echo.MiddlewareFunc) {
	api := parentApi{
		svc:      deps.ParentSvc,
		validate: deps.Validate,
	}

	pg := g.Group("/parents", jwt, session, policyMiddleware(permission.AdminUser))
	pg.GET("", api.query)
	pg.POST("", api.create)

	load := parentObjectMiddleware(api.svc)
	pg.GET("/:id", api.retrieve, load)
	pg.PUT("/:id", api.update, load)
	pg.DELETE("/:id", api.delete, load)
}

// Handlers

func (api *parentApi) query(ctx echo.Context) error {
	page := bindPage(ctx)
	parents, count, err := api.svc.Query(ctx.Request().Context(), page)
	if err != nil {
		return errors.Wrap(err, "querying parents")
	}
	if parents == nil {
		parents = []parent.Parent{}
	}
	return ctx.JSON(http.StatusOK, newPageResponse(ctx, page, count, parents))
}

func (api *parentApi) create(ctx echo.Context) error {
	var data parent.NewParent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewParent")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating parent")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *parentApi) retrieve(ctx echo.Context) error {
	p, ok := ctx.Get(objectContextKey).(parent.Parent)
	if !ok {
		return errors.New("parent not found in echo.Context")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *parentApi) update(ctx echo.Context) error {
	p, ok := ctx.Get(objectContextKey).(parent.Parent)
	if !ok {
		return errors.New("parent not found in echo.Context")
	}

	var data parent.UpdateParent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateParent")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "updating parent")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *parentApi) delete(ctx echo.Context) error {
	p, ok := ctx.Get(objectContextKey).(parent.Parent)
	if !ok {
		return errors.New("parent not found in echo.Context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), p.ID); err != nil {
		return errors.Wrap(err, "deleting parent")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// parentObjectMiddleware loads the parent of the `:id` path param as the context object.
func parentObjectMiddleware(svc parent.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == parent.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding parent by ID")
			}
			ctx.Set(objectContextKey, p)
			return next(ctx)
		}
	}
}
