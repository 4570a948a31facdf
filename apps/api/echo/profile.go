package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core/permission"
	"github.com/maktab-uz/maktab/core/user"
)

type profileApi struct {
	kind     user.ProfileKind
	svc      user.Service
	validate *validator.Validate
}

// registerProfileAPI mounts the onboarding and profile endpoints of kind under `/<kind>s`.
// ownPolicy gates `/<kind>s/me`.
func registerProfileAPI(
	g *echo.Group,
	kind user.ProfileKind,
	ownPolicy permission.Policy,
	deps *Deps,
	jwt, session echo.MiddlewareFunc,
) {
	api := profileApi{
		kind:     kind,
		svc:      deps.UserSvc,
		validate: deps.Validate,
	}
	admin := policyMiddleware(permission.AdminUser)

	pg := g.Group("/"+string(kind)+"s", jwt, session)
	pg.GET("", api.query, admin)
	pg.POST("", api.register, admin)
	pg.GET("/me", api.retrieveOwn, policyMiddleware(ownPolicy))
	pg.POST("/by-ids", api.queryByIDs, admin)

	// detail endpoints: only staff learn whether an id exists
	load := profileObjectMiddleware(kind, api.svc, permission.AdminUser)
	pg.GET("/:id", api.retrieve, load, objectPolicyMiddleware(permission.AdminOrOwner))
	pg.PUT("/:id", api.update, admin, load)
}

// Handlers

func (api *profileApi) register(ctx echo.Context) error {
	var data user.NewProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProfile")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	prof, err := api.svc.Register(ctx.Request().Context(), api.kind, data)
	if err != nil {
		return errors.Wrapf(err, "registering %s", api.kind)
	}
	return ctx.JSON(http.StatusCreated, prof)
}

func (api *profileApi) query(ctx echo.Context) error {
	page := bindPage(ctx)
	profs, count, err := api.svc.QueryProfiles(ctx.Request().Context(), api.kind, page)
	if err != nil {
		return errors.Wrapf(err, "querying %s profiles", api.kind)
	}
	if profs == nil {
		profs = []user.Profile{}
	}
	return ctx.JSON(http.StatusOK, newPageResponse(ctx, page, count, profs))
}

// queryByIDs answers `{"<kind>s": [...]}` with the profiles of kind among the requested IDs.
func (api *profileApi) queryByIDs(ctx echo.Context) error {
	var data IDsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}
	if len(data.IDs) == 0 {
		return errEmptyIDs
	}

	profs, err := api.svc.GetProfilesByIDs(ctx.Request().Context(), api.kind, data.IDs)
	if err != nil {
		return errors.Wrapf(err, "finding %s profiles by IDs", api.kind)
	}
	return ctx.JSON(http.StatusOK, echo.Map{string(api.kind) + "s": profs})
}

func (api *profileApi) retrieveOwn(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	prof, err := api.svc.GetProfileByUser(ctx.Request().Context(), api.kind, usr.ID)
	if err != nil {
		if errors.Cause(err) == user.ErrProfileNotFound {
			return errHttpNotFound
		}
		return errors.Wrapf(err, "finding %s profile by user", api.kind)
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *profileApi) retrieve(ctx echo.Context) error {
	prof, ok := ctx.Get(objectContextKey).(user.Profile)
	if !ok {
		return errors.New("profile not found in echo.Context")
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *profileApi) update(ctx echo.Context) error {
	prof, ok := ctx.Get(objectContextKey).(user.Profile)
	if !ok {
		return errors.New("profile not found in echo.Context")
	}

	var data user.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}

	prof, err := api.svc.UpdateProfile(ctx.Request().Context(), prof, data)
	if err != nil {
		return errors.Wrapf(err, "updating %s profile", api.kind)
	}
	return ctx.JSON(http.StatusOK, prof)
}

// profileObjectMiddleware loads the profile of kind of the `:id` path param as the context object.
// A missing profile is reported as not found to callers satisfying revealTo, as forbidden to the others.
func profileObjectMiddleware(kind user.ProfileKind, svc user.Service, revealTo permission.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			prof, err := svc.GetProfile(ctx.Request().Context(), kind, ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == user.ErrProfileNotFound {
					if err := permission.Check(revealTo, principal(ctx), nil); err != nil {
						return err
					}
					return errHttpNotFound
				}
				return errors.Wrapf(err, "finding %s profile by ID", kind)
			}
			ctx.Set(objectContextKey, prof)
			return next(ctx)
		}
	}
}
