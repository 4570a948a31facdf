package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core/permission"
)

// policyMiddleware gates a route behind policy, evaluated without a target.
func policyMiddleware(policy permission.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if err := permission.Check(policy, principal(ctx), nil); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// objectPolicyMiddleware gates a route behind policy, evaluated against the object
// a previous middleware stored in the context.
func objectPolicyMiddleware(policy permission.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			obj, ok := ctx.Get(objectContextKey).(permission.Owned)
			if !ok {
				return errors.New("owned object not found in echo.Context")
			}
			if err := permission.Check(policy, principal(ctx), obj); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
