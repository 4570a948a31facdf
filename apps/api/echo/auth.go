package echoapi

import (
	"net/http"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core/auth"
	"github.com/maktab-uz/maktab/core/permission"
	"github.com/maktab-uz/maktab/core/user"
)

const (
	tokenContextKey  = "userToken"
	userContextKey   = "user"
	objectContextKey = "object"
)

var errUsrNotFoundInCtx = errors.New("user not found in echo.Context")

// jwtConfig checks the signature and expiry of bearer access tokens.
func jwtConfig(tokens *auth.TokenService) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    tokens.SigningKey(),
		SigningMethod: auth.SigningMethod.Alg(),
		ContextKey:    tokenContextKey,
		Claims:        new(auth.Claims),
	}
}

func getContextClaims(ctx echo.Context) (*auth.Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*auth.Claims); ok {
			return claims, nil
		}
	}
	return nil, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUsrNotFoundInCtx
}

// principal returns the caller of the request, the anonymous Principal when no session was opened.
func principal(ctx echo.Context) permission.Principal {
	usr, err := getContextUser(ctx)
	if err != nil {
		return permission.Principal{}
	}
	return permission.NewPrincipal(usr)
}

// sessionMiddleware runs after the JWT middleware. It rejects refresh tokens used as access tokens
// and tokens of a revoked lineage, then loads the active User owning the token.
func sessionMiddleware(tokens *auth.TokenService, svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if err = auth.CheckTokenType(claims, auth.TokenTypeAccess); err != nil {
				return invalidTokenError(err)
			}
			if err = tokens.CheckLineage(ctx.Request().Context(), claims); err != nil {
				if auth.IsTokenError(err) {
					return invalidTokenError(err)
				}
				return errors.Wrap(err, "checking token lineage")
			}

			usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return invalidTokenError(err)
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			ctx.Set(userContextKey, usr)
			return next(ctx)
		}
	}
}

func invalidTokenError(err error) error {
	return &echo.HTTPError{Code: http.StatusUnauthorized, Message: auth.ErrTokenInvalid.Error(), Internal: err}
}
