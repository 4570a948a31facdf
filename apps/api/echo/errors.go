package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/auth"
	"github.com/maktab-uz/maktab/core/parent"
	"github.com/maktab-uz/maktab/core/permission"
	"github.com/maktab-uz/maktab/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, permission.ErrUnauthenticated.Error())
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, permission.ErrForbidden.Error())
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
	errEmptyIDs           = echo.NewHTTPError(http.StatusBadRequest, "ids must be a non-empty list")
)

// StatusResponse is the body of the account endpoints: a success flag and a human readable detail.
type StatusResponse struct {
	Status bool   `json:"status"`
	Detail string `json:"detail"`
}

// statusError is rendered as a StatusResponse with Status false.
type statusError struct {
	code   int
	detail string
	err    error
}

func newStatusError(code int, detail string, err error) *statusError {
	return &statusError{code: code, detail: detail, err: err}
}

func (se *statusError) Error() string {
	if se.err != nil {
		return se.err.Error()
	}
	return se.detail
}

var (
	errLoginFailed    = newStatusError(http.StatusUnauthorized, "Phone number or password is incorrect", auth.ErrAuthenticationFailed)
	errOTPNotVerified = newStatusError(http.StatusBadRequest, "OTP not verified", auth.ErrOTPNotVerified)
	errUserNotFound   = newStatusError(http.StatusNotFound, "User not found", user.ErrNotFound)
)

func fieldErrors(verrs validator.ValidationErrors, translator ut.Translator) map[string]string {
	fldErrs := make(map[string]string, len(verrs))
	for _, vErr := range verrs {
		fldErrs[vErr.Field()] = vErr.Translate(translator)
	}
	return fldErrs
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
		case *statusError:
			code = origErr.code
			message = StatusResponse{Status: false, Detail: origErr.detail}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = fieldErrors(origErr, translator)
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = StatusResponse{Status: false, Detail: origErr.Error()}
			}
			code = http.StatusBadRequest
		default:
			switch {
			case auth.IsTokenError(err): // refresh tokens submitted in a request body
				code = http.StatusBadRequest
				message = origErr.Error()
			case origErr == permission.ErrUnauthenticated:
				code = http.StatusUnauthorized
				message = origErr.Error()
			case origErr == permission.ErrForbidden:
				code = http.StatusForbidden
				message = origErr.Error()
			case origErr == user.ErrNotFound || origErr == user.ErrProfileNotFound || origErr == parent.ErrNotFound:
				code = http.StatusNotFound
				message = errHttpNotFound.Message
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				usr, _ := getContextUser(ctx)
				logger.Error(msg, errors.Wrap(err, msg), usr)

				if ctx.Echo().Debug {
					message = err.Error()
				}

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
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
