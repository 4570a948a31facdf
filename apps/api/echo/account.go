package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/auth"
	"github.com/maktab-uz/maktab/core/user"
	"github.com/maktab-uz/maktab/services/metrics"
)

type accountApi struct {
	svc      user.Service
	authn    *auth.Authenticator
	tokens   *auth.TokenService
	otp      *auth.OTPService
	validate *validator.Validate
	logger   core.Logger
}

func registerAccountAPI(g *echo.Group, deps *Deps, jwt, session echo.MiddlewareFunc) {
	api := accountApi{
		svc:      deps.UserSvc,
		authn:    deps.Authenticator,
		tokens:   deps.Tokens,
		otp:      deps.OTP,
		validate: deps.Validate,
		logger:   deps.Logger,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)
	ag.POST("/token/refresh", api.refresh)
	ag.POST("/otp/send", api.sendOTP)
	ag.POST("/otp/verify", api.verifyOTP)
	ag.POST("/otp/set-password", api.setNewPassword)

	// authed endpoints
	sg := ag.Group("", jwt, session)
	sg.POST("/logout", api.logout)
	sg.GET("/me", api.me)
	sg.POST("/change-password", api.changePassword)
}

// Handlers

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pair, _, err := api.authn.Login(ctx.Request().Context(), data.Phone, data.Password)
	metrics.ObserveAuth("login", err)
	if err != nil {
		if errors.Cause(err) == auth.ErrAuthenticationFailed {
			return errLoginFailed
		}
		return errors.Wrap(err, "logging in")
	}
	return ctx.JSON(http.StatusOK, pair)
}

func (api *accountApi) refresh(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	access, err := api.tokens.Refresh(ctx.Request().Context(), data.Refresh)
	metrics.ObserveAuth("refresh", err)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, AccessResponse{Access: access})
}

func (api *accountApi) logout(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	err := api.tokens.Revoke(ctx.Request().Context(), data.Refresh)
	metrics.ObserveAuth("logout", err)
	if err != nil {
		return errors.Wrap(err, "revoking refresh token")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Logout successful"})
}

func (api *accountApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, MeResponse{ID: usr.ID, FullName: usr.FullName, Phone: usr.Phone})
}

func (api *accountApi) changePassword(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.ChangePassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if _, err = api.svc.ChangePassword(ctx.Request().Context(), usr, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, StatusResponse{Status: true, Detail: "Your password has been successfully updated!"})
}

func (api *accountApi) sendOTP(ctx echo.Context) error {
	var data OTPSendRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OTPSendRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err := api.otp.Send(ctx.Request().Context(), data.Phone)
	metrics.ObserveAuth("otp_send", err)
	if err != nil {
		// the answer must not tell registered phones apart
		api.logger.Error("sending OTP", errors.Wrap(err, "sending OTP"))
	}
	return ctx.JSON(http.StatusOK, StatusResponse{Status: true, Detail: "If the phone number is registered, a verification code has been sent"})
}

func (api *accountApi) verifyOTP(ctx echo.Context) error {
	var data OTPVerifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OTPVerifyRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err := api.otp.Verify(ctx.Request().Context(), data.Phone, data.OTP)
	metrics.ObserveAuth("otp_verify", err)
	if err != nil {
		if errors.Cause(err) == auth.ErrOTPInvalid {
			return core.NewValidationError(err, core.FieldError{Field: "otp", Error: err.Error()})
		}
		return errors.Wrap(err, "verifying OTP")
	}
	return ctx.JSON(http.StatusOK, StatusResponse{Status: true, Detail: "OTP verified successfully"})
}

func (api *accountApi) setNewPassword(ctx echo.Context) error {
	var data user.SetNewPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetNewPassword")
	}

	err := api.otp.SetNewPassword(ctx.Request().Context(), data)
	metrics.ObserveAuth("set_password", err)
	if err != nil {
		switch errors.Cause(err) {
		case auth.ErrOTPNotVerified:
			return errOTPNotVerified
		case user.ErrNotFound:
			return errUserNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, StatusResponse{Status: true, Detail: "Password successfully set"})
}

type (
	LoginRequest struct {
		Phone    string `json:"phone" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	RefreshRequest struct {
		Refresh string `json:"refresh" validate:"required"`
	}

	AccessResponse struct {
		Access string `json:"access"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}

	MeResponse struct {
		ID       string `json:"id"`
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}

	OTPSendRequest struct {
		Phone string `json:"phone" validate:"required,phone"`
	}

	OTPVerifyRequest struct {
		Phone string `json:"phone" validate:"required"`
		OTP   string `json:"otp" validate:"required"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Phone = core.CleanPhone(lr.Phone)
	return validate.Struct(lr)
}

func (sr *OTPSendRequest) Validate(validate *validator.Validate) error {
	sr.Phone = core.CleanPhone(sr.Phone)
	return validate.Struct(sr)
}

func (vr *OTPVerifyRequest) Validate(validate *validator.Validate) error {
	vr.Phone = core.CleanPhone(vr.Phone)
	vr.OTP = core.CleanString(vr.OTP)
	return validate.Struct(vr)
}
