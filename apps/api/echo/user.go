package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackle/core/user"
)

type userApi struct {
	auth     *authenticator
	svc      *user.Service
	validate *validator.Validate
}

func registerUserAPI(
	e *echo.Echo,
	jwt, account echo.MiddlewareFunc,
	auth *authenticator,
	svc *user.Service,
	validate *validator.Validate,
) {
	api := userApi{
		auth:     auth,
		svc:      svc,
		validate: validate,
	}

	// un-authed endpoints
	e.POST("/signup/student", api.signup(user.RoleStudent))
	e.POST("/signup/teacher", api.signup(user.RoleTeacher))
	e.POST("/login", api.login)

	// authed endpoints
	e.POST("/token-refresh", api.refreshToken, jwt, account)
	e.GET("/me", api.me, jwt, account)
}

// Handlers

func (api *userApi) signup(role user.Role) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data user.NewUser
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to NewUser")
		}
		if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
			return err
		}

		usr, err := api.svc.Create(ctx.Request().Context(), data, role)
		if err != nil {
			return errors.Wrap(err, "creating user")
		}
		token, err := GenerateToken(api.auth.conf, GetUserClaims(api.auth.conf, usr))
		if err != nil {
			return errors.Wrap(err, "generating token")
		}

		return ctx.JSON(http.StatusCreated, SignupResponse{Token: token, User: usr})
	}
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := api.auth.authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.auth.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	acc, err := contextAccount(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, acc.GetUser())
}

// Requests & Responses

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SignupResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(lr)
}
