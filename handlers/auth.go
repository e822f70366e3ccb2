package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goaltrack/goaltrack/config"
	jwtmw "github.com/goaltrack/goaltrack/middleware/jwt"
	"github.com/goaltrack/goaltrack/server"
	"github.com/goaltrack/goaltrack/services/auth"
	"github.com/goaltrack/goaltrack/services/jwt"
	"github.com/goaltrack/goaltrack/services/user"
	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	cfg      *config.Config
	auth     *auth.Service
	sessions *jwt.Service
	users    *user.Service
	validate *validator.Validate
}

func NewAuthHandler(cfg *config.Config, authService *auth.Service, sessions *jwt.Service, users *user.Service) *AuthHandler {
	validate := validator.New()
	// Report the wire field names, not the Go struct field names.
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &AuthHandler{
		cfg:      cfg,
		auth:     authService,
		sessions: sessions,
		users:    users,
		validate: validate,
	}
}

func (h *AuthHandler) RegisterRoutes(srv *server.Server) {
	g := srv.Group("/api/auth")

	g.POST("/register", h.Register)
	g.POST("/confirm-email", h.ConfirmEmail)
	g.POST("/resend-code", h.ResendCode)
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)
	g.POST("/request-password-reset", h.RequestPasswordReset)
	g.POST("/reset-password", h.ResetPassword)

	g.GET("/me", h.Me, jwtmw.RequireSession(h.sessions))
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	if err := h.auth.Register(req.Username, req.Email, req.Password); err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user registered, confirmation code sent to email",
	})
}

type confirmEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	var req confirmEmailRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	if err := h.auth.ConfirmEmail(req.Email, req.Code); err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "email confirmed successfully",
	})
}

type resendCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *AuthHandler) ResendCode(c echo.Context) error {
	var req resendCodeRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	if err := h.auth.ResendCode(req.Email); err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "new confirmation code sent",
	})
}

type loginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	session, err := h.auth.Login(req.Email, req.Password, req.RememberMe)
	if err != nil {
		return h.respondError(c, err)
	}

	c.SetCookie(&http.Cookie{
		Name:     jwtmw.CookieName,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.JWT.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": "login successful",
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(jwtmw.CookieName); err == nil {
		if claims, err := h.sessions.Validate(cookie.Value); err == nil {
			h.auth.Logout(claims.UserID)
		}
	}

	c.SetCookie(&http.Cookie{
		Name:     jwtmw.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.JWT.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": "logout successful",
	})
}

type requestPasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req requestPasswordResetRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	if err := h.auth.RequestPasswordReset(req.Email); err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "password reset link sent to your email",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	if err := h.auth.ResetPassword(req.Token, req.NewPassword); err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "password has been reset successfully",
	})
}

func (h *AuthHandler) Me(c echo.Context) error {
	u, err := h.users.FindByID(jwtmw.GetUserID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	return c.JSON(http.StatusOK, u)
}

func (h *AuthHandler) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return echo.NewHTTPError(http.StatusBadRequest, validationMessage(fieldErrs[0]))
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// respondError maps the auth error taxonomy onto HTTP. An unconfirmed
// login answers 403 so the client can steer the user back to the
// confirmation form.
func (h *AuthHandler) respondError(c echo.Context, err error) error {
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"message": "something went wrong, please try again",
		})
	}

	status := http.StatusInternalServerError
	if errors.Is(err, auth.ErrEmailNotConfirmed) {
		status = http.StatusForbidden
	} else {
		switch authErr.Kind {
		case auth.KindConflict:
			status = http.StatusConflict
		case auth.KindNotFound:
			status = http.StatusNotFound
		case auth.KindInvalid, auth.KindExpired:
			status = http.StatusBadRequest
		}
	}

	body := echo.Map{"message": authErr.Message}
	if authErr.Field != "" {
		body["field"] = authErr.Field
	}

	return c.JSON(status, body)
}
