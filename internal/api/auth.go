package api

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"storefront-service/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new instance of AuthHandler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login issues an admin token --> POST /api/admin/login
func (h *AuthHandler) Login(c echo.Context) error {
	login := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{}
	if err := c.Bind(&login); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}

	token, err := h.authService.Login(c.Request().Context(), login.Email, login.Password)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

// AdminOnly rejects requests without a valid admin bearer token.
func AdminOnly(secret []byte) echo.MiddlewareFunc {
	unauthorized := func(c echo.Context) error {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	validate := echojwt.WithConfig(echojwt.Config{
		SigningKey: secret,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(service.JwtCustomClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return unauthorized(c)
		},
	})

	requireRole := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return unauthorized(c)
			}
			claims, ok := token.Claims.(*service.JwtCustomClaims)
			if !ok || claims.Role != service.AdminRole {
				return unauthorized(c)
			}
			return next(c)
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return validate(requireRole(next))
	}
}
