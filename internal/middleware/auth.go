package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
)

// TokenVerifier is the part of the Firebase auth client the middleware uses.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type AuthMiddleware struct {
	verifier   TokenVerifier
	staffClaim string
}

func NewAuthMiddleware(ctx context.Context, projectID, staffClaim string) (*AuthMiddleware, error) {
	if projectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID is not set")
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return NewAuthMiddlewareWithVerifier(client, staffClaim), nil
}

func NewAuthMiddlewareWithVerifier(v TokenVerifier, staffClaim string) *AuthMiddleware {
	return &AuthMiddleware{verifier: v, staffClaim: staffClaim}
}

// authenticate sets uid and staff on the context. It reports false when the
// request carries no bearer token at all.
func (m *AuthMiddleware) authenticate(c echo.Context) (bool, error) {
	authz := c.Request().Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return false, nil
	}
	token, err := m.verifier.VerifyIDToken(c.Request().Context(), strings.TrimPrefix(authz, "Bearer "))
	if err != nil {
		return true, err
	}
	c.Set("uid", token.UID)
	staff, _ := token.Claims[m.staffClaim].(bool)
	c.Set("staff", staff)
	return true, nil
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		present, err := m.authenticate(c)
		if !present {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		}
		return next(c)
	}
}

// OptionalAuth lets anonymous requests through but still rejects a bad token.
func (m *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := m.authenticate(c); err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		}
		return next(c)
	}
}

// RequireStaff must run after RequireAuth.
func RequireStaff(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if staff, _ := c.Get("staff").(bool); !staff {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
		}
		return next(c)
	}
}
