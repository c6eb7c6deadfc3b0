// Package auth verifies bearer tokens issued by the external identity
// provider and exposes the authenticated user to handlers.
package auth

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/opslab/opslab/internal/config"
	"github.com/opslab/opslab/pkg/apperror"
	"github.com/opslab/opslab/pkg/logger"
)

// Module provides auth dependencies.
var Module = fx.Module("auth",
	fx.Provide(NewMiddleware),
)

const userContextKey = "opslab.user"

// User is the authenticated principal extracted from a verified token.
type User struct {
	ID    string
	Email string
}

// Middleware verifies JWT bearer tokens on protected routes.
type Middleware struct {
	secret []byte
	log    *slog.Logger
}

// NewMiddleware creates the auth middleware from configuration.
func NewMiddleware(cfg *config.Config, log *slog.Logger) *Middleware {
	return &Middleware{
		secret: []byte(cfg.Auth.JWTSecret),
		log:    log.With(logger.Scope("auth")),
	}
}

// RequireAuth returns middleware that rejects requests without a valid token.
func (m *Middleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return apperror.ErrUnauthorized
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return apperror.ErrUnauthorized.WithMessage("authorization header must use Bearer scheme")
			}

			user, err := m.verify(raw)
			if err != nil {
				m.log.Debug("token rejected", logger.Error(err))
				return apperror.ErrInvalidToken
			}

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// verify parses and validates an HS256 token, extracting the subject claim.
func (m *Middleware) verify(raw string) (*User, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("token missing subject")
	}

	user := &User{ID: sub}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}
	return user, nil
}

// GetUser returns the authenticated user from the request context, or nil.
func GetUser(c echo.Context) *User {
	user, _ := c.Get(userContextKey).(*User)
	return user
}

// SetUser injects a user into the context. Intended for tests.
func SetUser(c echo.Context, user *User) {
	c.Set(userContextKey, user)
}
