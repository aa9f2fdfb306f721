package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/btick/btick/internal/model"
	"github.com/btick/btick/internal/service"
)

// MembershipSource loads a user's organization roles once per request.
// *repository.MembershipRepo satisfies it.
type MembershipSource interface {
	RolesForUser(ctx context.Context, userID uint64) (map[uint64]model.OrgRole, error)
}

// JWTAuth validates a Bearer access token, loads the caller's
// organization memberships and stores a ready-made service.Actor in
// the request context. Services receive the actor as a value and never
// query membership themselves.
func JWTAuth(secret string, members MembershipSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			sub, ok := claims["sub"].(float64)
			if !ok || sub <= 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}
			role, _ := claims["role"].(string)

			actor := service.Actor{
				UserID: uint64(sub),
				Role:   model.Role(role),
			}
			if members != nil {
				roles, err := members.RolesForUser(c.Request().Context(), actor.UserID)
				if err != nil {
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
				}
				actor.OrgRoles = roles
			}
			c.Set("actor", actor)
			return next(c)
		}
	}
}

// ActorFromContext returns the actor stored by JWTAuth.
func ActorFromContext(c echo.Context) (service.Actor, bool) {
	a, ok := c.Get("actor").(service.Actor)
	return a, ok
}
