package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"florist/internal/domain/model"
)

// ADMINだけ許可
func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return unauthorized(c)
			}
			if model.Role(role) != model.RoleAdmin {
				return c.JSON(http.StatusForbidden, errorResponse{Error: "admin only"})
			}
			return next(c)
		}
	}
}
