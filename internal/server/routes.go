package server

import (
	"github.com/labstack/echo/v4"

	"florist/internal/config"
	"florist/internal/handler"
	"florist/internal/repository"
)

type Handlers struct {
	Payment     *handler.PaymentHandler
	PaymentSync *handler.PaymentSyncHandler
	AdminOrder  *handler.AdminOrderHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, h Handlers) {
	handler.RegisterHealth(e)
	h.Payment.RegisterRoutes(e, cfg, userRepo)
	h.PaymentSync.RegisterRoutes(e, cfg, userRepo)
	h.AdminOrder.RegisterRoutes(e, cfg, userRepo)
}
