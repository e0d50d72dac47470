package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"florist/internal/config"
	"florist/internal/middleware"
	"florist/internal/repository"
	"florist/internal/usecase"
)

const defaultRecent = 20

type PaymentSyncHandler struct {
	sync *usecase.SyncCoordinator
}

func NewPaymentSyncHandler(sync *usecase.SyncCoordinator) *PaymentSyncHandler {
	return &PaymentSyncHandler{sync: sync}
}

type SyncOrderData struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
}

type AutoSyncRequest struct {
	Enabled         *bool `json:"enabled"`
	IntervalSeconds *int  `json:"interval_seconds"`
}

func (h *PaymentSyncHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	guards := []echo.MiddlewareFunc{
		middleware.AuthJWT(cfg.JWTSecret),
		middleware.TokenVersionGuard(userRepo),
		middleware.AdminRoleGuard(),
	}

	e.GET("/orders/payment/sync/:orderId", h.syncOne, guards...)

	admin := e.Group("/admin/payment/sync", guards...)
	admin.GET("", h.status)
	admin.POST("/run", h.run)
	admin.PUT("/auto", h.auto)
}

func (h *PaymentSyncHandler) syncOne(c echo.Context) error {
	res, err := h.sync.SyncOne(c.Request().Context(), c.Param("orderId"))

	var ce *usecase.StockCompensationError
	if err != nil && !errors.As(err, &ce) {
		return writeError(c, err)
	}

	out := DataResponse{
		Success: true,
		Data:    SyncOrderData{Status: string(res.Status), PaymentStatus: string(res.PaymentStatus)},
	}
	if ce != nil {
		out.Warning = warnStockCompensation
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentSyncHandler) status(c echo.Context) error {
	recent := defaultRecent
	if v := c.QueryParam("recent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid recent"})
		}
		recent = n
	}

	st, err := h.sync.Status(c.Request().Context(), recent)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, DataResponse{Success: true, Data: st})
}

// バッチを1回すぐ実行する。終わったら呼び出し側で一覧を取り直す
func (h *PaymentSyncHandler) run(c echo.Context) error {
	res, err := h.sync.SyncPending(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, DataResponse{Success: true, Data: res})
}

func (h *PaymentSyncHandler) auto(c echo.Context) error {
	var req AutoSyncRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.Enabled == nil && req.IntervalSeconds == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "enabled or interval_seconds is required"})
	}

	if req.IntervalSeconds != nil {
		if err := h.sync.SetInterval(time.Duration(*req.IntervalSeconds) * time.Second); err != nil {
			return writeError(c, err)
		}
	}
	if req.Enabled != nil {
		if *req.Enabled {
			//自動同期はリクエストより長く生きる
			h.sync.Start(context.WithoutCancel(c.Request().Context()))
		} else {
			h.sync.Stop()
		}
	}

	st, err := h.sync.Status(c.Request().Context(), defaultRecent)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, DataResponse{Success: true, Data: st})
}
