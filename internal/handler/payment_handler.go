package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"florist/internal/config"
	"florist/internal/middleware"
	"florist/internal/repository"
	"florist/internal/usecase"
)

const warnStockCompensation = "stock compensation partially failed; manual stock reconciliation required"

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type PaymentCreateRequest struct {
	OrderID string `json:"orderId"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/payment")

	//ゲートウェイから直接呼ばれるので認証なし
	g.POST("/notification", h.notification)

	g.POST("/create", h.create, middleware.AuthJWT(cfg.JWTSecret), middleware.TokenVersionGuard(userRepo))
}

func (h *PaymentHandler) create(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req PaymentCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.CreatePayment(c.Request().Context(), actor, req.OrderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 反映済みの重複通知でも200を返す（ゲートウェイに再送させない）
func (h *PaymentHandler) notification(c echo.Context) error {
	var n usecase.Notification
	if err := c.Bind(&n); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	res, err := h.uc.HandleNotification(c.Request().Context(), n)
	if err != nil {
		return writeError(c, err)
	}

	out := DataResponse{Success: true, Data: res}
	if res.StockCompensationFailed {
		out.Warning = warnStockCompensation
	}
	return c.JSON(http.StatusOK, out)
}
