package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"florist/internal/domain/model"
	"florist/internal/domain/payment"
	"florist/internal/logger"
	repo "florist/internal/repository"
)

const (
	adjustmentItemID = "DISCOUNT"
	//ゲートウェイの商品名上限
	maxItemNameLen = 50
)

type PaymentDeps struct {
	Orders     repo.OrderRepository
	Items      repo.OrderItemRepository
	Users      repo.UserRepository
	Audit      repo.AuditLogRepository
	Gateway    PaymentGateway
	Verifier   NotificationVerifier
	Reconciler *PaymentReconciler
	Clock      Clock
	Logger     *zap.Logger
	//決済完了後の戻り先（FE_URL）
	FrontendURL string
}

type PaymentUsecase struct {
	orders     repo.OrderRepository
	items      repo.OrderItemRepository
	users      repo.UserRepository
	audit      repo.AuditLogRepository
	gateway    PaymentGateway
	verifier   NotificationVerifier
	reconciler *PaymentReconciler
	clock      Clock
	logger     *zap.Logger
	feURL      string
}

func NewPaymentUsecase(d PaymentDeps) *PaymentUsecase {
	clock := d.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentUsecase{
		orders:     d.Orders,
		items:      d.Items,
		users:      d.Users,
		audit:      d.Audit,
		gateway:    d.Gateway,
		verifier:   d.Verifier,
		reconciler: d.Reconciler,
		clock:      clock,
		logger:     log.With(zap.String("component", "payment")),
		feURL:      strings.TrimRight(d.FrontendURL, "/"),
	}
}

type CreatePaymentOutput struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
	OrderID     string `json:"orderId"`
}

// CreatePayment は注文の決済トランザクションを作成する。
// 呼ぶたびに新しいORDER-{id}-{timestamp}を採番する。
func (u *PaymentUsecase) CreatePayment(ctx context.Context, actor Actor, orderID string) (CreatePaymentOutput, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusBadRequest, "orderId is required")
	}

	order, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return CreatePaymentOutput{}, WrapHTTPError(http.StatusNotFound, ErrOrderNotFound)
	}
	if err != nil {
		return CreatePaymentOutput{}, internalError(err)
	}

	if !CanAccessOrder(actor, order) {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if order.Status != model.OrderStatusPending {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusBadRequest, "order is not pending")
	}
	//審査中・支払済みの試行を新しいIDで上書きしない
	switch order.PaymentStatus.Normalize() {
	case model.PaymentStatusChallenge:
		return CreatePaymentOutput{}, NewHTTPError(http.StatusBadRequest, "payment is under review")
	case model.PaymentStatusPaid:
		return CreatePaymentOutput{}, NewHTTPError(http.StatusBadRequest, "order is already paid")
	}
	if order.Total <= 0 {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order total")
	}

	items, err := u.items.ListWithProducts(ctx, order.ID)
	if err != nil {
		return CreatePaymentOutput{}, internalError(err)
	}
	if len(items) == 0 {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusBadRequest, "order has no items")
	}

	customer, err := u.customerOf(ctx, order.UserID)
	if err != nil {
		return CreatePaymentOutput{}, internalError(err)
	}

	now := u.clock.Now()
	compositeID := payment.NewCompositeID(order.ID, now)

	res, err := u.gateway.CreateTransaction(ctx, CreateTransactionInput{
		OrderID:     compositeID,
		GrossAmount: order.Total,
		Items:       transactionItems(items, order.Total),
		Customer:    customer,
		FinishURL:   u.feURL + "/orders/" + order.ID,
	})
	if err != nil {
		u.logger.Warn("create transaction failed",
			zap.String("order", logger.OrderIDPrefix(order.ID)),
			zap.Error(err),
		)
		return CreatePaymentOutput{}, NewHTTPError(http.StatusBadGateway, "payment gateway error")
	}

	pending := model.PaymentStatusPending
	if _, err := u.orders.Update(ctx, order.ID, repo.OrderUpdate{
		PaymentStatus:   &pending,
		MidtransOrderID: &compositeID,
		PaymentToken:    &res.Token,
		PaymentURL:      &res.RedirectURL,
		UpdatedAt:       now,
	}); err != nil {
		return CreatePaymentOutput{}, internalError(err)
	}

	if err := u.audit.Create(ctx, model.AuditLog{
		ActorUserID:  actor.UserID,
		Action:       model.AuditActionCreatePayment,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   order.ID,
		BeforeJSON:   `{"midtrans_order_id":"` + order.GatewayOrderID() + `"}`,
		AfterJSON:    `{"midtrans_order_id":"` + compositeID + `"}`,
		CreatedAt:    now,
	}); err != nil {
		u.logger.Error("audit log write failed", zap.String("order", logger.OrderIDPrefix(order.ID)), zap.Error(err))
	}

	u.logger.Info("payment created",
		zap.String("order", logger.OrderIDPrefix(order.ID)),
		zap.String("midtrans_order_id", compositeID),
	)

	return CreatePaymentOutput{
		Token:       res.Token,
		RedirectURL: res.RedirectURL,
		OrderID:     order.ID,
	}, nil
}

func (u *PaymentUsecase) customerOf(ctx context.Context, userID int64) (Customer, error) {
	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && user == nil) {
		return Customer{}, nil
	}
	if err != nil {
		return Customer{}, err
	}
	return Customer{Name: user.Name, Email: user.Email, Phone: user.Phone}, nil
}

// 明細はスナップショット価格。合計との差は調整行で埋める（割引なら負）
func transactionItems(items []model.OrderItem, total int64) []TransactionItem {
	out := make([]TransactionItem, 0, len(items)+1)
	var sum int64
	for _, it := range items {
		out = append(out, TransactionItem{
			ID:       strconv.FormatInt(it.ProductID, 10),
			Name:     truncate(it.ProductNameSnapshot, maxItemNameLen),
			Price:    it.UnitPriceSnapshot,
			Quantity: it.Quantity,
		})
		sum += it.UnitPriceSnapshot * it.Quantity
	}
	if diff := total - sum; diff != 0 {
		name := "Discount"
		if diff > 0 {
			name = "Adjustment"
		}
		out = append(out, TransactionItem{ID: adjustmentItemID, Name: name, Price: diff, Quantity: 1})
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type NotificationResult struct {
	ReconcileResult
	//在庫戻しの一部が失敗した（要手動対応）
	StockCompensationFailed bool `json:"stock_compensation_failed"`
}

// HandleNotification はゲートウェイからの通知を処理する。
// 重複や反映済みの通知でも成功を返す。
func (u *PaymentUsecase) HandleNotification(ctx context.Context, n Notification) (NotificationResult, error) {
	u.logger.Info("payment notification received",
		zap.String("midtrans_order_id", n.OrderID),
		zap.String("transaction_status", n.TransactionStatus),
		zap.String("fraud_status", n.FraudStatus),
		zap.String("payment_type", n.PaymentType),
	)

	if u.verifier != nil && !u.verifier.VerifyNotification(n) {
		u.logger.Warn("notification signature mismatch", zap.String("midtrans_order_id", n.OrderID))
		return NotificationResult{}, WrapHTTPError(http.StatusUnauthorized, ErrInvalidSignature)
	}

	orderID, err := payment.ExtractOrderID(n.OrderID)
	if err != nil {
		return NotificationResult{}, WrapHTTPError(http.StatusBadRequest, fmt.Errorf("%w: %q", ErrInvalidNotificationFormat, n.OrderID))
	}
	if strings.TrimSpace(n.TransactionStatus) == "" {
		return NotificationResult{}, WrapHTTPError(http.StatusBadRequest, fmt.Errorf("%w: transaction_status is required", ErrInvalidNotificationFormat))
	}

	order, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return NotificationResult{}, WrapHTTPError(http.StatusNotFound, ErrOrderNotFound)
	}
	if err != nil {
		return NotificationResult{}, internalError(err)
	}

	u.warnOnMismatch(order, n)

	res, err := u.reconciler.Apply(ctx, order, n.GatewayStatus(), SourceWebhook)
	if err != nil {
		if isStockCompensationError(err) {
			return NotificationResult{ReconcileResult: res, StockCompensationFailed: true}, nil
		}
		return NotificationResult{}, internalError(err)
	}
	return NotificationResult{ReconcileResult: res}, nil
}

// 金額差と古い決済試行は警告だけ。遷移はそのまま適用する
func (u *PaymentUsecase) warnOnMismatch(order model.Order, n Notification) {
	log := u.logger.With(zap.String("order", logger.OrderIDPrefix(order.ID)))

	if current := order.GatewayOrderID(); current != "" && current != n.OrderID {
		log.Warn("notification for stale payment attempt",
			zap.String("notified", n.OrderID),
			zap.String("current", current),
		)
	}

	if strings.TrimSpace(n.GrossAmount) == "" {
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(n.GrossAmount))
	if err != nil {
		log.Warn("unparseable gross amount", zap.String("gross_amount", n.GrossAmount))
		return
	}
	if !amount.Equal(decimal.NewFromInt(order.Total)) {
		log.Warn("gross amount mismatch",
			zap.String("gross_amount", amount.String()),
			zap.Int64("order_total", order.Total),
		)
	}
}
