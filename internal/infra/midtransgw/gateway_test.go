package midtransgw

import (
	"context"
	"testing"

	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"florist/internal/config"
	"florist/internal/usecase"
)

func TestBuildSnapRequest(t *testing.T) {
	req := BuildSnapRequest(usecase.CreateTransactionInput{
		OrderID:     "ORDER-o1-1731622400000",
		GrossAmount: 320000,
		Items: []usecase.TransactionItem{
			{ID: "101", Name: "Rose Bouquet", Price: 100000, Quantity: 3},
			{ID: "DISCOUNT", Name: "Discount", Price: -30000, Quantity: 1},
		},
		Customer:  usecase.Customer{Name: "Sari", Email: "sari@example.com", Phone: "0812"},
		FinishURL: "https://shop.example/orders/o1",
	})

	assert.Equal(t, "ORDER-o1-1731622400000", req.TransactionDetails.OrderID)
	assert.Equal(t, int64(320000), req.TransactionDetails.GrossAmt)
	require.NotNil(t, req.Items)
	items := *req.Items
	require.Len(t, items, 2)
	assert.Equal(t, int32(3), items[0].Qty)
	assert.Equal(t, int64(-30000), items[1].Price)
	assert.Equal(t, "sari@example.com", req.CustomerDetail.Email)
	assert.Equal(t, "Sari", req.CustomerDetail.FName)
	require.NotNil(t, req.Callbacks)
	assert.Equal(t, "https://shop.example/orders/o1", req.Callbacks.Finish)
}

func TestBuildSnapRequest_NoFinishURL(t *testing.T) {
	req := BuildSnapRequest(usecase.CreateTransactionInput{OrderID: "ORDER-o1-1", GrossAmount: 1})
	assert.Nil(t, req.Callbacks)
}

func TestFromStatusResponse(t *testing.T) {
	n := FromStatusResponse(&coreapi.TransactionStatusResponse{
		OrderID:           "ORDER-o1-1",
		TransactionStatus: "capture",
		FraudStatus:       "challenge",
		PaymentType:       "credit_card",
		GrossAmount:       "320000.00",
		StatusCode:        "201",
	})

	assert.Equal(t, "ORDER-o1-1", n.OrderID)
	gs := n.GatewayStatus()
	assert.Equal(t, "capture", gs.TransactionStatus)
	assert.Equal(t, "challenge", gs.FraudStatus)
	assert.Equal(t, "credit_card", gs.PaymentType)
}

func TestVerifyNotification(t *testing.T) {
	g := New(config.MidtransConfig{ServerKey: "SB-Mid-server-test"})
	n := usecase.Notification{OrderID: "ORDER-o1-1", StatusCode: "200", GrossAmount: "320000.00"}
	n.SignatureKey = Signature(n.OrderID, n.StatusCode, n.GrossAmount, "SB-Mid-server-test")

	assert.True(t, g.VerifyNotification(n))
	assert.Len(t, n.SignatureKey, 128)

	tampered := n
	tampered.GrossAmount = "1.00"
	assert.False(t, g.VerifyNotification(tampered))

	unsigned := n
	unsigned.SignatureKey = ""
	assert.False(t, g.VerifyNotification(unsigned))
}

func TestGateway_CancelledContext(t *testing.T) {
	g := New(config.MidtransConfig{ServerKey: "SB-Mid-server-test"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.QueryTransactionStatus(ctx, "ORDER-o1-1")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = g.CreateTransaction(ctx, usecase.CreateTransactionInput{})
	assert.ErrorIs(t, err, context.Canceled)
}
