// Package midtransgw はmidtrans-goの上に決済ゲートウェイの入出力を載せる。
package midtransgw

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"florist/internal/config"
	"florist/internal/usecase"
)

type Gateway struct {
	snap      snap.Client
	core      coreapi.Client
	serverKey string
}

func New(cfg config.MidtransConfig) *Gateway {
	env := midtrans.Sandbox
	if cfg.IsProduction {
		env = midtrans.Production
	}
	g := &Gateway{serverKey: cfg.ServerKey}
	g.snap.New(cfg.ServerKey, env)
	g.core.New(cfg.ServerKey, env)
	return g
}

func (g *Gateway) CreateTransaction(ctx context.Context, in usecase.CreateTransactionInput) (usecase.CreateTransactionResult, error) {
	//SDKはctxを受けないので呼ぶ前だけ確認する
	if err := ctx.Err(); err != nil {
		return usecase.CreateTransactionResult{}, err
	}

	res, merr := g.snap.CreateTransaction(BuildSnapRequest(in))
	if merr != nil {
		return usecase.CreateTransactionResult{}, fmt.Errorf("snap create transaction (%d): %s", merr.StatusCode, merr.Message)
	}
	if res == nil || res.Token == "" {
		return usecase.CreateTransactionResult{}, fmt.Errorf("snap create transaction: empty token")
	}
	return usecase.CreateTransactionResult{Token: res.Token, RedirectURL: res.RedirectURL}, nil
}

func (g *Gateway) QueryTransactionStatus(ctx context.Context, gatewayOrderID string) (usecase.Notification, error) {
	if err := ctx.Err(); err != nil {
		return usecase.Notification{}, err
	}

	res, merr := g.core.CheckTransaction(gatewayOrderID)
	if merr != nil {
		return usecase.Notification{}, fmt.Errorf("check transaction %s (%d): %s", gatewayOrderID, merr.StatusCode, merr.Message)
	}
	if res == nil {
		return usecase.Notification{}, fmt.Errorf("check transaction %s: empty response", gatewayOrderID)
	}
	return FromStatusResponse(res), nil
}

// 通知のsignature_keyはsha512(order_id + status_code + gross_amount + server_key)
func (g *Gateway) VerifyNotification(n usecase.Notification) bool {
	if n.SignatureKey == "" {
		return false
	}
	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, g.serverKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(n.SignatureKey))) == 1
}

func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}
