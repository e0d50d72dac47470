package midtransgw

import (
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"florist/internal/usecase"
)

func BuildSnapRequest(in usecase.CreateTransactionInput) *snap.Request {
	items := make([]midtrans.ItemDetails, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, midtrans.ItemDetails{
			ID:    it.ID,
			Name:  it.Name,
			Price: it.Price,
			Qty:   int32(it.Quantity),
		})
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  in.OrderID,
			GrossAmt: in.GrossAmount,
		},
		Items: &items,
		CustomerDetail: &midtrans.CustomerDetails{
			FName: in.Customer.Name,
			Email: in.Customer.Email,
			Phone: in.Customer.Phone,
		},
	}
	if in.FinishURL != "" {
		req.Callbacks = &snap.Callbacks{Finish: in.FinishURL}
	}
	return req
}

func FromStatusResponse(res *coreapi.TransactionStatusResponse) usecase.Notification {
	return usecase.Notification{
		OrderID:           res.OrderID,
		TransactionStatus: res.TransactionStatus,
		FraudStatus:       res.FraudStatus,
		PaymentType:       res.PaymentType,
		GrossAmount:       res.GrossAmount,
		StatusCode:        res.StatusCode,
		SignatureKey:      res.SignatureKey,
		TransactionID:     res.TransactionID,
	}
}
