package usecase

import (
	"context"
	"errors"
	"log"
	"strings"

	"mpesa_backend/internal/domain"
	"mpesa_backend/internal/gateway"
	"mpesa_backend/internal/repository"

	"github.com/shopspring/decimal"
)

// Gateway is the part of gateway.Client the usecases call.
type Gateway interface {
	Push(ctx context.Context, p gateway.PushRequest) (gateway.Response, error)
	Query(ctx context.Context, checkoutRequestID string) (gateway.Response, error)
}

var minAmount = decimal.NewFromInt(1)

type PushInput struct {
	Phone            string
	Amount           decimal.Decimal
	AccountReference string
	TransactionDesc  string
}

func (in PushInput) validate() error {
	switch {
	case strings.TrimSpace(in.Phone) == "":
		return &domain.ValidationError{Field: "phone", Msg: "is required"}
	case in.Amount.LessThan(minAmount):
		return &domain.ValidationError{Field: "amount", Msg: "must be at least 1"}
	case strings.TrimSpace(in.AccountReference) == "":
		return &domain.ValidationError{Field: "account_reference", Msg: "is required"}
	case strings.TrimSpace(in.TransactionDesc) == "":
		return &domain.ValidationError{Field: "transaction_desc", Msg: "is required"}
	}
	return nil
}

type STKUsecase struct {
	gw    Gateway
	store repository.TransactionStore
}

func NewSTKUsecase(gw Gateway, store repository.TransactionStore) *STKUsecase {
	return &STKUsecase{gw: gw, store: store}
}

// Push starts an STK push and records a pending transaction once the gateway
// has assigned a CheckoutRequestID. The raw gateway response is returned.
func (u *STKUsecase) Push(ctx context.Context, in PushInput) (gateway.Response, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	resp, err := u.gw.Push(ctx, gateway.PushRequest{
		PhoneNumber:      in.Phone,
		Amount:           in.Amount,
		AccountReference: in.AccountReference,
		TransactionDesc:  in.TransactionDesc,
	})
	if err != nil {
		return nil, err
	}

	if !resp.Has("CheckoutRequestID") {
		log.Printf("stk push accepted without CheckoutRequestID: response=%v", resp)
		return resp, nil
	}

	tx := &domain.Transaction{
		CheckoutRequestID: resp.String("CheckoutRequestID"),
		MerchantRequestID: resp.String("MerchantRequestID"),
		PhoneNumber:       in.Phone,
		Amount:            in.Amount,
		AccountReference:  in.AccountReference,
		TransactionDesc:   in.TransactionDesc,
		Status:            domain.StatusPending,
	}
	if resp.Has("ResponseCode") {
		v := resp.String("ResponseCode")
		tx.ResponseCode = &v
	}
	if resp.Has("ResponseDescription") {
		v := resp.String("ResponseDescription")
		tx.ResponseDescription = &v
	}

	if err := u.store.Create(ctx, tx); err != nil {
		log.Printf("stk push: store transaction failed: checkout_request_id=%s err=%v", tx.CheckoutRequestID, err)
		return nil, err
	}

	log.Printf("stk push initiated: checkout_request_id=%s merchant_request_id=%s account_reference=%s",
		tx.CheckoutRequestID, tx.MerchantRequestID, tx.AccountReference)
	return resp, nil
}

// Query polls the gateway and, when the answer carries a ResultCode, applies
// the same completed/failed rule as the callback path. Metadata is not read
// from query responses and no events are emitted here.
func (u *STKUsecase) Query(ctx context.Context, checkoutRequestID string) (gateway.Response, error) {
	if strings.TrimSpace(checkoutRequestID) == "" {
		return nil, &domain.ValidationError{Field: "checkout_request_id", Msg: "is required"}
	}

	resp, err := u.gw.Query(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}

	if _, err := u.store.FindByCheckoutID(ctx, checkoutRequestID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("stk query: no local transaction: checkout_request_id=%s", checkoutRequestID)
			return resp, nil
		}
		return nil, err
	}

	if !resp.Has("ResultCode") {
		return resp, nil
	}

	upd := domain.ResultUpdate(resp.String("ResultCode"), resp.String("ResultDesc"))
	if err := u.store.Update(ctx, checkoutRequestID, upd); err != nil {
		return nil, err
	}

	log.Printf("stk query applied: checkout_request_id=%s result_code=%s status=%s",
		checkoutRequestID, *upd.ResultCode, *upd.Status)
	return resp, nil
}

func (u *STKUsecase) Status(ctx context.Context, checkoutRequestID string) (*domain.Transaction, error) {
	return u.store.FindByCheckoutID(ctx, checkoutRequestID)
}

func (u *STKUsecase) List(ctx context.Context, f repository.TxFilter, limit, offset int) ([]domain.Transaction, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Msg: "must be pending, completed or failed"}
	}
	return u.store.List(ctx, f, limit, offset)
}
