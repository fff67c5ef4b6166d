package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"mpesa_backend/internal/domain"
	"mpesa_backend/internal/gateway"
	"mpesa_backend/internal/repository"

	"github.com/shopspring/decimal"
)

const transactionDateLayout = "20060102150405"

type callbackEnvelope struct {
	Body *struct {
		StkCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID any `json:"MerchantRequestID"`
	CheckoutRequestID any `json:"CheckoutRequestID"`
	ResultCode        any `json:"ResultCode"`
	ResultDesc        any `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []metadataItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type metadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// CallbackReconciler matches gateway webhooks to stored transactions.
type CallbackReconciler struct {
	store repository.TransactionStore
	loc   *time.Location
	now   func() time.Time
}

func NewCallbackReconciler(store repository.TransactionStore, loc *time.Location) *CallbackReconciler {
	if loc == nil {
		loc = time.Local
	}
	return &CallbackReconciler{store: store, loc: loc, now: time.Now}
}

// Reconcile applies one webhook delivery and reports what happened. It never
// fails outward: every path yields an outcome whose Ack is sent to the gateway.
func (c *CallbackReconciler) Reconcile(ctx context.Context, body []byte) (out domain.CallbackOutcome) {
	out.ReceivedAt = c.now()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("mpesa callback panic: %v payload=%s\n%s", r, string(body), debug.Stack())
			out.Kind = domain.OutcomeError
			out.Err = fmt.Errorf("panic: %v", r)
			out.Transaction = nil
		}
	}()

	cb, err := decodeCallback(body)
	if err != nil {
		log.Printf("mpesa callback: invalid structure: err=%v payload=%s", err, string(body))
		out.Kind = domain.OutcomeMalformed
		out.Err = err
		return out
	}

	out.CheckoutRequestID = gateway.Stringify(cb.CheckoutRequestID)
	out.MerchantRequestID = gateway.Stringify(cb.MerchantRequestID)

	// Missing either field leaves the payment outcome unknown; the row stays as it is.
	if out.CheckoutRequestID == "" {
		return c.fail(out, body, errors.New("callback has no CheckoutRequestID"))
	}
	if gateway.Stringify(cb.ResultCode) == "" {
		return c.fail(out, body, errors.New("callback has no ResultCode"))
	}

	out.ResultCode = gateway.Stringify(cb.ResultCode)
	out.ResultDesc = gateway.Stringify(cb.ResultDesc)
	out.Status = domain.StatusForResult(out.ResultCode)

	tx, err := c.store.FindByCheckoutID(ctx, out.CheckoutRequestID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Printf("mpesa callback: transaction not found: checkout_request_id=%s merchant_request_id=%s",
			out.CheckoutRequestID, out.MerchantRequestID)
		out.Kind = domain.OutcomeNotFound
		return out
	}
	if err != nil {
		return c.fail(out, body, fmt.Errorf("find transaction: %w", err))
	}

	upd := domain.ResultUpdate(out.ResultCode, out.ResultDesc)
	if out.Status == domain.StatusCompleted && cb.CallbackMetadata != nil && cb.CallbackMetadata.Item != nil {
		if err := c.enrich(&upd, cb.CallbackMetadata.Item); err != nil {
			return c.fail(out, body, err)
		}
	}

	if err := c.store.Update(ctx, out.CheckoutRequestID, upd); err != nil {
		return c.fail(out, body, fmt.Errorf("update transaction: %w", err))
	}

	fresh, err := c.store.FindByCheckoutID(ctx, out.CheckoutRequestID)
	if err != nil {
		log.Printf("mpesa callback: reload after update failed: checkout_request_id=%s err=%v", out.CheckoutRequestID, err)
		tx.Apply(upd, c.now())
		fresh = tx
	}

	out.Kind = domain.OutcomeApplied
	out.Transaction = fresh

	if out.Status == domain.StatusCompleted {
		log.Printf("mpesa payment completed: checkout_request_id=%s receipt_number=%s amount=%s account_reference=%s",
			out.CheckoutRequestID, derefOr(fresh.MpesaReceiptNumber, "N/A"), fresh.Amount.StringFixed(2), fresh.AccountReference)
	} else {
		log.Printf("mpesa payment failed: checkout_request_id=%s result_code=%s result_desc=%q account_reference=%s",
			out.CheckoutRequestID, out.ResultCode, out.ResultDesc, fresh.AccountReference)
	}
	return out
}

func (c *CallbackReconciler) fail(out domain.CallbackOutcome, body []byte, err error) domain.CallbackOutcome {
	log.Printf("mpesa callback error: checkout_request_id=%s err=%v payload=%s", out.CheckoutRequestID, err, string(body))
	out.Kind = domain.OutcomeError
	out.Err = err
	return out
}

// enrich flattens the metadata items and folds the settlement proof into upd.
// Phone and amount override the stored values only when present.
func (c *CallbackReconciler) enrich(upd *domain.TransactionUpdate, items []metadataItem) error {
	meta := make(map[string]any, len(items))
	for _, it := range items {
		meta[it.Name] = it.Value
	}

	if v, ok := meta["MpesaReceiptNumber"]; ok && v != nil {
		s := gateway.Stringify(v)
		upd.MpesaReceiptNumber = &s
	}
	if v, ok := meta["TransactionDate"]; ok && v != nil {
		td, err := time.ParseInLocation(transactionDateLayout, gateway.Stringify(v), c.loc)
		if err != nil {
			return fmt.Errorf("parse TransactionDate: %w", err)
		}
		upd.TransactionDate = &td
	}
	if v, ok := meta["PhoneNumber"]; ok && v != nil {
		s := gateway.Stringify(v)
		upd.PhoneNumber = &s
	}
	if v, ok := meta["Amount"]; ok && v != nil {
		amt, err := decimal.NewFromString(gateway.Stringify(v))
		if err != nil {
			return fmt.Errorf("parse Amount: %w", err)
		}
		upd.Amount = &amt
	}

	upd.CallbackMetadata = meta
	return nil
}

func decodeCallback(body []byte) (*stkCallback, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var env callbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCallback, err)
	}
	if env.Body == nil || env.Body.StkCallback == nil {
		return nil, domain.ErrMalformedCallback
	}
	return env.Body.StkCallback, nil
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
