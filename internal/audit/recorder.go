package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"mpesa_backend/internal/domain"
)

// Recorder keeps a durable trace of what each callback delivery did, so a
// swallowed failure can be reconciled without reading process logs.
type Recorder interface {
	Record(ctx context.Context, out domain.CallbackOutcome) error
}

type Entry struct {
	Kind              domain.OutcomeKind `json:"kind"`
	CheckoutRequestID string             `json:"checkout_request_id"`
	MerchantRequestID string             `json:"merchant_request_id"`
	ResultCode        string             `json:"result_code"`
	ResultDesc        string             `json:"result_desc"`
	Status            domain.TxStatus    `json:"status,omitempty"`
	Applied           bool               `json:"applied"`
	Error             string             `json:"error,omitempty"`
	ReceivedAt        time.Time          `json:"received_at"`
}

func NewEntry(out domain.CallbackOutcome) Entry {
	e := Entry{
		Kind:              out.Kind,
		CheckoutRequestID: out.CheckoutRequestID,
		MerchantRequestID: out.MerchantRequestID,
		ResultCode:        out.ResultCode,
		ResultDesc:        out.ResultDesc,
		Applied:           out.Kind == domain.OutcomeApplied,
		ReceivedAt:        out.ReceivedAt.UTC(),
	}
	if e.Applied {
		e.Status = out.Status
	}
	if out.Err != nil {
		e.Error = out.Err.Error()
	}
	return e
}

type LogRecorder struct{}

func (LogRecorder) Record(_ context.Context, out domain.CallbackOutcome) error {
	b, err := json.Marshal(NewEntry(out))
	if err != nil {
		return err
	}
	log.Printf("mpesa callback audit: %s", b)
	return nil
}
