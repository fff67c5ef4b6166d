package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TxStatus string

const (
	StatusPending   TxStatus = "pending"
	StatusCompleted TxStatus = "completed"
	StatusFailed    TxStatus = "failed"
)

func (s TxStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Transaction is one STK push attempt, keyed by the gateway's CheckoutRequestID.
type Transaction struct {
	ID                  int64           `json:"id"`
	CheckoutRequestID   string          `json:"checkout_request_id"`
	MerchantRequestID   string          `json:"merchant_request_id"`
	PhoneNumber         string          `json:"phone_number"`
	Amount              decimal.Decimal `json:"amount"`
	AccountReference    string          `json:"account_reference"`
	TransactionDesc     string          `json:"transaction_desc"`
	Status              TxStatus        `json:"status"`
	ResponseCode        *string         `json:"response_code,omitempty"`
	ResponseDescription *string         `json:"response_description,omitempty"`
	ResultCode          *string         `json:"result_code,omitempty"`
	ResultDesc          *string         `json:"result_desc,omitempty"`
	MpesaReceiptNumber  *string         `json:"mpesa_receipt_number,omitempty"`
	TransactionDate     *time.Time      `json:"transaction_date,omitempty"`
	CallbackMetadata    map[string]any  `json:"callback_metadata,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (t *Transaction) IsPending() bool   { return t.Status == StatusPending }
func (t *Transaction) IsCompleted() bool { return t.Status == StatusCompleted }
func (t *Transaction) IsFailed() bool    { return t.Status == StatusFailed }

// TransactionUpdate lists the attributes to overwrite; nil fields are left as stored.
// Stores always refresh UpdatedAt.
type TransactionUpdate struct {
	Status             *TxStatus
	ResultCode         *string
	ResultDesc         *string
	MpesaReceiptNumber *string
	TransactionDate    *time.Time
	PhoneNumber        *string
	Amount             *decimal.Decimal
	CallbackMetadata   map[string]any
}

// ResultUpdate is the update shared by the callback and query paths.
func ResultUpdate(code, desc string) TransactionUpdate {
	status := StatusForResult(code)
	return TransactionUpdate{
		Status:     &status,
		ResultCode: &code,
		ResultDesc: &desc,
	}
}

// StatusForResult maps a gateway result code to a terminal status. Only a code
// that parses to the integer 0 means success.
func StatusForResult(code string) TxStatus {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err == nil && n == 0 {
		return StatusCompleted
	}
	return StatusFailed
}

// Apply copies the set fields of u onto t.
func (t *Transaction) Apply(u TransactionUpdate, at time.Time) {
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.ResultCode != nil {
		t.ResultCode = u.ResultCode
	}
	if u.ResultDesc != nil {
		t.ResultDesc = u.ResultDesc
	}
	if u.MpesaReceiptNumber != nil {
		t.MpesaReceiptNumber = u.MpesaReceiptNumber
	}
	if u.TransactionDate != nil {
		t.TransactionDate = u.TransactionDate
	}
	if u.PhoneNumber != nil {
		t.PhoneNumber = *u.PhoneNumber
	}
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.CallbackMetadata != nil {
		t.CallbackMetadata = u.CallbackMetadata
	}
	t.UpdatedAt = at
}
