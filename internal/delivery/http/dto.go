package httpd

import (
	"encoding/json"
	"time"

	"mpesa_backend/internal/domain"
)

type STKPushReq struct {
	Phone            string      `json:"phone" validate:"required,max=20"`
	Amount           json.Number `json:"amount" validate:"required"`
	AccountReference string      `json:"account_reference" validate:"required,max=100"`
	TransactionDesc  string      `json:"transaction_desc" validate:"required,max=255"`
}

type STKQueryReq struct {
	CheckoutRequestID string `json:"checkout_request_id" validate:"required"`
}

type errorResp struct {
	Error   string `json:"error"`
	Success bool   `json:"success"`
}

// StatusResp is the public projection of a stored transaction.
type StatusResp struct {
	CheckoutRequestID  string     `json:"checkout_request_id"`
	Status             string     `json:"status"`
	ResultCode         *string    `json:"result_code"`
	ResultDesc         *string    `json:"result_desc"`
	MpesaReceiptNumber *string    `json:"mpesa_receipt_number"`
	TransactionDate    *time.Time `json:"transaction_date"`
	Amount             string     `json:"amount"`
	PhoneNumber        string     `json:"phone_number"`
	AccountReference   string     `json:"account_reference"`
}

type TxItem struct {
	CheckoutRequestID  string     `json:"checkout_request_id"`
	MerchantRequestID  string     `json:"merchant_request_id"`
	PhoneNumber        string     `json:"phone_number"`
	Amount             string     `json:"amount"`
	AccountReference   string     `json:"account_reference"`
	TransactionDesc    string     `json:"transaction_desc"`
	Status             string     `json:"status"`
	ResultCode         *string    `json:"result_code,omitempty"`
	ResultDesc         *string    `json:"result_desc,omitempty"`
	MpesaReceiptNumber *string    `json:"mpesa_receipt_number,omitempty"`
	TransactionDate    *time.Time `json:"transaction_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toStatusResp(t domain.Transaction) StatusResp {
	return StatusResp{
		CheckoutRequestID:  t.CheckoutRequestID,
		Status:             string(t.Status),
		ResultCode:         t.ResultCode,
		ResultDesc:         t.ResultDesc,
		MpesaReceiptNumber: t.MpesaReceiptNumber,
		TransactionDate:    t.TransactionDate,
		Amount:             t.Amount.StringFixed(2),
		PhoneNumber:        t.PhoneNumber,
		AccountReference:   t.AccountReference,
	}
}

func toTxItem(t domain.Transaction) TxItem {
	return TxItem{
		CheckoutRequestID:  t.CheckoutRequestID,
		MerchantRequestID:  t.MerchantRequestID,
		PhoneNumber:        t.PhoneNumber,
		Amount:             t.Amount.StringFixed(2),
		AccountReference:   t.AccountReference,
		TransactionDesc:    t.TransactionDesc,
		Status:             string(t.Status),
		ResultCode:         t.ResultCode,
		ResultDesc:         t.ResultDesc,
		MpesaReceiptNumber: t.MpesaReceiptNumber,
		TransactionDate:    t.TransactionDate,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}
