package repository

import (
	"context"

	"mpesa_backend/internal/domain"
)

// TransactionStore is everything the usecases need from persistence.
type TransactionStore interface {
	Create(ctx context.Context, t *domain.Transaction) error
	FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*domain.Transaction, error)
	Update(ctx context.Context, checkoutRequestID string, u domain.TransactionUpdate) error
	List(ctx context.Context, f TxFilter, limit, offset int) ([]domain.Transaction, error)
	Close() error
}

type TxFilter struct {
	Status             domain.TxStatus
	PhoneNumber        string
	AccountReference   string
	MpesaReceiptNumber string
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ClampPage applies the list defaults shared by every store.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

var (
	_ TransactionStore = (*SQLiteRepo)(nil)
	_ TransactionStore = (*GormRepo)(nil)
	_ TransactionStore = (*MongoRepo)(nil)
)
