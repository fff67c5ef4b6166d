package usecase

import (
	"context"
	"path/filepath"
	"testing"

	"mpesa_backend/internal/domain"
	"mpesa_backend/internal/gateway"
	"mpesa_backend/internal/repository"

	"github.com/shopspring/decimal"
)

type fakeGateway struct {
	pushFn  func(ctx context.Context, p gateway.PushRequest) (gateway.Response, error)
	queryFn func(ctx context.Context, id string) (gateway.Response, error)

	pushCalls  int
	queryCalls int
}

func (f *fakeGateway) Push(ctx context.Context, p gateway.PushRequest) (gateway.Response, error) {
	f.pushCalls++
	return f.pushFn(ctx, p)
}

func (f *fakeGateway) Query(ctx context.Context, id string) (gateway.Response, error) {
	f.queryCalls++
	return f.queryFn(ctx, id)
}

// hookedStore wraps a real store and lets a test override single methods.
type hookedStore struct {
	repository.TransactionStore
	findFn   func(ctx context.Context, id string) (*domain.Transaction, error)
	updateFn func(ctx context.Context, id string, u domain.TransactionUpdate) error

	updates int
}

func (s *hookedStore) FindByCheckoutID(ctx context.Context, id string) (*domain.Transaction, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return s.TransactionStore.FindByCheckoutID(ctx, id)
}

func (s *hookedStore) Update(ctx context.Context, id string, u domain.TransactionUpdate) error {
	s.updates++
	if s.updateFn != nil {
		return s.updateFn(ctx, id, u)
	}
	return s.TransactionStore.Update(ctx, id, u)
}

func newStore(t *testing.T) *hookedStore {
	t.Helper()
	repo, err := repository.NewSQLiteRepo(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return &hookedStore{TransactionStore: repo}
}

func seedPending(t *testing.T, store repository.TransactionStore, id string) {
	t.Helper()
	tx := &domain.Transaction{
		CheckoutRequestID: id,
		MerchantRequestID: "29115-34620561-1",
		PhoneNumber:       "0712345678",
		Amount:            decimal.NewFromInt(50),
		AccountReference:  "INV-1",
		TransactionDesc:   "Invoice 1",
		Status:            domain.StatusPending,
	}
	if err := store.Create(context.Background(), tx); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func decimalFromInt(n int64) decimal.Decimal { return decimal.NewFromInt(n) }
