package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mpesa_backend/internal/domain"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode = WAL;")
	db.Exec("PRAGMA busy_timeout = 5000;")

	r := &SQLiteRepo{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return r, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS mpesa_transactions(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			checkout_request_id TEXT NOT NULL UNIQUE,
			merchant_request_id TEXT NOT NULL,
			phone_number TEXT NOT NULL,
			amount TEXT NOT NULL,
			account_reference TEXT NOT NULL,
			transaction_desc TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			response_code TEXT,
			response_description TEXT,
			result_code TEXT,
			result_desc TEXT,
			mpesa_receipt_number TEXT,
			transaction_date TEXT,
			callback_metadata TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_mpesa_status_created ON mpesa_transactions(status, created_at);
		CREATE INDEX IF NOT EXISTS idx_mpesa_phone ON mpesa_transactions(phone_number);
		CREATE INDEX IF NOT EXISTS idx_mpesa_receipt ON mpesa_transactions(mpesa_receipt_number);
		CREATE INDEX IF NOT EXISTS idx_mpesa_account_ref ON mpesa_transactions(account_reference);
	`
	_, err := r.db.Exec(schema)
	return err
}

const selectCols = `
	id,
	checkout_request_id,
	merchant_request_id,
	phone_number,
	amount,
	account_reference,
	transaction_desc,
	status,
	response_code,
	response_description,
	result_code,
	result_desc,
	mpesa_receipt_number,
	transaction_date,
	callback_metadata,
	created_at,
	updated_at
`

func (r *SQLiteRepo) Create(ctx context.Context, t *domain.Transaction) error {
	now := r.now().UTC()
	if t.Status == "" {
		t.Status = domain.StatusPending
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	meta, err := encodeMetadata(t.CallbackMetadata)
	if err != nil {
		return err
	}

	q := `
		INSERT INTO mpesa_transactions(
			checkout_request_id,
			merchant_request_id,
			phone_number,
			amount,
			account_reference,
			transaction_desc,
			status,
			response_code,
			response_description,
			result_code,
			result_desc,
			mpesa_receipt_number,
			transaction_date,
			callback_metadata,
			created_at,
			updated_at
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`

	res, err := r.db.ExecContext(
		ctx, q,
		t.CheckoutRequestID,
		t.MerchantRequestID,
		t.PhoneNumber,
		t.Amount.StringFixed(2),
		t.AccountReference,
		t.TransactionDesc,
		string(t.Status),
		t.ResponseCode,
		t.ResponseDescription,
		t.ResultCode,
		t.ResultDesc,
		t.MpesaReceiptNumber,
		formatTime(t.TransactionDate),
		meta,
		now.Format(timeLayout),
		now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		t.ID = id
	}
	return nil
}

func (r *SQLiteRepo) FindByCheckoutID(ctx context.Context, id string) (*domain.Transaction, error) {
	q := `SELECT ` + selectCols + ` FROM mpesa_transactions WHERE checkout_request_id = ?`

	row := r.db.QueryRowContext(ctx, q, id)
	t, err := scanTx(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

// Update writes only the fields set in u. It is a single statement, so two
// racing callbacks for the same id resolve as last write wins.
func (r *SQLiteRepo) Update(ctx context.Context, id string, u domain.TransactionUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{r.now().UTC().Format(timeLayout)}

	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.ResultCode != nil {
		add("result_code", *u.ResultCode)
	}
	if u.ResultDesc != nil {
		add("result_desc", *u.ResultDesc)
	}
	if u.MpesaReceiptNumber != nil {
		add("mpesa_receipt_number", *u.MpesaReceiptNumber)
	}
	if u.TransactionDate != nil {
		add("transaction_date", formatTime(u.TransactionDate))
	}
	if u.PhoneNumber != nil {
		add("phone_number", *u.PhoneNumber)
	}
	if u.Amount != nil {
		add("amount", u.Amount.StringFixed(2))
	}
	if u.CallbackMetadata != nil {
		meta, err := encodeMetadata(u.CallbackMetadata)
		if err != nil {
			return err
		}
		add("callback_metadata", meta)
	}

	q := `UPDATE mpesa_transactions SET ` + strings.Join(sets, ", ") + ` WHERE checkout_request_id = ?`
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	aff, _ := res.RowsAffected()
	if aff == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *SQLiteRepo) List(ctx context.Context, f TxFilter, limit, offset int) ([]domain.Transaction, error) {
	limit, offset = ClampPage(limit, offset)

	q := `SELECT ` + selectCols + ` FROM mpesa_transactions WHERE 1 = 1`
	args := []any{}

	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, string(f.Status))
	}

	if f.PhoneNumber != "" {
		q += " AND phone_number = ?"
		args = append(args, f.PhoneNumber)
	}

	if f.AccountReference != "" {
		q += " AND account_reference = ?"
		args = append(args, f.AccountReference)
	}

	if f.MpesaReceiptNumber != "" {
		q += " AND mpesa_receipt_number = ?"
		args = append(args, f.MpesaReceiptNumber)
	}

	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}

		res = append(res, *t)
	}

	return res, rows.Err()
}

func scanTx(scanner interface {
	Scan(dest ...any) error
}) (*domain.Transaction, error) {
	var t domain.Transaction
	var status, amount, createdStr, updatedStr string
	var txDateStr, metaStr *string

	if err := scanner.Scan(
		&t.ID,
		&t.CheckoutRequestID,
		&t.MerchantRequestID,
		&t.PhoneNumber,
		&amount,
		&t.AccountReference,
		&t.TransactionDesc,
		&status,
		&t.ResponseCode,
		&t.ResponseDescription,
		&t.ResultCode,
		&t.ResultDesc,
		&t.MpesaReceiptNumber,
		&txDateStr,
		&metaStr,
		&createdStr,
		&updatedStr,
	); err != nil {
		return nil, err
	}

	t.Status = domain.TxStatus(status)

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	t.Amount = amt

	if txDateStr != nil {
		td, err := time.Parse(time.RFC3339Nano, *txDateStr)
		if err != nil {
			return nil, fmt.Errorf("parse transaction date: %w", err)
		}
		t.TransactionDate = &td
	}

	if metaStr != nil && *metaStr != "" {
		if err := json.Unmarshal([]byte(*metaStr), &t.CallbackMetadata); err != nil {
			return nil, fmt.Errorf("parse callback metadata: %w", err)
		}
	}

	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedStr); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &t, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeLayout)
}

func encodeMetadata(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode callback metadata: %w", err)
	}
	return string(b), nil
}
