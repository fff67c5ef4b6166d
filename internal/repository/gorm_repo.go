package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"mpesa_backend/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mpesaTransaction is the relational row. Column names match the SQLite schema.
type mpesaTransaction struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement"`
	CheckoutRequestID   string          `gorm:"size:100;not null;uniqueIndex"`
	MerchantRequestID   string          `gorm:"size:100;not null"`
	PhoneNumber         string          `gorm:"size:20;not null;index"`
	Amount              decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	AccountReference    string          `gorm:"size:100;not null;index"`
	TransactionDesc     string          `gorm:"size:255;not null"`
	Status              string          `gorm:"size:20;not null;default:pending;index:idx_mpesa_status_created,priority:1"`
	ResponseCode        *string         `gorm:"size:10"`
	ResponseDescription *string         `gorm:"size:255"`
	ResultCode          *string         `gorm:"size:10"`
	ResultDesc          *string         `gorm:"size:255"`
	MpesaReceiptNumber  *string         `gorm:"size:50;index"`
	TransactionDate     *time.Time
	CallbackMetadata    datatypes.JSON
	CreatedAt           time.Time `gorm:"index:idx_mpesa_status_created,priority:2"`
	UpdatedAt           time.Time
}

func (mpesaTransaction) TableName() string { return "mpesa_transactions" }

type GormRepo struct {
	db *gorm.DB
}

// OpenMySQL connects through gorm's MySQL dialector and migrates the table.
func OpenMySQL(dsn string, verbose bool) (*GormRepo, error) {
	gormLogger := logger.Default.LogMode(logger.Silent)
	if verbose {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewGormRepo(db)
}

func NewGormRepo(db *gorm.DB) (*GormRepo, error) {
	if err := db.AutoMigrate(&mpesaTransaction{}); err != nil {
		return nil, fmt.Errorf("migrate mpesa_transactions: %w", err)
	}
	log.Printf("[database] mpesa_transactions migrated")
	return &GormRepo{db: db}, nil
}

func (r *GormRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *GormRepo) Create(ctx context.Context, t *domain.Transaction) error {
	if t.Status == "" {
		t.Status = domain.StatusPending
	}
	row, err := toRow(t)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	t.ID = row.ID
	t.CreatedAt = row.CreatedAt
	t.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *GormRepo) FindByCheckoutID(ctx context.Context, id string) (*domain.Transaction, error) {
	var row mpesaTransaction
	err := r.db.WithContext(ctx).Where("checkout_request_id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRow(row)
}

func (r *GormRepo) Update(ctx context.Context, id string, u domain.TransactionUpdate) error {
	fields := map[string]any{"updated_at": time.Now()}
	if u.Status != nil {
		fields["status"] = string(*u.Status)
	}
	if u.ResultCode != nil {
		fields["result_code"] = *u.ResultCode
	}
	if u.ResultDesc != nil {
		fields["result_desc"] = *u.ResultDesc
	}
	if u.MpesaReceiptNumber != nil {
		fields["mpesa_receipt_number"] = *u.MpesaReceiptNumber
	}
	if u.TransactionDate != nil {
		fields["transaction_date"] = *u.TransactionDate
	}
	if u.PhoneNumber != nil {
		fields["phone_number"] = *u.PhoneNumber
	}
	if u.Amount != nil {
		fields["amount"] = *u.Amount
	}
	if u.CallbackMetadata != nil {
		b, err := json.Marshal(u.CallbackMetadata)
		if err != nil {
			return fmt.Errorf("encode callback metadata: %w", err)
		}
		fields["callback_metadata"] = datatypes.JSON(b)
	}

	res := r.db.WithContext(ctx).Model(&mpesaTransaction{}).
		Where("checkout_request_id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update transaction: %w", res.Error)
	}

	// MySQL reports changed rows, not matched rows, so an identical replay
	// within the same clock tick can affect zero rows.
	if res.RowsAffected == 0 {
		var n int64
		if err := r.db.WithContext(ctx).Model(&mpesaTransaction{}).
			Where("checkout_request_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (r *GormRepo) List(ctx context.Context, f TxFilter, limit, offset int) ([]domain.Transaction, error) {
	limit, offset = ClampPage(limit, offset)

	q := r.db.WithContext(ctx).Model(&mpesaTransaction{})
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.PhoneNumber != "" {
		q = q.Where("phone_number = ?", f.PhoneNumber)
	}
	if f.AccountReference != "" {
		q = q.Where("account_reference = ?", f.AccountReference)
	}
	if f.MpesaReceiptNumber != "" {
		q = q.Where("mpesa_receipt_number = ?", f.MpesaReceiptNumber)
	}

	var rows []mpesaTransaction
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func toRow(t *domain.Transaction) (mpesaTransaction, error) {
	row := mpesaTransaction{
		CheckoutRequestID:   t.CheckoutRequestID,
		MerchantRequestID:   t.MerchantRequestID,
		PhoneNumber:         t.PhoneNumber,
		Amount:              t.Amount.Round(2),
		AccountReference:    t.AccountReference,
		TransactionDesc:     t.TransactionDesc,
		Status:              string(t.Status),
		ResponseCode:        t.ResponseCode,
		ResponseDescription: t.ResponseDescription,
		ResultCode:          t.ResultCode,
		ResultDesc:          t.ResultDesc,
		MpesaReceiptNumber:  t.MpesaReceiptNumber,
		TransactionDate:     t.TransactionDate,
	}
	if t.CallbackMetadata != nil {
		b, err := json.Marshal(t.CallbackMetadata)
		if err != nil {
			return row, fmt.Errorf("encode callback metadata: %w", err)
		}
		row.CallbackMetadata = datatypes.JSON(b)
	}
	return row, nil
}

func fromRow(row mpesaTransaction) (*domain.Transaction, error) {
	t := &domain.Transaction{
		ID:                  row.ID,
		CheckoutRequestID:   row.CheckoutRequestID,
		MerchantRequestID:   row.MerchantRequestID,
		PhoneNumber:         row.PhoneNumber,
		Amount:              row.Amount,
		AccountReference:    row.AccountReference,
		TransactionDesc:     row.TransactionDesc,
		Status:              domain.TxStatus(row.Status),
		ResponseCode:        row.ResponseCode,
		ResponseDescription: row.ResponseDescription,
		ResultCode:          row.ResultCode,
		ResultDesc:          row.ResultDesc,
		MpesaReceiptNumber:  row.MpesaReceiptNumber,
		TransactionDate:     row.TransactionDate,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
	if len(row.CallbackMetadata) > 0 {
		if err := json.Unmarshal(row.CallbackMetadata, &t.CallbackMetadata); err != nil {
			return nil, fmt.Errorf("parse callback metadata: %w", err)
		}
	}
	return t, nil
}
