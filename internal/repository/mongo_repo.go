package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mpesa_backend/internal/domain"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoCollection = "mpesa_transactions"

type mongoTransaction struct {
	ID                  primitive.ObjectID   `bson:"_id,omitempty"`
	CheckoutRequestID   string               `bson:"checkout_request_id"`
	MerchantRequestID   string               `bson:"merchant_request_id"`
	PhoneNumber         string               `bson:"phone_number"`
	Amount              primitive.Decimal128 `bson:"amount"`
	AccountReference    string               `bson:"account_reference"`
	TransactionDesc     string               `bson:"transaction_desc"`
	Status              string               `bson:"status"`
	ResponseCode        *string              `bson:"response_code,omitempty"`
	ResponseDescription *string              `bson:"response_description,omitempty"`
	ResultCode          *string              `bson:"result_code,omitempty"`
	ResultDesc          *string              `bson:"result_desc,omitempty"`
	MpesaReceiptNumber  *string              `bson:"mpesa_receipt_number,omitempty"`
	TransactionDate     *time.Time           `bson:"transaction_date,omitempty"`
	CallbackMetadata    bson.M               `bson:"callback_metadata,omitempty"`
	CreatedAt           time.Time            `bson:"created_at"`
	UpdatedAt           time.Time            `bson:"updated_at"`
}

// MongoRepo stores transactions as documents. The surrogate ID is an
// ObjectID, so domain.Transaction.ID stays zero for this store.
type MongoRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func OpenMongo(ctx context.Context, uri, database string) (*MongoRepo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	log.Println("Connected to MongoDB!")

	r := &MongoRepo{client: client, coll: client.Database(database).Collection(mongoCollection)}
	if err := r.EnsureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return r, nil
}

// EnsureIndexes mirrors the relational schema's unique key and lookups.
func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "checkout_request_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "phone_number", Value: 1}}},
		{Keys: bson.D{{Key: "mpesa_receipt_number", Value: 1}}},
		{Keys: bson.D{{Key: "account_reference", Value: 1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Printf("Failed to create indexes: %v", err)
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *MongoRepo) Create(ctx context.Context, t *domain.Transaction) error {
	now := time.Now().UTC()
	if t.Status == "" {
		t.Status = domain.StatusPending
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	amount, err := toDecimal128(t.Amount)
	if err != nil {
		return err
	}

	doc := mongoTransaction{
		CheckoutRequestID:   t.CheckoutRequestID,
		MerchantRequestID:   t.MerchantRequestID,
		PhoneNumber:         t.PhoneNumber,
		Amount:              amount,
		AccountReference:    t.AccountReference,
		TransactionDesc:     t.TransactionDesc,
		Status:              string(t.Status),
		ResponseCode:        t.ResponseCode,
		ResponseDescription: t.ResponseDescription,
		ResultCode:          t.ResultCode,
		ResultDesc:          t.ResultDesc,
		MpesaReceiptNumber:  t.MpesaReceiptNumber,
		TransactionDate:     t.TransactionDate,
		CallbackMetadata:    t.CallbackMetadata,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *MongoRepo) FindByCheckoutID(ctx context.Context, id string) (*domain.Transaction, error) {
	var doc mongoTransaction
	err := r.coll.FindOne(ctx, bson.M{"checkout_request_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromDoc(doc)
}

func (r *MongoRepo) Update(ctx context.Context, id string, u domain.TransactionUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Status != nil {
		set["status"] = string(*u.Status)
	}
	if u.ResultCode != nil {
		set["result_code"] = *u.ResultCode
	}
	if u.ResultDesc != nil {
		set["result_desc"] = *u.ResultDesc
	}
	if u.MpesaReceiptNumber != nil {
		set["mpesa_receipt_number"] = *u.MpesaReceiptNumber
	}
	if u.TransactionDate != nil {
		set["transaction_date"] = *u.TransactionDate
	}
	if u.PhoneNumber != nil {
		set["phone_number"] = *u.PhoneNumber
	}
	if u.Amount != nil {
		amount, err := toDecimal128(*u.Amount)
		if err != nil {
			return err
		}
		set["amount"] = amount
	}
	if u.CallbackMetadata != nil {
		set["callback_metadata"] = u.CallbackMetadata
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"checkout_request_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoRepo) List(ctx context.Context, f TxFilter, limit, offset int) ([]domain.Transaction, error) {
	limit, offset = ClampPage(limit, offset)

	query := bson.M{}
	if f.Status != "" {
		query["status"] = string(f.Status)
	}
	if f.PhoneNumber != "" {
		query["phone_number"] = f.PhoneNumber
	}
	if f.AccountReference != "" {
		query["account_reference"] = f.AccountReference
	}
	if f.MpesaReceiptNumber != "" {
		query["mpesa_receipt_number"] = f.MpesaReceiptNumber
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mongoTransaction
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]domain.Transaction, 0, len(docs))
	for _, doc := range docs {
		t, err := fromDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.StringFixed(2))
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode amount: %w", err)
	}
	return v, nil
}

func fromDoc(doc mongoTransaction) (*domain.Transaction, error) {
	amount, err := decimal.NewFromString(doc.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	t := &domain.Transaction{
		CheckoutRequestID:   doc.CheckoutRequestID,
		MerchantRequestID:   doc.MerchantRequestID,
		PhoneNumber:         doc.PhoneNumber,
		Amount:              amount,
		AccountReference:    doc.AccountReference,
		TransactionDesc:     doc.TransactionDesc,
		Status:              domain.TxStatus(doc.Status),
		ResponseCode:        doc.ResponseCode,
		ResponseDescription: doc.ResponseDescription,
		ResultCode:          doc.ResultCode,
		ResultDesc:          doc.ResultDesc,
		MpesaReceiptNumber:  doc.MpesaReceiptNumber,
		TransactionDate:     doc.TransactionDate,
		CreatedAt:           doc.CreatedAt,
		UpdatedAt:           doc.UpdatedAt,
	}
	if doc.CallbackMetadata != nil {
		t.CallbackMetadata = map[string]any(doc.CallbackMetadata)
	}
	return t, nil
}
