package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type orderLineDocument struct {
	ProductID string               `bson:"product_id"`
	Barcode   string               `bson:"barcode"`
	Name      string               `bson:"name"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
	Quantity  int                  `bson:"quantity"`
}

type orderDocument struct {
	ID            string               `bson:"_id"`
	MerchantID    string               `bson:"merchant_id"`
	Lines         []orderLineDocument  `bson:"lines"`
	PaymentMethod string               `bson:"payment_method"`
	Total         primitive.Decimal128 `bson:"total"`
	PaymentRef    string               `bson:"payment_ref"`
	CreatedAt     time.Time            `bson:"created_at"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(d.String())
}

func newOrderDocument(o *domain.Order) (*orderDocument, error) {
	total, err := toDecimal128(o.Total)
	if err != nil {
		return nil, fmt.Errorf("convert total: %w", err)
	}
	lines := make([]orderLineDocument, 0, len(o.Lines))
	for _, l := range o.Lines {
		price, err := toDecimal128(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("convert unit price: %w", err)
		}
		lines = append(lines, orderLineDocument{
			ProductID: l.ProductID,
			Barcode:   l.Barcode,
			Name:      l.Name,
			UnitPrice: price,
			Quantity:  l.Quantity,
		})
	}
	return &orderDocument{
		ID:            o.ID.String(),
		MerchantID:    o.MerchantID,
		Lines:         lines,
		PaymentMethod: string(o.PaymentMethod),
		Total:         total,
		PaymentRef:    o.PaymentRef,
		CreatedAt:     o.CreatedAt,
	}, nil
}

func (d *orderDocument) toDomain() (*domain.Order, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("parse order id: %w", err)
	}
	total, err := fromDecimal128(d.Total)
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	lines := make([]domain.CartLine, 0, len(d.Lines))
	for _, l := range d.Lines {
		price, err := fromDecimal128(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		lines = append(lines, domain.CartLine{
			ProductID: l.ProductID,
			Barcode:   l.Barcode,
			Name:      l.Name,
			UnitPrice: price,
			Quantity:  l.Quantity,
		})
	}
	return &domain.Order{
		ID:            id,
		MerchantID:    d.MerchantID,
		Lines:         lines,
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		Total:         total,
		PaymentRef:    d.PaymentRef,
		CreatedAt:     d.CreatedAt.UTC(),
	}, nil
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection("orders")}
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "merchant_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "payment_ref", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (m *MongoRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	doc, err := newOrderDocument(order)
	if err != nil {
		return err
	}
	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MongoRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var doc orderDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return doc.toDomain()
}

func (m *MongoRepository) ListOrdersByMerchant(ctx context.Context, merchantID string, limit int) ([]*domain.Order, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(normalizeLimit(limit)))

	cursor, err := m.collection.Find(ctx, bson.M{"merchant_id": merchantID}, opts)
	if err != nil {
		return nil, fmt.Errorf("query orders by merchant: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*domain.Order
	for cursor.Next(ctx) {
		var doc orderDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		o, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}

// Close is a no-op; the client is shared with the catalog and owned by the caller.
func (m *MongoRepository) Close() error {
	return nil
}
