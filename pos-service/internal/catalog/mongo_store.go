package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productDocument struct {
	ID            string               `bson:"_id"`
	Barcode       string               `bson:"barcode"`
	Name          string               `bson:"name"`
	UnitPrice     primitive.Decimal128 `bson:"unit_price"`
	StockQuantity int                  `bson:"stock_quantity"`
}

func (d productDocument) toDomain() (*domain.Product, error) {
	price, err := decimal.NewFromString(d.UnitPrice.String())
	if err != nil {
		return nil, fmt.Errorf("parse unit price of %s: %w", d.ID, err)
	}
	return &domain.Product{
		ID:            d.ID,
		Barcode:       d.Barcode,
		Name:          d.Name,
		UnitPrice:     price,
		StockQuantity: d.StockQuantity,
	}, nil
}

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection("products")}
}

func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "barcode", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (m *MongoStore) Resolve(ctx context.Context, barcode string) (*domain.Product, error) {
	if barcode == "" {
		return nil, ErrInvalidBarcode
	}
	return m.findOne(ctx, bson.M{"barcode": barcode})
}

func (m *MongoStore) Get(ctx context.Context, productID string) (*domain.Product, error) {
	return m.findOne(ctx, bson.M{"_id": productID})
}

func (m *MongoStore) findOne(ctx context.Context, filter bson.M) (*domain.Product, error) {
	var doc productDocument
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return doc.toDomain()
}

// Decrement relies on the stock guard in the filter so concurrent checkouts of
// different merchants cannot drive stock negative.
func (m *MongoStore) Decrement(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	filter := bson.M{"_id": productID, "stock_quantity": bson.M{"$gte": qty}}
	update := bson.M{"$inc": bson.M{"stock_quantity": -qty}}

	res, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := m.collection.CountDocuments(ctx, bson.M{"_id": productID})
	if err != nil {
		return fmt.Errorf("failed to check product: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return ErrInsufficientStock
}

func (m *MongoStore) Restock(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	res, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": productID},
		bson.M{"$inc": bson.M{"stock_quantity": qty}})
	if err != nil {
		return fmt.Errorf("failed to restock: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *MongoStore) Upsert(ctx context.Context, p *domain.Product) error {
	if p.Barcode == "" {
		return ErrInvalidBarcode
	}
	price, err := primitive.ParseDecimal128(p.UnitPrice.String())
	if err != nil {
		return fmt.Errorf("convert unit price: %w", err)
	}
	doc := productDocument{
		ID:            p.ID,
		Barcode:       p.Barcode,
		Name:          p.Name,
		UnitPrice:     price,
		StockQuantity: p.StockQuantity,
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, opts); err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}
