package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"storefront-service/internal/entity"
)

const (
	ProductsCollection = "products"
	OrdersCollection   = "orders"
)

// MongoStore persists products and orders in MongoDB. Transactions need a
// replica set or sharded cluster.
type MongoStore struct {
	client   *mongo.Client
	db       *mongo.Database
	products *mongo.Collection
	orders   *mongo.Collection

	maxCommitTime time.Duration
}

// ConnectMongo opens a client and pings it, retrying while the server comes up.
func ConnectMongo(ctx context.Context, uri, dbName string, retries int, maxCommitTime time.Duration, logger zerolog.Logger) (*MongoStore, error) {
	var (
		client *mongo.Client
		err    error
	)
	for i := 0; i < retries; i++ {
		client, err = mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = client.Ping(pingCtx, nil)
			cancel()
			if err == nil {
				logger.Info().Msgf("Connected to MongoDB database %s", dbName)
				return NewMongoStore(client, dbName, maxCommitTime), nil
			}
			_ = client.Disconnect(ctx)
		}
		logger.Warn().Err(err).Msgf("Retry %d: failed to connect to MongoDB database %s", i+1, dbName)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return nil, fmt.Errorf("failed to connect to MongoDB database %s after %d retries: %w", dbName, retries, err)
}

func NewMongoStore(client *mongo.Client, dbName string, maxCommitTime time.Duration) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:        client,
		db:            db,
		products:      db.Collection(ProductsCollection),
		orders:        db.Collection(OrdersCollection),
		maxCommitTime: maxCommitTime,
	}
}

func (s *MongoStore) Database() *mongo.Database {
	return s.db
}

func (s *MongoStore) GetProductByID(ctx context.Context, id primitive.ObjectID) (*entity.Product, error) {
	return findProduct(ctx, s.products, id)
}

func findProduct(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) (*entity.Product, error) {
	var product entity.Product
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product %s: %w", id.Hex(), err)
	}
	return &product, nil
}

func (s *MongoStore) CreateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	if _, err := s.products.InsertOne(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}
	return product, nil
}

func (s *MongoStore) UpdateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	product.UpdatedAt = time.Now().UTC()
	res, err := s.products.ReplaceOne(ctx, bson.M{"_id": product.ID}, product)
	if err != nil {
		return nil, fmt.Errorf("failed to update product %s: %w", product.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return product, nil
}

func (s *MongoStore) GetOrderByID(ctx context.Context, id primitive.ObjectID) (*entity.Order, error) {
	var order entity.Order
	err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order %s: %w", id.Hex(), err)
	}
	return &order, nil
}

func (s *MongoStore) ListOrders(ctx context.Context, filter entity.OrderFilter) ([]*entity.Order, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	if filter.Skip > 0 {
		opts.SetSkip(filter.Skip)
	}

	cur, err := s.orders.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cur.Close(ctx)

	orders := []*entity.Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (s *MongoStore) UpdateOrderStatus(ctx context.Context, id primitive.ObjectID, status entity.OrderStatus) (*entity.Order, error) {
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order entity.Order
	err := s.orders.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order %s status: %w", id.Hex(), err)
	}
	return &order, nil
}

// WithTransaction runs fn inside a snapshot-isolated, majority-committed
// transaction. The driver re-runs fn on transient errors such as write
// conflicts with a concurrent checkout.
func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.Background())

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if s.maxCommitTime > 0 {
		txOpts.SetMaxCommitTime(&s.maxCommitTime)
	}

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &mongoTx{store: s})
	}, txOpts)
	return err
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// mongoTx relies on the session carried by ctx, so every call must receive
// the context handed to the WithTransaction callback.
type mongoTx struct {
	store *MongoStore
}

func (tx *mongoTx) GetProductByID(ctx context.Context, id primitive.ObjectID) (*entity.Product, error) {
	return findProduct(ctx, tx.store.products, id)
}

func (tx *mongoTx) DecrementStock(ctx context.Context, productID primitive.ObjectID, color, size string, quantity int) error {
	product, err := findProduct(ctx, tx.store.products, productID)
	if err != nil {
		return err
	}
	filter, update, err := stockDecrement(product, color, size, quantity, time.Now().UTC())
	if err != nil {
		return err
	}

	res, err := tx.store.products.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to decrement stock for product %s: %w", productID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return ErrStockChanged
	}
	return nil
}

// stockDecrement addresses the first matching (color, size) of product by
// position. The filter only matches while enough stock remains.
func stockDecrement(product *entity.Product, color, size string, quantity int, now time.Time) (bson.M, bson.M, error) {
	vi, si := product.FindSize(color, size)
	if vi < 0 || si < 0 {
		return nil, nil, ErrStockChanged
	}

	base := fmt.Sprintf("variants.%d", vi)
	sizePath := fmt.Sprintf("%s.sizes.%d", base, si)
	filter := bson.M{
		"_id":               product.ID,
		base + ".color":     color,
		sizePath + ".size":  size,
		sizePath + ".stock": bson.M{"$gte": quantity},
	}
	update := bson.M{
		"$inc": bson.M{sizePath + ".stock": -quantity},
		"$set": bson.M{"updatedAt": now},
	}
	return filter, update, nil
}

func (tx *mongoTx) CreateOrder(ctx context.Context, order *entity.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, err := tx.store.orders.InsertOne(ctx, order); err != nil {
		return insertOrderError(err)
	}
	return nil
}

func insertOrderError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to insert order: %w", ErrDuplicateKey)
	}
	return fmt.Errorf("failed to insert order: %w", err)
}
