package repository

import (
	"context"
	"errors"
	"fmt"

	"tradehub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionUsers  = "users"
	CollectionItems  = "items"
	CollectionTrades = "trades"
)

// MongoRepository keeps each user's notifications embedded in the user
// document. Trade writes and notification appends are separate
// single-document writes: if the append fails the trade stays written and
// the error is returned to the caller.
type MongoRepository struct {
	users  *mongo.Collection
	items  *mongo.Collection
	trades *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) MongoRepository {
	return MongoRepository{
		users:  db.Collection(CollectionUsers),
		items:  db.Collection(CollectionItems),
		trades: db.Collection(CollectionTrades),
	}
}

func (r MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	_, err = r.items.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create items index: %w", err)
	}
	return nil
}

func (r MongoRepository) CreateUser(ctx context.Context, user models.User) error {
	if user.Notifications == nil {
		user.Notifications = []models.Notification{}
	}
	if _, err := r.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r MongoRepository) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.users.FindOne(
		ctx,
		bson.M{"username": username},
		options.FindOne().SetProjection(bson.M{"notifications": 0}),
	).Decode(&u)
	if err != nil {
		return models.User{}, noDocuments(err, "find user")
	}
	return u, nil
}

func (r MongoRepository) GetUsernames(ctx context.Context, ids []string) (map[string]string, error) {
	cur, err := r.users.Find(
		ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"username": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("find usernames: %w", err)
	}

	var docs []struct {
		ID       string `bson:"_id"`
		Username string `bson:"username"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode usernames: %w", err)
	}
	names := make(map[string]string, len(docs))
	for _, d := range docs {
		names[d.ID] = d.Username
	}
	return names, nil
}

func (r MongoRepository) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	var doc struct {
		Notifications []models.Notification `bson:"notifications"`
	}
	err := r.users.FindOne(
		ctx,
		bson.M{"_id": userID},
		options.FindOne().SetProjection(bson.M{"notifications": 1}),
	).Decode(&doc)
	if err != nil {
		return nil, noDocuments(err, "find notifications")
	}
	return doc.Notifications, nil
}

func (r MongoRepository) CreateItem(ctx context.Context, item models.Item) error {
	if _, err := r.items.InsertOne(ctx, item); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r MongoRepository) GetItem(ctx context.Context, id string) (models.Item, error) {
	var it models.Item
	if err := r.items.FindOne(ctx, bson.M{"_id": id}).Decode(&it); err != nil {
		return models.Item{}, noDocuments(err, "find item")
	}
	return it, nil
}

func (r MongoRepository) ListItemsPartitioned(ctx context.Context, userID string) ([]models.Item, []models.Item, error) {
	mine, err := r.findItems(ctx, bson.M{"owner": userID})
	if err != nil {
		return nil, nil, err
	}
	others, err := r.findItems(ctx, bson.M{"owner": bson.M{"$ne": userID}})
	if err != nil {
		return nil, nil, err
	}
	return mine, others, nil
}

func (r MongoRepository) findItems(ctx context.Context, filter bson.M) ([]models.Item, error) {
	cur, err := r.items.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	var items []models.Item
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

func (r MongoRepository) DeleteItem(ctx context.Context, id string) error {
	res, err := r.items.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r MongoRepository) GetTrade(ctx context.Context, id string) (models.Trade, error) {
	var t models.Trade
	if err := r.trades.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return models.Trade{}, noDocuments(err, "find trade")
	}
	return t, nil
}

func (r MongoRepository) CreateTrade(
	ctx context.Context,
	trade models.Trade,
	recipientID string,
	n models.Notification,
) error {
	if _, err := r.trades.InsertOne(ctx, trade); err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return r.pushNotification(ctx, recipientID, n)
}

func (r MongoRepository) UpdateTradeStatus(
	ctx context.Context,
	tradeID string,
	status models.TradeStatus,
	recipientID string,
	n models.Notification,
) error {
	res, err := r.trades.UpdateOne(
		ctx,
		bson.M{"_id": tradeID},
		bson.M{"$set": bson.M{"status": status}},
	)
	if err != nil {
		return fmt.Errorf("update trade: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return r.pushNotification(ctx, recipientID, n)
}

func (r MongoRepository) pushNotification(ctx context.Context, userID string, n models.Notification) error {
	res, err := r.users.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$push": bson.M{"notifications": n}},
	)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("append notification: user %s does not exist", userID)
	}
	return nil
}

func noDocuments(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
