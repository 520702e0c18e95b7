package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradehub/models"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) PostgresRepository {
	return PostgresRepository{db: db}
}

func (r PostgresRepository) CreateUser(
	ctx context.Context,
	user models.User,
) error {
	_, err := r.db.ExecContext(
		ctx,
		"INSERT INTO users (id, username, password) VALUES ($1, $2, $3)",
		user.ID, user.Username, user.Password,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r PostgresRepository) GetUserByUsername(
	ctx context.Context,
	username string,
) (models.User, error) {
	row := r.db.QueryRowContext(
		ctx,
		"SELECT id, username, password FROM users WHERE username=$1",
		username,
	)
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Password); err != nil {
		return models.User{}, notFound(err, "select user")
	}
	return u, nil
}

func (r PostgresRepository) GetUsernames(
	ctx context.Context,
	ids []string,
) (map[string]string, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"SELECT id, username FROM users WHERE id = ANY($1)",
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("select usernames: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string, len(ids))
	for rows.Next() {
		var id, username string
		if err := rows.Scan(&id, &username); err != nil {
			return nil, fmt.Errorf("scan username: %w", err)
		}
		names[id] = username
	}
	return names, rows.Err()
}

func (r PostgresRepository) ListNotifications(
	ctx context.Context,
	userID string,
) ([]models.Notification, error) {
	var exists bool
	err := r.db.QueryRowContext(
		ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)",
		userID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	if !exists {
		return nil, models.ErrNotFound
	}

	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, message, sender_id, trade_id, read, created_at
		 FROM notifications
		 WHERE user_id=$1
		 ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var notes []models.Notification
	for rows.Next() {
		var (
			n       models.Notification
			tradeID sql.NullString
		)
		if err := rows.Scan(
			&n.ID,
			&n.Message,
			&n.SenderID,
			&tradeID,
			&n.Read,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.TradeID = tradeID.String
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (r PostgresRepository) CreateItem(
	ctx context.Context,
	item models.Item,
) error {
	_, err := r.db.ExecContext(
		ctx,
		"INSERT INTO items (id, name, type, quantity, image, owner_id) VALUES ($1, $2, $3, $4, $5, $6)",
		item.ID, item.Name, item.Type, item.Quantity, item.Image, item.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r PostgresRepository) GetItem(
	ctx context.Context,
	id string,
) (models.Item, error) {
	row := r.db.QueryRowContext(
		ctx,
		"SELECT id, name, type, quantity, image, owner_id FROM items WHERE id=$1",
		id,
	)
	var it models.Item
	if err := row.Scan(&it.ID, &it.Name, &it.Type, &it.Quantity, &it.Image, &it.OwnerID); err != nil {
		return models.Item{}, notFound(err, "select item")
	}
	return it, nil
}

// ListItemsPartitioned returns the user's items and everyone else's items.
func (r PostgresRepository) ListItemsPartitioned(
	ctx context.Context,
	userID string,
) ([]models.Item, []models.Item, error) {
	mine, err := r.queryItems(
		ctx,
		`SELECT id, name, type, quantity, image, owner_id
		 FROM items
		 WHERE owner_id=$1
		 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, nil, err
	}

	others, err := r.queryItems(
		ctx,
		`SELECT id, name, type, quantity, image, owner_id
		 FROM items
		 WHERE owner_id<>$1
		 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, nil, err
	}
	return mine, others, nil
}

func (r PostgresRepository) queryItems(
	ctx context.Context,
	query string,
	args ...interface{},
) ([]models.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(
			&it.ID,
			&it.Name,
			&it.Type,
			&it.Quantity,
			&it.Image,
			&it.OwnerID,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r PostgresRepository) DeleteItem(
	ctx context.Context,
	id string,
) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM items WHERE id=$1", id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return expectAffected(res)
}

func (r PostgresRepository) GetTrade(
	ctx context.Context,
	id string,
) (models.Trade, error) {
	row := r.db.QueryRowContext(
		ctx,
		"SELECT id, item_id, owner_id, requester_id, status, created_at FROM trades WHERE id=$1",
		id,
	)
	var t models.Trade
	if err := row.Scan(&t.ID, &t.ItemID, &t.OwnerID, &t.RequesterID, &t.Status, &t.CreatedAt); err != nil {
		return models.Trade{}, notFound(err, "select trade")
	}
	return t, nil
}

// CreateTrade inserts the trade and the recipient's notification in one
// transaction.
func (r PostgresRepository) CreateTrade(
	ctx context.Context,
	trade models.Trade,
	recipientID string,
	n models.Notification,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		"INSERT INTO trades (id, item_id, owner_id, requester_id, status, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6)",
		trade.ID, trade.ItemID, trade.OwnerID, trade.RequesterID, trade.Status, trade.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	if err := appendNotification(ctx, tx, recipientID, n); err != nil {
		return err
	}
	return tx.Commit()
}

func (r PostgresRepository) UpdateTradeStatus(
	ctx context.Context,
	tradeID string,
	status models.TradeStatus,
	recipientID string,
	n models.Notification,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		"UPDATE trades SET status=$1 WHERE id=$2",
		status, tradeID,
	)
	if err != nil {
		return fmt.Errorf("update trade: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	if err := appendNotification(ctx, tx, recipientID, n); err != nil {
		return err
	}
	return tx.Commit()
}

func appendNotification(
	ctx context.Context,
	tx *sql.Tx,
	userID string,
	n models.Notification,
) error {
	_, err := tx.ExecContext(
		ctx,
		"INSERT INTO notifications (id, user_id, message, sender_id, trade_id, read, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7)",
		n.ID, userID, n.Message, n.SenderID,
		sql.NullString{String: n.TradeID, Valid: n.TradeID != ""},
		n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
