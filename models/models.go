package models

import "time"

type User struct {
	ID            string         `bson:"_id"`
	Username      string         `bson:"username"`
	Password      string         `bson:"password"`
	Notifications []Notification `bson:"notifications"`
}

type Item struct {
	ID       string `json:"id" bson:"_id"`
	Name     string `json:"name" bson:"name"`
	Type     string `json:"type" bson:"type"`
	Quantity int    `json:"quantity" bson:"quantity"`
	Image    string `json:"image" bson:"image"`
	OwnerID  string `json:"owner" bson:"owner"`
}

type TradeStatus string

const (
	TradePending  TradeStatus = "pending"
	TradeAccepted TradeStatus = "accepted"
	TradeDeclined TradeStatus = "declined"
)

type Trade struct {
	ID          string      `json:"id" bson:"_id"`
	ItemID      string      `json:"item" bson:"item"`
	OwnerID     string      `json:"owner" bson:"owner"`
	RequesterID string      `json:"requester" bson:"requester"`
	Status      TradeStatus `json:"status" bson:"status"`
	CreatedAt   time.Time   `json:"createdAt" bson:"createdAt"`
}

// Notification is one entry of a user's feed. TradeID is empty for
// accept/decline notices.
type Notification struct {
	ID        string    `bson:"_id"`
	Message   string    `bson:"message"`
	SenderID  string    `bson:"sender"`
	TradeID   string    `bson:"tradeId,omitempty"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"timestamp"`
}

type Sender struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// NotificationView is a Notification with its sender resolved for display.
type NotificationView struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Sender    Sender    `json:"sender"`
	TradeID   string    `json:"tradeId,omitempty"`
	Read      bool      `json:"read"`
	Timestamp time.Time `json:"timestamp"`
}

// Principal is the identity attached to a request after token verification.
type Principal struct {
	ID       string
	Username string
}
