package service

import (
	"context"
	"time"

	"tradehub/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -destination=./mocks/mock_repository.go -package=mocks tradehub/service Repository

// Repository is the persistence contract shared by the PostgreSQL and
// MongoDB stores. Lookups return models.ErrNotFound when nothing matches.
type Repository interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUsernames(ctx context.Context, ids []string) (map[string]string, error)
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)

	CreateItem(ctx context.Context, item models.Item) error
	GetItem(ctx context.Context, id string) (models.Item, error)
	ListItemsPartitioned(ctx context.Context, userID string) ([]models.Item, []models.Item, error)
	DeleteItem(ctx context.Context, id string) error

	GetTrade(ctx context.Context, id string) (models.Trade, error)
	// CreateTrade stores the trade and appends n to the feed of recipientID.
	CreateTrade(ctx context.Context, trade models.Trade, recipientID string, n models.Notification) error
	// UpdateTradeStatus sets the status and appends n to the feed of recipientID.
	UpdateTradeStatus(ctx context.Context, tradeID string, status models.TradeStatus, recipientID string, n models.Notification) error
}

// TradeRecorder observes trade workflow transitions.
type TradeRecorder interface {
	RecordTrade(status models.TradeStatus)
}

type nopRecorder struct{}

func (nopRecorder) RecordTrade(models.TradeStatus) {}

type Service struct {
	repo      Repository
	jwtSecret string
	tokenTTL  time.Duration
	log       logrus.FieldLogger
	recorder  TradeRecorder
	now       func() time.Time
	newID     func() string
}

type Option func(*Service)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

func WithRecorder(r TradeRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(repo Repository, jwtSecret string, tokenTTL time.Duration, opts ...Option) Service {
	s := Service{
		repo:      repo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		log:       logrus.StandardLogger(),
		recorder:  nopRecorder{},
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
