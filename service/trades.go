package service

import (
	"context"
	"fmt"

	"tradehub/models"

	"github.com/sirupsen/logrus"
)

func (s Service) InitiateTrade(
	ctx context.Context,
	requester models.Principal,
	itemID string,
) (models.Trade, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return models.Trade{}, err
	}
	if item.OwnerID == requester.ID {
		return models.Trade{}, models.ErrInvalidOperation
	}

	now := s.now()
	trade := models.Trade{
		ID:          s.newID(),
		ItemID:      item.ID,
		OwnerID:     item.OwnerID,
		RequesterID: requester.ID,
		Status:      models.TradePending,
		CreatedAt:   now,
	}
	n := models.Notification{
		ID: s.newID(),
		Message: fmt.Sprintf(
			"You have received a trade request from %s for %s",
			requester.Username, item.Name,
		),
		SenderID:  requester.ID,
		TradeID:   trade.ID,
		CreatedAt: now,
	}
	if err := s.repo.CreateTrade(ctx, trade, item.OwnerID, n); err != nil {
		return models.Trade{}, err
	}

	s.recorder.RecordTrade(trade.Status)
	s.log.WithFields(logrus.Fields{
		"trade_id":  trade.ID,
		"item_id":   item.ID,
		"requester": requester.ID,
	}).Info("trade requested")
	return trade, nil
}

func (s Service) AcceptTrade(
	ctx context.Context,
	actor models.Principal,
	tradeID string,
) (models.Trade, error) {
	return s.resolveTrade(ctx, actor, tradeID, models.TradeAccepted)
}

func (s Service) DeclineTrade(
	ctx context.Context,
	actor models.Principal,
	tradeID string,
) (models.Trade, error) {
	return s.resolveTrade(ctx, actor, tradeID, models.TradeDeclined)
}

// resolveTrade does not look at the current status: a trade that is already
// accepted or declined can be moved again, and each move notifies the
// requester.
func (s Service) resolveTrade(
	ctx context.Context,
	actor models.Principal,
	tradeID string,
	status models.TradeStatus,
) (models.Trade, error) {
	trade, err := s.repo.GetTrade(ctx, tradeID)
	if err != nil {
		return models.Trade{}, err
	}
	if trade.OwnerID != actor.ID {
		return models.Trade{}, models.ErrForbidden
	}

	n := models.Notification{
		ID:        s.newID(),
		Message:   fmt.Sprintf("Your trade request for %s was %s", trade.ItemID, status),
		SenderID:  actor.ID,
		CreatedAt: s.now(),
	}
	if err := s.repo.UpdateTradeStatus(ctx, trade.ID, status, trade.RequesterID, n); err != nil {
		return models.Trade{}, err
	}
	previous := trade.Status
	trade.Status = status

	s.recorder.RecordTrade(status)
	s.log.WithFields(logrus.Fields{
		"trade_id": trade.ID,
		"from":     previous,
		"to":       status,
	}).Info("trade resolved")
	return trade, nil
}
