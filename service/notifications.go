package service

import (
	"context"

	"tradehub/models"
)

// ListNotifications returns the feed in append order. Senders that no
// longer resolve keep their ID and get an empty username.
func (s Service) ListNotifications(
	ctx context.Context,
	userID string,
) ([]models.NotificationView, error) {
	notes, err := s.repo.ListNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]models.NotificationView, 0, len(notes))
	if len(notes) == 0 {
		return views, nil
	}

	seen := make(map[string]struct{}, len(notes))
	var senderIDs []string
	for _, n := range notes {
		if _, ok := seen[n.SenderID]; ok {
			continue
		}
		seen[n.SenderID] = struct{}{}
		senderIDs = append(senderIDs, n.SenderID)
	}
	names, err := s.repo.GetUsernames(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	for _, n := range notes {
		views = append(views, models.NotificationView{
			ID:      n.ID,
			Message: n.Message,
			Sender: models.Sender{
				ID:       n.SenderID,
				Username: names[n.SenderID],
			},
			TradeID:   n.TradeID,
			Read:      n.Read,
			Timestamp: n.CreatedAt,
		})
	}
	return views, nil
}
