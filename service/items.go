package service

import (
	"context"

	"tradehub/models"
)

type ItemAttrs struct {
	Name     string
	Type     string
	Quantity int
	Image    string
}

type ItemsResponse struct {
	MyItems     []models.Item `json:"myItems"`
	OthersItems []models.Item `json:"othersItems"`
}

func (s Service) CreateItem(
	ctx context.Context,
	ownerID string,
	attrs ItemAttrs,
) (models.Item, error) {
	item := models.Item{
		ID:       s.newID(),
		Name:     attrs.Name,
		Type:     attrs.Type,
		Quantity: attrs.Quantity,
		Image:    attrs.Image,
		OwnerID:  ownerID,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return models.Item{}, err
	}
	return item, nil
}

// ListItems splits the whole catalog into the caller's items and everyone
// else's.
func (s Service) ListItems(
	ctx context.Context,
	userID string,
) (ItemsResponse, error) {
	mine, others, err := s.repo.ListItemsPartitioned(ctx, userID)
	if err != nil {
		return ItemsResponse{}, err
	}
	if mine == nil {
		mine = []models.Item{}
	}
	if others == nil {
		others = []models.Item{}
	}
	return ItemsResponse{MyItems: mine, OthersItems: others}, nil
}

// DeleteItem reports models.ErrNotFound to non-owners as well, so callers
// cannot probe for other users' items.
func (s Service) DeleteItem(
	ctx context.Context,
	userID, itemID string,
) error {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.OwnerID != userID {
		return models.ErrNotFound
	}
	return s.repo.DeleteItem(ctx, itemID)
}
