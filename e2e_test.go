package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tradehub/handlers"
	"tradehub/models"
	"tradehub/service"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type inMemRepository struct {
	mu          sync.Mutex
	users       map[string]models.User
	usersByName map[string]string
	items       []models.Item
	trades      map[string]models.Trade
}

func newInMemRepository() *inMemRepository {
	return &inMemRepository{
		users:       make(map[string]models.User),
		usersByName: make(map[string]string),
		trades:      make(map[string]models.Trade),
	}
}

func (r *inMemRepository) CreateUser(ctx context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.usersByName[user.Username]; ok {
		return models.ErrUsernameTaken
	}
	r.users[user.ID] = user
	r.usersByName[user.Username] = user.ID
	return nil
}

func (r *inMemRepository) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.usersByName[username]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return r.users[id], nil
}

func (r *inMemRepository) GetUsernames(ctx context.Context, ids []string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			names[id] = u.Username
		}
	}
	return names, nil
}

func (r *inMemRepository) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return append([]models.Notification(nil), u.Notifications...), nil
}

func (r *inMemRepository) CreateItem(ctx context.Context, item models.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	return nil
}

func (r *inMemRepository) GetItem(ctx context.Context, id string) (models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.ID == id {
			return it, nil
		}
	}
	return models.Item{}, models.ErrNotFound
}

func (r *inMemRepository) ListItemsPartitioned(ctx context.Context, userID string) ([]models.Item, []models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var mine, others []models.Item
	for _, it := range r.items {
		if it.OwnerID == userID {
			mine = append(mine, it)
		} else {
			others = append(others, it)
		}
	}
	return mine, others, nil
}

func (r *inMemRepository) DeleteItem(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, it := range r.items {
		if it.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *inMemRepository) GetTrade(ctx context.Context, id string) (models.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trades[id]
	if !ok {
		return models.Trade{}, models.ErrNotFound
	}
	return t, nil
}

func (r *inMemRepository) CreateTrade(ctx context.Context, trade models.Trade, recipientID string, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.notify(recipientID, n); err != nil {
		return err
	}
	r.trades[trade.ID] = trade
	return nil
}

func (r *inMemRepository) UpdateTradeStatus(
	ctx context.Context,
	tradeID string,
	status models.TradeStatus,
	recipientID string,
	n models.Notification,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trades[tradeID]
	if !ok {
		return models.ErrNotFound
	}
	if err := r.notify(recipientID, n); err != nil {
		return err
	}
	t.Status = status
	r.trades[tradeID] = t
	return nil
}

func (r *inMemRepository) notify(userID string, n models.Notification) error {
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("notify %s: user missing", userID)
	}
	u.Notifications = append(u.Notifications, n)
	r.users[userID] = u
	return nil
}

func setupTestServer(t *testing.T) *httptest.Server {
	log, _ := test.NewNullLogger()
	svc := service.NewService(newInMemRepository(), "secret", time.Hour, service.WithLogger(log))
	h := handlers.NewHandler(svc, log)
	ts := httptest.NewServer(handlers.NewRouter(h, handlers.RouterOptions{
		Limiter: handlers.NewRateLimiter(600, 100),
	}))
	t.Cleanup(ts.Close)
	return ts
}

type apiClient struct {
	t   *testing.T
	ts  *httptest.Server
	jwt string
}

func (c apiClient) do(method, path string, payload interface{}, out interface{}) int {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(c.t, err)
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.ts.URL+path, body)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.jwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.jwt)
	}
	resp, err := c.ts.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func signUp(t *testing.T, ts *httptest.Server, username, password string) apiClient {
	t.Helper()
	anon := apiClient{t: t, ts: ts}
	creds := map[string]string{"username": username, "password": password}
	require.Equal(t, http.StatusCreated, anon.do(http.MethodPost, "/register", creds, nil))

	var auth handlers.AuthResponse
	require.Equal(t, http.StatusOK, anon.do(http.MethodPost, "/login", creds, &auth))
	require.NotEmpty(t, auth.Token)
	return apiClient{t: t, ts: ts, jwt: auth.Token}
}

func TestE2E_TradeFlow(t *testing.T) {
	ts := setupTestServer(t)
	alice := signUp(t, ts, "alice", "pw1")
	bob := signUp(t, ts, "bob", "pw2")

	var beans models.Item
	require.Equal(t, http.StatusCreated, bob.do(http.MethodPost, "/items", map[string]interface{}{
		"name": "Canned Beans", "type": "food", "quantity": 3,
	}, &beans))
	require.NotEmpty(t, beans.ID)

	var listing service.ItemsResponse
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/items", nil, &listing))
	require.Empty(t, listing.MyItems)
	require.Len(t, listing.OthersItems, 1)
	require.Equal(t, "Canned Beans", listing.OthersItems[0].Name)

	var started handlers.TradeResponse
	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/trade", map[string]string{"itemId": beans.ID}, &started))
	require.Equal(t, models.TradePending, started.Trade.Status)
	require.Equal(t, beans.OwnerID, started.Trade.OwnerID)

	var bobFeed []models.NotificationView
	require.Equal(t, http.StatusOK, bob.do(http.MethodGet, "/notifications", nil, &bobFeed))
	require.Len(t, bobFeed, 1)
	require.Equal(t, started.Trade.ID, bobFeed[0].TradeID)
	require.Equal(t, "alice", bobFeed[0].Sender.Username)
	require.Contains(t, bobFeed[0].Message, "alice")

	var msg handlers.MessageResponse
	require.Equal(t, http.StatusForbidden, alice.do(http.MethodPost, "/trade/accept", map[string]string{"tradeId": started.Trade.ID}, &msg))

	var accepted handlers.TradeResponse
	require.Equal(t, http.StatusOK, bob.do(http.MethodPost, "/trade/accept", map[string]string{"tradeId": started.Trade.ID}, &accepted))
	require.Equal(t, "Trade accepted", accepted.Message)
	require.Equal(t, models.TradeAccepted, accepted.Trade.Status)

	var aliceFeed []models.NotificationView
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/notifications", nil, &aliceFeed))
	require.Len(t, aliceFeed, 1)
	require.Contains(t, aliceFeed[0].Message, "accepted")
	require.Empty(t, aliceFeed[0].TradeID)
	require.Equal(t, "bob", aliceFeed[0].Sender.Username)

	// resolved trades are not locked
	var declined handlers.TradeResponse
	require.Equal(t, http.StatusOK, bob.do(http.MethodPost, "/trade/decline", map[string]string{"tradeId": started.Trade.ID}, &declined))
	require.Equal(t, models.TradeDeclined, declined.Trade.Status)
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/notifications", nil, &aliceFeed))
	require.Len(t, aliceFeed, 2)
	require.Contains(t, aliceFeed[1].Message, "declined")
}

func TestE2E_ItemOwnership(t *testing.T) {
	ts := setupTestServer(t)
	alice := signUp(t, ts, "alice", "pw1")
	bob := signUp(t, ts, "bob", "pw2")

	var beans models.Item
	require.Equal(t, http.StatusCreated, bob.do(http.MethodPost, "/items", map[string]interface{}{"name": "Canned Beans"}, &beans))
	var rope models.Item
	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/items", map[string]interface{}{"name": "Rope"}, &rope))

	var msg handlers.MessageResponse
	require.Equal(t, http.StatusNotFound, alice.do(http.MethodDelete, "/items/"+beans.ID, nil, &msg))
	require.Equal(t, "Item not found or not authorized", msg.Message)

	require.Equal(t, http.StatusBadRequest, bob.do(http.MethodPost, "/trade", map[string]string{"itemId": beans.ID}, &msg))
	require.Equal(t, "You cannot trade your own item", msg.Message)

	for _, c := range []apiClient{alice, bob} {
		var listing service.ItemsResponse
		require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/items", nil, &listing))
		require.Len(t, listing.MyItems, 1)
		require.Len(t, listing.OthersItems, 1)
		require.NotEqual(t, listing.MyItems[0].ID, listing.OthersItems[0].ID)
	}

	require.Equal(t, http.StatusOK, bob.do(http.MethodDelete, "/items/"+beans.ID, nil, &msg))
	require.Equal(t, http.StatusNotFound, alice.do(http.MethodPost, "/trade", map[string]string{"itemId": beans.ID}, &msg))
}

func TestE2E_AuthGate(t *testing.T) {
	ts := setupTestServer(t)
	signUp(t, ts, "alice", "pw1")

	anon := apiClient{t: t, ts: ts}
	var msg handlers.MessageResponse
	require.Equal(t, http.StatusBadRequest, anon.do(http.MethodPost, "/register", map[string]string{"username": "alice", "password": "x"}, &msg))
	require.Equal(t, "Username already taken", msg.Message)

	require.Equal(t, http.StatusBadRequest, anon.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "nope"}, &msg))
	require.Equal(t, "Invalid username or password", msg.Message)

	require.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, "/items", nil, &msg))

	forged := apiClient{t: t, ts: ts, jwt: "not-a-token"}
	require.Equal(t, http.StatusForbidden, forged.do(http.MethodGet, "/notifications", nil, &msg))
}
