package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tradehub/models"
	"tradehub/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc service.Service
	log logrus.FieldLogger
}

func NewHandler(svc service.Service, log logrus.FieldLogger) Handler {
	return Handler{
		svc: svc,
		log: log,
	}
}

type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

type CreateItemRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Image    string `json:"image"`
}

type TradeRequest struct {
	ItemID string `json:"itemId"`
}

type TradeDecisionRequest struct {
	TradeID string `json:"tradeId"`
}

type TradeResponse struct {
	Message string       `json:"message"`
	Trade   models.Trade `json:"trade"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// errorMessages maps sentinel errors to the message sent to the client.
// Errors not listed are logged and answered with a generic 500.
type errorMessages map[error]string

func (h Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	if _, err := h.svc.Register(r.Context(), req.Username, req.Password); err != nil {
		h.fail(w, err, "Failed to register user", errorMessages{
			models.ErrUsernameTaken: "Username already taken",
		})
		return
	}
	respondWithJSON(w, http.StatusCreated, MessageResponse{Message: "User registered successfully"})
}

func (h Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, err, "Failed to log in", errorMessages{
			models.ErrInvalidCredentials: "Invalid username or password",
		})
		return
	}
	respondWithJSON(w, http.StatusOK, AuthResponse{Token: token})
}

func (h Handler) CreateItemHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User missing from request context")
		return
	}
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	item, err := h.svc.CreateItem(r.Context(), p.ID, service.ItemAttrs{
		Name:     req.Name,
		Type:     req.Type,
		Quantity: req.Quantity,
		Image:    req.Image,
	})
	if err != nil {
		h.fail(w, err, "Failed to add item", nil)
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}

func (h Handler) ListItemsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User missing from request context")
		return
	}
	items, err := h.svc.ListItems(r.Context(), p.ID)
	if err != nil {
		h.fail(w, err, "Failed to fetch items", nil)
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}

func (h Handler) DeleteItemHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User missing from request context")
		return
	}
	itemID := mux.Vars(r)["id"]
	if err := h.svc.DeleteItem(r.Context(), p.ID, itemID); err != nil {
		h.fail(w, err, "Failed to remove item", errorMessages{
			models.ErrNotFound: "Item not found or not authorized",
		})
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Item removed successfully"})
}

func (h Handler) InitiateTradeHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User missing from request context")
		return
	}
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	trade, err := h.svc.InitiateTrade(r.Context(), p, req.ItemID)
	if err != nil {
		h.fail(w, err, "Failed to initiate trade", errorMessages{
			models.ErrNotFound:         "Item not found",
			models.ErrInvalidOperation: "You cannot trade your own item",
		})
		return
	}
	respondWithJSON(w, http.StatusCreated, TradeResponse{Message: "Trade request sent", Trade: trade})
}

func (h Handler) AcceptTradeHandler(w http.ResponseWriter, r *http.Request) {
	h.decideTrade(w, r, true)
}

func (h Handler) DeclineTradeHandler(w http.ResponseWriter, r *http.Request) {
	h.decideTrade(w, r, false)
}

func (h Handler) decideTrade(w http.ResponseWriter, r *http.Request, accept bool) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User missing from request context")
		return
	}
	var req TradeDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	verb, decide := "decline", h.svc.DeclineTrade
	if accept {
		verb, decide = "accept", h.svc.AcceptTrade
	}
	trade, err := decide(r.Context(), p, req.TradeID)
	if err != nil {
		h.fail(w, err, "Failed to "+verb+" trade", errorMessages{
			models.ErrNotFound:  "Trade not found",
			models.ErrForbidden: "You are not authorized to " + verb + " this trade",
		})
		return
	}
	respondWithJSON(w, http.StatusOK, TradeResponse{Message: "Trade " + string(trade.Status), Trade: trade})
}

func (h Handler) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User missing from request context")
		return
	}
	notes, err := h.svc.ListNotifications(r.Context(), p.ID)
	if err != nil {
		h.fail(w, err, "Failed to fetch notifications", errorMessages{
			models.ErrNotFound: "User not found",
		})
		return
	}
	respondWithJSON(w, http.StatusOK, notes)
}

func (h Handler) fail(w http.ResponseWriter, err error, internal string, msgs errorMessages) {
	for target, msg := range msgs {
		if errors.Is(err, target) {
			respondWithError(w, statusFor(target), msg)
			return
		}
	}
	h.log.WithError(err).Error(internal)
	respondWithError(w, http.StatusInternalServerError, internal)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrInvalidOperation),
		errors.Is(err, models.ErrUsernameTaken),
		errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, MessageResponse{Message: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
