package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/example/cardsched/internal/database"
	"github.com/example/cardsched/internal/review"
	sr "github.com/example/cardsched/internal/spaced_repetition"
	"github.com/example/cardsched/pkg/models"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	svc *review.Service
}

type createUserRequest struct {
	Username            string `json:"username"`
	TelegramID          int64  `json:"telegram_id"`
	NotificationEnabled bool   `json:"notification_enabled"`
	NotificationHour    int    `json:"notification_hour"`
	CardsPerDay         int    `json:"cards_per_day"`
}

type createDeckRequest struct {
	OwnerID int64  `json:"owner_id"`
	Name    string `json:"name"`
}

type reviewRequest struct {
	Rating sr.Rating `json:"rating"` // name ("Good") or ordinal (3)
}

type previewResponse struct {
	Retrievability float64                 `json:"retrievability"`
	Outcomes       map[sr.Rating]sr.Result `json:"outcomes"`
}

// writeError maps service errors to HTTP status codes
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, database.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sr.ErrInvalidRating), errors.Is(err, review.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, database.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *handlers) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	user := &models.User{
		Username:            req.Username,
		TelegramID:          req.TelegramID,
		NotificationEnabled: req.NotificationEnabled,
		NotificationHour:    req.NotificationHour,
		CardsPerDay:         req.CardsPerDay,
	}
	if err := h.svc.CreateUser(c.Request.Context(), user); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *handlers) getUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	user, err := h.svc.GetUser(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) createDeck(c *gin.Context) {
	var req createDeckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	deck, err := h.svc.CreateDeck(c.Request.Context(), req.OwnerID, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, deck)
}

func (h *handlers) listDecks(c *gin.Context) {
	ownerID, err := strconv.ParseInt(c.Query("owner_id"), 10, 64)
	if err != nil {
		badRequest(c, "owner_id query parameter is required")
		return
	}
	decks, err := h.svc.ListDecks(c.Request.Context(), ownerID)
	if err != nil {
		writeError(c, err)
		return
	}
	if decks == nil {
		decks = []models.Deck{}
	}
	c.JSON(http.StatusOK, decks)
}

func (h *handlers) createCard(c *gin.Context) {
	var req review.NewCard
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	card, err := h.svc.CreateCard(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (h *handlers) getCard(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	card, err := h.svc.GetCard(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *handlers) deleteCard(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteCard(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) reviewCard(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	out, err := h.svc.Review(c.Request.Context(), id, req.Rating)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) previewCard(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	outcomes, err := h.svc.Preview(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	r, err := h.svc.Retrievability(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, previewResponse{Retrievability: r, Outcomes: outcomes})
}

func (h *handlers) cardLogs(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	logs, err := h.svc.History(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if logs == nil {
		logs = []models.ReviewLog{}
	}
	c.JSON(http.StatusOK, logs)
}

func (h *handlers) rescheduleCard(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	card, err := h.svc.Reschedule(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *handlers) dueCards(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "invalid limit")
			return
		}
		limit = n
	}
	if _, err := h.svc.GetUser(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	cards, err := h.svc.Due(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(cards), "cards": cards})
}

func (h *handlers) statistics(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	stats, err := h.svc.Statistics(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
