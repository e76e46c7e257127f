package handler

import (
	"sputnikchat/backend/internal/chathub"
	"sputnikchat/backend/internal/models"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserStore is the part of storage used by the REST endpoints.
type UserStore interface {
	FindUserByLoginPassword(login, password string) (*models.User, error)
	FindUserByID(userID uuid.UUID) (*models.User, error)
	GetAllUsers() ([]models.User, error)
}

// Handler serves the HTTP surface of the chat backend.
type Handler struct {
	Hub      *chathub.Hub
	Users    UserStore
	Secret   []byte
	TokenTTL time.Duration
}

func NewHandler(hub *chathub.Hub, users UserStore, secret string, tokenTTL time.Duration) *Handler {
	return &Handler{
		Hub:      hub,
		Users:    users,
		Secret:   []byte(secret),
		TokenTTL: tokenTTL,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Health)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api")
	api.POST("/token", h.IssueToken)
	api.GET("/users", h.RequireToken(), h.ListUsers)
	api.GET("/me", h.RequireToken(), h.Me)
}
