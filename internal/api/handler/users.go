package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ListUsers returns every registered user.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Users.GetAllUsers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Me returns the user the bearer token was issued to.
func (h *Handler) Me(c *gin.Context) {
	userID, err := uuid.Parse(c.GetString(userIDContext))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token subject"})
		return
	}

	user, err := h.Users.FindUserByID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}
	if user == nil {
		// Token outlived its user.
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// Health reports liveness together with the hub counters.
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.Hub != nil {
		resp["rooms"] = h.Hub.Rooms.RoomCount()
		resp["connections"] = h.Hub.Clients.Connections(uuid.Nil)
	}
	c.JSON(http.StatusOK, resp)
}
