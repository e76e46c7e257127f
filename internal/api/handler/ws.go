package handler

import (
	"log"
	"net/http"
	"sputnikchat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict origins once the web client has a fixed domain.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request and starts a chat session. The session
// authenticates itself with an auth_user frame.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WARNING: websocket upgrade failed: %v", err)
		return
	}

	ws := chathub.ServeWebSocket(h.Hub, conn)
	log.Printf("INFO: Client %s connected from %s", ws.Client.ID(), c.ClientIP())
}
