package chathub

import (
	"log"
	"sputnikchat/backend/internal/config"
	"sputnikchat/backend/internal/protocol"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const sendBufferSize = 256

// WebSocketConn is the Transport of a gorilla websocket connection.
type WebSocketConn struct {
	Conn   *websocket.Conn
	Client *ClientUnit

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// ServeWebSocket binds conn to a new client session and starts its pumps.
func ServeWebSocket(hub *Hub, conn *websocket.Conn) *WebSocketConn {
	c := &WebSocketConn{
		Conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
	c.Client = hub.Connect(c)
	go c.writePump()
	go c.readPump()
	return c
}

func (c *WebSocketConn) Send(responseID int32, resp protocol.Response, kind protocol.ErrorKind) {
	frame, err := protocol.EncodeResponse(responseID, resp, kind)
	if err != nil {
		log.Printf("Error encoding response for client %s: %v", c.Client.ID(), err)
		return
	}
	if frame == nil {
		return
	}

	select {
	case <-c.closed:
	case c.send <- frame:
	default:
		log.Printf("WARNING: Client %s is too slow, closing connection", c.Client.ID())
		c.Close()
	}
}

// Close stops the write pump, which closes the socket.
func (c *WebSocketConn) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *WebSocketConn) readPump() {
	defer func() {
		c.Client.Stop()
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		req, err := protocol.DecodeRequest(message)
		if err != nil {
			log.Printf("Error decoding frame from client %s: %v", c.Client.ID(), err)
			continue
		}
		c.Client.HandleRequest(req)
	}
}

func (c *WebSocketConn) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-c.closed:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
