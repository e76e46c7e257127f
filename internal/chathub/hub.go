package chathub

import (
	"context"
	"sputnikchat/backend/internal/config"
	"sputnikchat/backend/internal/storage"
	"time"
)

// Options tune a Hub. Zero values select the defaults.
type Options struct {
	CollectorTimeout time.Duration
	// Bus enables cluster wide user deliveries.
	Bus DeliveryBus
}

// Hub wires the room and client directories together.
type Hub struct {
	Storage storage.Storage
	Rooms   *RoomDirectory
	Clients *ClientDirectory
}

func NewHub(s storage.Storage, opts Options) *Hub {
	if opts.CollectorTimeout <= 0 {
		opts.CollectorTimeout = config.CollectorTimeout
	}
	clients := NewClientDirectory(s, opts.Bus, opts.CollectorTimeout)
	rooms := NewRoomDirectory(s, clients)
	return &Hub{Storage: s, Rooms: rooms, Clients: clients}
}

// Start loads the stored rooms and starts both directories.
func (h *Hub) Start(ctx context.Context) error {
	h.Clients.Start(h.Rooms)
	if err := h.Rooms.Start(); err != nil {
		h.Clients.Stop()
		return err
	}
	h.Clients.StartBusListener(ctx)
	return nil
}

// Connect starts the session of a new connection.
func (h *Hub) Connect(conn Transport) *ClientUnit {
	return h.Clients.Spawn(conn)
}

// Stop stops every client, then every room, and waits for them.
func (h *Hub) Stop() {
	h.Clients.Stop()
	<-h.Clients.Done()
	h.Rooms.Stop()
	<-h.Rooms.Done()
}
