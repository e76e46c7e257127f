package chathub

import (
	"encoding/json"
	"log"
	"sputnikchat/backend/internal/storage"
	"time"

	"github.com/google/uuid"
)

type clientStarted struct {
	client *ClientUnit
}

type clientAuthenticated struct {
	client *ClientUnit
	userID uuid.UUID
}

type clientStopped struct {
	client *ClientUnit
	userID uuid.UUID
}

type connectionsQuery struct {
	userID uuid.UUID
	reply  chan int
}

// ClientDirectory owns every live ClientUnit and indexes the authenticated
// ones by user id.
type ClientDirectory struct {
	*process

	storage          storage.Storage
	rooms            *RoomDirectory
	bus              DeliveryBus
	collectorTimeout time.Duration

	clients map[*ClientUnit]struct{}
	byUser  map[uuid.UUID]map[*ClientUnit]struct{}
}

// NewClientDirectory creates the directory. With a non nil bus, deliveries
// are published to the cluster instead of being handed out locally.
func NewClientDirectory(s storage.Storage, bus DeliveryBus, collectorTimeout time.Duration) *ClientDirectory {
	return &ClientDirectory{
		process:          newProcess("client directory"),
		storage:          s,
		bus:              bus,
		collectorTimeout: collectorTimeout,
		clients:          make(map[*ClientUnit]struct{}),
		byUser:           make(map[uuid.UUID]map[*ClientUnit]struct{}),
	}
}

// Start begins processing. rooms is handed to every client spawned later.
func (d *ClientDirectory) Start(rooms *RoomDirectory) {
	d.rooms = rooms
	go d.run(nil, d.receive, d.stopClients)
}

// Spawn starts the session unit of a new connection.
func (d *ClientDirectory) Spawn(conn Transport) *ClientUnit {
	c := &ClientUnit{
		id:               uuid.New(),
		conn:             conn,
		storage:          d.storage,
		rooms:            d.rooms,
		clients:          d,
		collectorTimeout: d.collectorTimeout,
	}
	c.process = newProcess("client " + c.id.String())
	d.Tell(clientStarted{client: c})
	go c.run(nil, c.receive, c.postStop)
	return c
}

// DeliverToUsers hands delivery to every connection of the listed users.
func (d *ClientDirectory) DeliverToUsers(delivery UserDelivery) {
	if d.bus == nil {
		d.Tell(delivery)
		return
	}

	payload, err := json.Marshal(delivery)
	if err == nil {
		err = d.bus.PublishUserDelivery(payload)
	}
	if err != nil {
		log.Printf("ERROR: Failed to publish user delivery, delivering locally: %v", err)
		d.Tell(delivery)
	}
}

// Connections returns the number of live connections of userID, or of all
// users when userID is uuid.Nil.
func (d *ClientDirectory) Connections(userID uuid.UUID) int {
	reply := make(chan int, 1)
	d.Tell(connectionsQuery{userID: userID, reply: reply})
	select {
	case n := <-reply:
		return n
	case <-d.Done():
		return 0
	}
}

func (d *ClientDirectory) receive(msg any) bool {
	switch m := msg.(type) {
	case clientStarted:
		d.clients[m.client] = struct{}{}
	case clientAuthenticated:
		set, ok := d.byUser[m.userID]
		if !ok {
			set = make(map[*ClientUnit]struct{})
			d.byUser[m.userID] = set
		}
		set[m.client] = struct{}{}
	case clientStopped:
		delete(d.clients, m.client)
		if set, ok := d.byUser[m.userID]; ok {
			delete(set, m.client)
			if len(set) == 0 {
				delete(d.byUser, m.userID)
			}
		}
	case UserDelivery:
		d.deliver(m)
	case connectionsQuery:
		if m.userID == uuid.Nil {
			m.reply <- len(d.clients)
		} else {
			m.reply <- len(d.byUser[m.userID])
		}
	default:
		log.Printf("WARNING: Client directory got unhandled message %T", msg)
	}
	return true
}

func (d *ClientDirectory) deliver(delivery UserDelivery) {
	seen := make(map[*ClientUnit]struct{})
	for _, userID := range delivery.UserIDs {
		for c := range d.byUser[userID] {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			c.Tell(delivery)
		}
	}
}

func (d *ClientDirectory) stopClients() {
	for c := range d.clients {
		c.Stop()
	}
	for c := range d.clients {
		<-c.Done()
	}
	log.Printf("INFO: Client directory stopped %d clients", len(d.clients))
}
