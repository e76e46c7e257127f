package chathub

import (
	"log"
	"sputnikchat/backend/internal/config"
	"sputnikchat/backend/internal/models"
	"sputnikchat/backend/internal/protocol"
	"sputnikchat/backend/internal/storage"

	"github.com/google/uuid"
)

type routeToRoom struct {
	roomID uuid.UUID
	msg    any
}

// EnsureRoom starts a unit for a room created elsewhere, when none runs yet.
type EnsureRoom struct {
	RoomID uuid.UUID
	Title  string
	Avatar *string
}

type roomCountQuery struct {
	reply chan int
}

// RoomDirectory owns the running rooms and routes messages to them by id.
type RoomDirectory struct {
	*process

	storage storage.Storage
	clients UserDeliverer
	rooms   map[uuid.UUID]*RoomUnit
}

func NewRoomDirectory(s storage.Storage, clients UserDeliverer) *RoomDirectory {
	return &RoomDirectory{
		process: newProcess("room directory"),
		storage: s,
		clients: clients,
		rooms:   make(map[uuid.UUID]*RoomUnit),
	}
}

// Start spawns a unit for every stored room and starts routing.
func (d *RoomDirectory) Start() error {
	rooms, err := d.storage.GetRooms()
	if err != nil {
		return err
	}
	for _, room := range rooms {
		d.startRoom(room.ID, room.Title, room.Avatar)
	}
	log.Printf("INFO: Room directory started %d rooms", len(rooms))

	go d.run(nil, d.receive, d.stopRooms)
	return nil
}

// RouteToRoom forwards msg to the room. Messages routed from one sender keep
// their order.
func (d *RoomDirectory) RouteToRoom(roomID uuid.UUID, msg any) {
	d.Tell(routeToRoom{roomID: roomID, msg: msg})
}

// RoomCount returns the number of running rooms, or 0 once the directory has
// stopped.
func (d *RoomDirectory) RoomCount() int {
	reply := make(chan int, 1)
	d.Tell(roomCountQuery{reply: reply})
	select {
	case n := <-reply:
		return n
	case <-d.Done():
		return 0
	}
}

func (d *RoomDirectory) receive(msg any) bool {
	switch m := msg.(type) {
	case routeToRoom:
		room, ok := d.rooms[m.roomID]
		if !ok {
			log.Printf("WARNING: Dropped %T for unknown room %s", m.msg, m.roomID)
			return true
		}
		room.Tell(m.msg)
	case CreateRoomCommand:
		d.createRoom(m)
	case EnsureRoom:
		if _, ok := d.rooms[m.RoomID]; !ok {
			d.startRoom(m.RoomID, m.Title, m.Avatar)
		}
	case roomCountQuery:
		m.reply <- len(d.rooms)
	default:
		log.Printf("WARNING: Room directory got unhandled message %T", msg)
	}
	return true
}

func (d *RoomDirectory) startRoom(id uuid.UUID, title string, avatar *string) {
	d.rooms[id] = NewRoomUnit(id, title, avatar, d.storage, d.clients)
}

func (d *RoomDirectory) createRoom(m CreateRoomCommand) {
	fail := func(kind protocol.ErrorKind) {
		m.Client.Tell(CreateRoomFailed{RequestID: m.Request.ID, Kind: kind})
	}

	users, err := d.storage.FindUsers(protocol.ParseIDs(m.Request.MemberIDs))
	if err != nil {
		fail(protocol.ErrInternal)
		return
	}
	if len(users) < config.MinRoomMembers {
		fail(protocol.ErrRoomRequiredMinMembers)
		return
	}

	memberIDs := make([]uuid.UUID, 0, len(users))
	members := make([]protocol.RoomMemberDetail, 0, len(users))
	for _, u := range users {
		memberIDs = append(memberIDs, u.ID)
		members = append(members, protocol.RoomMemberDetail{
			UserID:       u.ID,
			FullName:     u.FullName,
			MemberStatus: protocol.MemberInvited,
			Avatar:       u.Avatar,
		})
	}

	room := &models.Room{Title: m.Request.Title, Avatar: m.Request.Avatar}
	if err := d.storage.AddRoom(room, m.CreatorID, memberIDs); err != nil {
		fail(protocol.ErrInternal)
		return
	}
	d.startRoom(room.ID, room.Title, room.Avatar)
	log.Printf("INFO: Room %s created by %s with %d members", room.ID, m.CreatorID, len(memberIDs))

	d.clients.DeliverToUsers(UserDelivery{
		UserIDs: memberIDs,
		CreateRoom: &CreateRoomResult{
			OriginID:  m.ClientID,
			RequestID: m.Request.ID,
			CreatorID: m.CreatorID,
			Detail: protocol.RoomDetail{
				RoomID:  room.ID,
				Title:   room.Title,
				Avatar:  room.Avatar,
				Members: members,
			},
		},
	})
}

func (d *RoomDirectory) stopRooms() {
	for _, room := range d.rooms {
		room.Stop()
	}
	for _, room := range d.rooms {
		<-room.Done()
	}
	log.Printf("INFO: Room directory stopped %d rooms", len(d.rooms))
}
