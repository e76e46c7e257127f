package chathub

import (
	"log"
	"sputnikchat/backend/internal/protocol"
	"sputnikchat/backend/internal/storage"
	"time"

	"github.com/google/uuid"
)

type listRoomsDone struct {
	requestID int32
	rooms     []protocol.RoomDetail
}

type syncRoomsDone struct {
	requestID int32
	batches   []SyncBatch
}

// ClientUnit is the session of one client connection. Until AuthUser
// succeeds every other request is answered with protocol.ErrNeedsAuth.
type ClientUnit struct {
	*process

	id   uuid.UUID
	conn Transport

	storage          storage.Storage
	rooms            *RoomDirectory
	clients          *ClientDirectory
	collectorTimeout time.Duration

	userID        uuid.UUID
	memberRoomIDs map[uuid.UUID]struct{}
}

func (c *ClientUnit) ID() uuid.UUID {
	return c.id
}

// HandleRequest queues a decoded request coming from the connection.
func (c *ClientUnit) HandleRequest(req protocol.Request) {
	c.Tell(req)
}

func (c *ClientUnit) authenticated() bool {
	return c.userID != uuid.Nil
}

func (c *ClientUnit) receive(msg any) bool {
	switch m := msg.(type) {
	case protocol.Request:
		c.handleRequest(m)
	case Push:
		c.handleRoomBroadcast(m.Response)
	case UserDelivery:
		c.handleDelivery(m)
	case CreateRoomFailed:
		c.conn.Send(m.RequestID, nil, m.Kind)
	case listRoomsDone:
		c.conn.Send(m.requestID, protocol.ListRoomsResponse{ID: m.requestID, Detail: m.rooms}, protocol.ErrNone)
	case syncRoomsDone:
		c.replySync(m)
	default:
		log.Printf("WARNING: Client %s got unhandled message %T", c.id, msg)
	}
	return true
}

func (c *ClientUnit) postStop() {
	c.clients.Tell(clientStopped{client: c, userID: c.userID})
	c.conn.Close()
}

func (c *ClientUnit) handleRequest(req protocol.Request) {
	if !c.authenticated() {
		if auth, ok := req.(protocol.AuthUser); ok {
			c.authenticate(auth)
			return
		}
		c.conn.Send(req.RequestID(), nil, protocol.ErrNeedsAuth)
		return
	}

	switch r := req.(type) {
	case protocol.AuthUser:
		log.Printf("WARNING: Client %s is already authenticated as %s", c.id, c.userID)
	case protocol.ListRooms:
		c.listRooms(r)
	case protocol.ListUsers:
		c.listUsers(r)
	case protocol.RoomEventMessage:
		c.forwardToRoom(r.RoomID, r)
	case protocol.RoomEventReaction:
		c.forwardToRoom(r.RoomID, r)
	case protocol.SetRoomReadMarker:
		c.forwardToRoom(r.RoomID, r)
	case protocol.InviteRoomMember:
		c.forwardToRoom(r.RoomID, r)
	case protocol.RemoveRoomMember:
		c.forwardToRoom(r.RoomID, r)
	case protocol.SyncRooms:
		c.syncRooms(r)
	case protocol.CreateRoom:
		c.rooms.Tell(CreateRoomCommand{Client: c, ClientID: c.id, CreatorID: c.userID, Request: r})
	default:
		log.Printf("WARNING: Client %s got unhandled request %T", c.id, req)
	}
}

func (c *ClientUnit) authenticate(req protocol.AuthUser) {
	user, err := c.storage.FindUserByLoginPassword(req.Login, req.Password)
	if err != nil || user == nil {
		c.conn.Send(req.ID, nil, protocol.ErrUserNotFound)
		return
	}
	rooms, err := c.storage.FindUserRooms(user.ID)
	if err != nil {
		c.conn.Send(req.ID, nil, protocol.ErrInternal)
		return
	}

	c.userID = user.ID
	c.memberRoomIDs = make(map[uuid.UUID]struct{}, len(rooms))
	for _, room := range rooms {
		c.memberRoomIDs[room.ID] = struct{}{}
	}
	c.clients.Tell(clientAuthenticated{client: c, userID: c.userID})
	// Rooms created after the directory started (admin CLI, other nodes)
	// are started here on first use.
	for _, room := range rooms {
		c.joinRoom(room.ID, room.Title, room.Avatar)
	}
	log.Printf("INFO: Client %s authenticated as %s with %d rooms", c.id, c.userID, len(rooms))

	c.conn.Send(req.ID, protocol.AuthUserResponse{ID: req.ID, Detail: userDetail(*user)}, protocol.ErrNone)
}

// targetRooms returns the member rooms named in filter, or every member room
// when filter is empty.
func (c *ClientUnit) targetRooms(filter []uuid.UUID) []uuid.UUID {
	var target []uuid.UUID
	if len(filter) == 0 {
		for roomID := range c.memberRoomIDs {
			target = append(target, roomID)
		}
		return target
	}

	seen := make(map[uuid.UUID]struct{}, len(filter))
	for _, roomID := range filter {
		if _, ok := seen[roomID]; ok {
			continue
		}
		seen[roomID] = struct{}{}
		if _, ok := c.memberRoomIDs[roomID]; ok {
			target = append(target, roomID)
		}
	}
	return target
}

func (c *ClientUnit) listRooms(req protocol.ListRooms) {
	target := c.targetRooms(req.RoomIDs)
	if len(target) == 0 {
		c.conn.Send(req.ID, protocol.ListRoomsResponse{ID: req.ID, Detail: []protocol.RoomDetail{}}, protocol.ErrNone)
		return
	}

	collector := NewCollector(len(target), c.collectorTimeout, func(rooms []protocol.RoomDetail) {
		c.Tell(listRoomsDone{requestID: req.ID, rooms: rooms})
	})
	for _, roomID := range target {
		c.rooms.RouteToRoom(roomID, ListRoom{Client: c, UserID: c.userID, ReplyTo: collector})
	}
}

func (c *ClientUnit) listUsers(req protocol.ListUsers) {
	users, err := c.storage.GetAllUsers()
	if err != nil {
		c.conn.Send(req.ID, nil, protocol.ErrInternal)
		return
	}
	details := make([]protocol.UserDetail, 0, len(users))
	for _, u := range users {
		details = append(details, userDetail(u))
	}
	c.conn.Send(req.ID, protocol.ListUsersResponse{ID: req.ID, Users: details}, protocol.ErrNone)
}

func (c *ClientUnit) forwardToRoom(roomID uuid.UUID, req protocol.Request) {
	if _, ok := c.memberRoomIDs[roomID]; !ok {
		log.Printf("WARNING: Client %s dropped %T for room %s it is not a member of", c.id, req, roomID)
		return
	}
	c.rooms.RouteToRoom(roomID, RoomCommand{Client: c, UserID: c.userID, Request: req})
}

func (c *ClientUnit) syncRooms(req protocol.SyncRooms) {
	filter := make([]uuid.UUID, 0, len(req.RoomFilter))
	for _, f := range req.RoomFilter {
		filter = append(filter, f.RoomID)
	}
	target := c.targetRooms(filter)
	if len(target) == 0 {
		c.replySync(syncRoomsDone{requestID: req.ID})
		return
	}

	collector := NewCollector(len(target), c.collectorTimeout, func(batches []SyncBatch) {
		c.Tell(syncRoomsDone{requestID: req.ID, batches: batches})
	})
	for _, roomID := range target {
		c.rooms.RouteToRoom(roomID, SyncRoom{UserID: c.userID, Request: req, ReplyTo: collector})
	}
}

func (c *ClientUnit) replySync(m syncRoomsDone) {
	resp := protocol.SyncRoomsResponse{
		ID:            m.requestID,
		MessageEvents: []protocol.RoomEventMessageDetail{},
		SystemEvents:  []protocol.RoomEventSystemDetail{},
	}
	for _, b := range m.batches {
		resp.MessageEvents = append(resp.MessageEvents, b.Messages...)
		resp.SystemEvents = append(resp.SystemEvents, b.Systems...)
	}
	c.conn.Send(m.requestID, resp, protocol.ErrNone)
}

func (c *ClientUnit) handleDelivery(d UserDelivery) {
	if !c.authenticated() || !d.Addresses(c.userID) {
		return
	}
	if d.CreateRoom != nil {
		c.handleCreateRoomResult(*d.CreateRoom)
	}
	if d.RoomState != nil {
		c.handleRoomBroadcast(protocol.RoomStateChanged{ID: protocol.BroadcastID, Detail: *d.RoomState})
	}
}

func (c *ClientUnit) handleCreateRoomResult(res CreateRoomResult) {
	if res.Detail.HasMember(c.userID) {
		c.trackRoom(res.Detail)
	}

	responseID := protocol.BroadcastID
	if res.OriginID == c.id {
		responseID = res.RequestID
	}
	c.conn.Send(responseID, protocol.CreateRoomResponse{ID: responseID, Detail: res.Detail}, protocol.ErrNone)
}

// handleRoomBroadcast forwards a room push to the connection, first keeping
// the member room set in line with room snapshots.
func (c *ClientUnit) handleRoomBroadcast(resp protocol.Response) {
	if state, ok := resp.(protocol.RoomStateChanged); ok && c.authenticated() {
		_, tracked := c.memberRoomIDs[state.Detail.RoomID]
		member := isActiveMember(state.Detail, c.userID)
		switch {
		case member && !tracked:
			c.trackRoom(state.Detail)
		case !member && tracked:
			delete(c.memberRoomIDs, state.Detail.RoomID)
		}
	}
	c.conn.Send(resp.ResponseID(), resp, protocol.ErrNone)
}

func (c *ClientUnit) trackRoom(detail protocol.RoomDetail) {
	if _, ok := c.memberRoomIDs[detail.RoomID]; ok {
		return
	}
	c.memberRoomIDs[detail.RoomID] = struct{}{}
	c.joinRoom(detail.RoomID, detail.Title, detail.Avatar)
}

func (c *ClientUnit) joinRoom(roomID uuid.UUID, title string, avatar *string) {
	c.rooms.Tell(EnsureRoom{RoomID: roomID, Title: title, Avatar: avatar})
	c.rooms.RouteToRoom(roomID, JoinPresence{Client: c, UserID: c.userID})
}
