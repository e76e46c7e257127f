package chathub

import (
	"sputnikchat/backend/internal/protocol"

	"github.com/google/uuid"
)

// JoinPresence asks a room to mark a client connection as present.
type JoinPresence struct {
	Client Ref
	UserID uuid.UUID
}

// ListRoom asks a room for the snapshot seen by one present connection. The
// room replies to ReplyTo with a protocol.RoomDetail.
type ListRoom struct {
	Client  Ref
	UserID  uuid.UUID
	ReplyTo Ref
}

// SyncRoom asks a room for its events. The room always replies to ReplyTo
// with a SyncBatch, empty when nothing matched or persistence failed.
type SyncRoom struct {
	UserID  uuid.UUID
	Request protocol.SyncRooms
	ReplyTo Ref
}

// SyncBatch is the part of a sync answered by one room.
type SyncBatch struct {
	RoomID   uuid.UUID
	Messages []protocol.RoomEventMessageDetail
	Systems  []protocol.RoomEventSystemDetail
}

// RoomCommand carries a room scoped request from a client connection.
type RoomCommand struct {
	Client  Ref
	UserID  uuid.UUID
	Request protocol.Request
}

// Push is a response sent by a room to one client connection.
type Push struct {
	Response protocol.Response
}

// CreateRoomCommand asks the room directory to create a room.
type CreateRoomCommand struct {
	Client    Ref
	ClientID  uuid.UUID
	CreatorID uuid.UUID
	Request   protocol.CreateRoom
}

// CreateRoomFailed is sent to the requesting connection only.
type CreateRoomFailed struct {
	RequestID int32
	Kind      protocol.ErrorKind
}

// CreateRoomResult is delivered to every resolved member of a new room.
// OriginID names the connection that asked for the room, the only one that
// gets RequestID back.
type CreateRoomResult struct {
	OriginID  uuid.UUID           `json:"origin_id"`
	RequestID int32               `json:"request_id"`
	CreatorID uuid.UUID           `json:"creator_id"`
	Detail    protocol.RoomDetail `json:"detail"`
}

// UserDelivery is addressed to every connection of the listed users. It is
// also the payload published on the cluster delivery channel.
type UserDelivery struct {
	UserIDs    []uuid.UUID          `json:"user_ids"`
	RoomState  *protocol.RoomDetail `json:"room_state,omitempty"`
	CreateRoom *CreateRoomResult    `json:"create_room,omitempty"`
}

// Addresses reports whether userID is one of the recipients.
func (d UserDelivery) Addresses(userID uuid.UUID) bool {
	for _, id := range d.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// UserDeliverer fans a delivery out to users wherever they are connected.
type UserDeliverer interface {
	DeliverToUsers(d UserDelivery)
}

// Transport is the outbound side of one client connection.
type Transport interface {
	// Send delivers one response. A nil resp with protocol.ErrNone sends
	// nothing.
	Send(responseID int32, resp protocol.Response, kind protocol.ErrorKind)
	Close()
}
