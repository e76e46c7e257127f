// Package protocol defines the request and response messages exchanged between
// chat clients and the server core, together with their JSON wire encoding.
package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Request is a decoded client request. The set of implementations is closed:
// only the types in this file satisfy it.
type Request interface {
	// RequestID returns the client supplied correlation token.
	RequestID() int32
	isRequest()
}

// AuthUser authenticates the connection with a login and password.
type AuthUser struct {
	ID       int32  `json:"-"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

// ListRooms asks for a snapshot of the given rooms, or of every member room
// when RoomIDs is empty.
type ListRooms struct {
	ID      int32       `json:"-"`
	RoomIDs []uuid.UUID `json:"room_ids"`
}

// UnmarshalJSON skips room ids that are not UUIDs instead of failing the
// whole request.
func (r *ListRooms) UnmarshalJSON(data []byte) error {
	var raw struct {
		RoomIDs []string `json:"room_ids"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.RoomIDs = ParseIDs(raw.RoomIDs)
	return nil
}

// ListUsers asks for every registered user.
type ListUsers struct {
	ID int32 `json:"-"`
}

// RoomEventMessage posts a chat message into a room.
type RoomEventMessage struct {
	ID            int32       `json:"-"`
	RoomID        uuid.UUID   `json:"room_id"`
	ClientEventID int32       `json:"client_event_id"`
	AttachmentIDs []uuid.UUID `json:"attachment"`
	Content       string      `json:"content"`
	Version       int32       `json:"version"`
}

// RoomEventReaction attaches a reaction to an existing message event.
type RoomEventReaction struct {
	ID            int32     `json:"-"`
	RoomID        uuid.UUID `json:"room_id"`
	MessageID     uuid.UUID `json:"message_id"`
	ClientEventID int32     `json:"client_event_id"`
	Content       string    `json:"content"`
}

// SinceTimeOrder selects on which side of the since-time events are fetched.
type SinceTimeOrder int

const (
	// OrderNewest returns events created after the since-time.
	OrderNewest SinceTimeOrder = iota
	// OrderOldest returns events created before the since-time.
	OrderOldest
)

// RoomEventType is the event-type mask of a sync filter.
type RoomEventType int

const (
	EventTypeAll RoomEventType = iota
	EventTypeMessage
	EventTypeSystem
)

// HasMessages reports whether message events pass the mask.
func (t RoomEventType) HasMessages() bool {
	return t == EventTypeAll || t == EventTypeMessage
}

// HasSystem reports whether system events pass the mask.
func (t RoomEventType) HasSystem() bool {
	return t == EventTypeAll || t == EventTypeSystem
}

// SinceTimeFilter bounds a sync by time. SinceTime is a millisecond epoch.
type SinceTimeFilter struct {
	SinceTime int64          `json:"since_timestamp"`
	Order     SinceTimeOrder `json:"order_type"`
}

// SyncRoomFilter is the per-room part of a SyncRooms request.
type SyncRoomFilter struct {
	RoomID      uuid.UUID        `json:"room_id"`
	SinceFilter *SinceTimeFilter `json:"since_filter,omitempty"`
	EventFilter RoomEventType    `json:"event_filter"`
	EventLimit  int32            `json:"event_limit"`
}

// UnmarshalJSON decodes a filter whose room id is not a UUID with uuid.Nil,
// so it matches no room.
func (f *SyncRoomFilter) UnmarshalJSON(data []byte) error {
	type plain SyncRoomFilter
	aux := struct {
		*plain
		RoomID string `json:"room_id"`
	}{plain: (*plain)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	id, err := uuid.Parse(aux.RoomID)
	if err != nil {
		id = uuid.Nil
	}
	f.RoomID = id
	return nil
}

// SyncRooms fetches message and system events of several rooms.
type SyncRooms struct {
	ID         int32            `json:"-"`
	RoomFilter []SyncRoomFilter `json:"room_filter"`
}

// FilterFor returns the filter addressed to roomID, if any.
func (r SyncRooms) FilterFor(roomID uuid.UUID) (SyncRoomFilter, bool) {
	for _, f := range r.RoomFilter {
		if f.RoomID == roomID && roomID != uuid.Nil {
			return f, true
		}
	}
	return SyncRoomFilter{}, false
}

// SetRoomReadMarker moves the caller's read marker. ReadMarker is a
// millisecond epoch.
type SetRoomReadMarker struct {
	ID         int32     `json:"-"`
	RoomID     uuid.UUID `json:"room_id"`
	ReadMarker int64     `json:"read_marker_timestamp"`
}

// CreateRoom creates a room with the given members. MemberIDs are kept as
// raw strings; unparsable ids are ignored when the room is created.
type CreateRoom struct {
	ID        int32    `json:"-"`
	Title     string   `json:"title"`
	Avatar    *string  `json:"avatar,omitempty"`
	MemberIDs []string `json:"member_ids"`
}

// InviteRoomMember invites users into a room.
type InviteRoomMember struct {
	ID        int32     `json:"-"`
	RoomID    uuid.UUID `json:"room_id"`
	MemberIDs []string  `json:"member_ids"`
}

// RemoveRoomMember removes users from a room.
type RemoveRoomMember struct {
	ID        int32     `json:"-"`
	RoomID    uuid.UUID `json:"room_id"`
	MemberIDs []string  `json:"member_ids"`
}

func (r AuthUser) RequestID() int32          { return r.ID }
func (r ListRooms) RequestID() int32         { return r.ID }
func (r ListUsers) RequestID() int32         { return r.ID }
func (r RoomEventMessage) RequestID() int32  { return r.ID }
func (r RoomEventReaction) RequestID() int32 { return r.ID }
func (r SyncRooms) RequestID() int32         { return r.ID }
func (r SetRoomReadMarker) RequestID() int32 { return r.ID }
func (r CreateRoom) RequestID() int32        { return r.ID }
func (r InviteRoomMember) RequestID() int32  { return r.ID }
func (r RemoveRoomMember) RequestID() int32  { return r.ID }

func (AuthUser) isRequest()          {}
func (ListRooms) isRequest()         {}
func (ListUsers) isRequest()         {}
func (RoomEventMessage) isRequest()  {}
func (RoomEventReaction) isRequest() {}
func (SyncRooms) isRequest()         {}
func (SetRoomReadMarker) isRequest() {}
func (CreateRoom) isRequest()        {}
func (InviteRoomMember) isRequest()  {}
func (RemoveRoomMember) isRequest()  {}

// ParseIDs parses raw ids, dropping duplicates and values that are not UUIDs.
// The order of first occurrence is kept.
func ParseIDs(raw []string) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(raw))
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
