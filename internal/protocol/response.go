package protocol

import (
	"github.com/google/uuid"
)

// BroadcastID is the response id of unsolicited pushes.
const BroadcastID int32 = -1

// ErrorKind is sent next to every response frame.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrNeedsAuth
	ErrUserNotFound
	ErrRoomRequiredMinMembers
	ErrInternal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNone:
		return "none"
	case ErrNeedsAuth:
		return "needs_auth"
	case ErrUserNotFound:
		return "user_not_found"
	case ErrRoomRequiredMinMembers:
		return "room_required_min_members"
	case ErrInternal:
		return "internal_error"
	default:
		return "unknown"
	}
}

// MemberStatus is the membership state of a room member.
type MemberStatus string

const (
	MemberInvited MemberStatus = "invited"
	MemberJoined  MemberStatus = "joined"
	MemberLeft    MemberStatus = "left"
	MemberKicked  MemberStatus = "kicked"
	MemberBanned  MemberStatus = "banned"
)

// Response is a message pushed to a client. The set of implementations is
// closed.
type Response interface {
	ResponseID() int32
	isResponse()
}

type UserDetail struct {
	UserID   uuid.UUID `json:"user_id"`
	FullName string    `json:"full_name"`
	Avatar   *string   `json:"avatar,omitempty"`
}

type RoomMemberDetail struct {
	UserID         uuid.UUID    `json:"user_id"`
	FullName       string       `json:"full_name"`
	IsOnline       bool         `json:"is_online"`
	MemberStatus   MemberStatus `json:"member_status"`
	Avatar         *string      `json:"avatar,omitempty"`
	LastReadMarker *int64       `json:"last_read_marker,omitempty"`
}

// RoomDetail is a room snapshot computed for one target member.
type RoomDetail struct {
	RoomID                  uuid.UUID          `json:"room_id"`
	Title                   string             `json:"title"`
	Avatar                  *string            `json:"avatar,omitempty"`
	Members                 []RoomMemberDetail `json:"members"`
	EventMessageUnreadCount int                `json:"event_message_unread_count"`
	EventSystemUnreadCount  int                `json:"event_system_unread_count"`
}

// HasMember reports whether userID is listed in the snapshot.
func (d RoomDetail) HasMember(userID uuid.UUID) bool {
	for _, m := range d.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberIDs returns the ids of every listed member.
func (d RoomDetail) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(d.Members))
	for _, m := range d.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

type ChatAttachmentDetail struct {
	EventID      string `json:"event_id"`
	AttachmentID string `json:"attachment_id"`
	MimeType     string `json:"mime_type"`
}

type RoomEventReactionDetail struct {
	EventID   string `json:"event_id"`
	RoomID    string `json:"room_id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type RoomEventMessageDetail struct {
	EventID  string `json:"event_id"`
	RoomID   string `json:"room_id"`
	SenderID string `json:"sender_id"`
	// ClientEventID is only set in copies addressed to the message author.
	ClientEventID   *int32                    `json:"client_event_id,omitempty"`
	Version         int32                     `json:"version"`
	Attachment      []ChatAttachmentDetail    `json:"attachment"`
	Reaction        []RoomEventReactionDetail `json:"reaction"`
	Content         string                    `json:"content"`
	CreateTimestamp int64                     `json:"create_timestamp"`
	UpdateTimestamp int64                     `json:"update_timestamp"`
}

type RoomEventSystemDetail struct {
	EventID         string `json:"event_id"`
	RoomID          string `json:"room_id"`
	Version         int32  `json:"version"`
	Content         string `json:"content"`
	CreateTimestamp int64  `json:"create_timestamp"`
}

type AuthUserResponse struct {
	ID     int32      `json:"-"`
	Detail UserDetail `json:"detail"`
}

type ListRoomsResponse struct {
	ID     int32        `json:"-"`
	Detail []RoomDetail `json:"detail"`
}

type ListUsersResponse struct {
	ID    int32        `json:"-"`
	Users []UserDetail `json:"users"`
}

type RoomEventMessageResponse struct {
	ID     int32                  `json:"-"`
	Detail RoomEventMessageDetail `json:"detail"`
}

type RoomEventReactionResponse struct {
	ID     int32                   `json:"-"`
	Detail RoomEventReactionDetail `json:"detail"`
}

type SyncRoomsResponse struct {
	ID            int32                    `json:"-"`
	MessageEvents []RoomEventMessageDetail `json:"message_events"`
	SystemEvents  []RoomEventSystemDetail  `json:"system_events"`
}

type CreateRoomResponse struct {
	ID     int32      `json:"-"`
	Detail RoomDetail `json:"detail"`
}

// RoomStateChanged is pushed by a room whenever its state changes. It is
// never produced as a direct answer to a request.
type RoomStateChanged struct {
	ID     int32      `json:"-"`
	Detail RoomDetail `json:"detail"`
}

func (r AuthUserResponse) ResponseID() int32          { return r.ID }
func (r ListRoomsResponse) ResponseID() int32         { return r.ID }
func (r ListUsersResponse) ResponseID() int32         { return r.ID }
func (r RoomEventMessageResponse) ResponseID() int32  { return r.ID }
func (r RoomEventReactionResponse) ResponseID() int32 { return r.ID }
func (r SyncRoomsResponse) ResponseID() int32         { return r.ID }
func (r CreateRoomResponse) ResponseID() int32        { return r.ID }
func (r RoomStateChanged) ResponseID() int32          { return r.ID }

func (AuthUserResponse) isResponse()          {}
func (ListRoomsResponse) isResponse()         {}
func (ListUsersResponse) isResponse()         {}
func (RoomEventMessageResponse) isResponse()  {}
func (RoomEventReactionResponse) isResponse() {}
func (SyncRoomsResponse) isResponse()         {}
func (CreateRoomResponse) isResponse()        {}
func (RoomStateChanged) isResponse()          {}
