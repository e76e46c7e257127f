package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemberStatus is stored as text in room_members.member_status.
type MemberStatus string

const (
	MemberStatusInvited MemberStatus = "invited"
	MemberStatusJoined  MemberStatus = "joined"
	MemberStatusLeft    MemberStatus = "left"
	MemberStatusKicked  MemberStatus = "kicked"
	MemberStatusBanned  MemberStatus = "banned"
)

// Room is a chat room. Membership lives in RoomMember.
type Room struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title     string    `gorm:"not null"`
	Avatar    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Room) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// RoomMember links a user to a room. The embedded User is preloaded when the
// roster of a room is read.
type RoomMember struct {
	RoomID         uuid.UUID    `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID    `gorm:"type:uuid;primaryKey;index"`
	MemberStatus   MemberStatus `gorm:"type:text;not null"`
	Permission     int16        `gorm:"not null;default:0"`
	LastReadMarker *time.Time
	User           User `gorm:"foreignKey:UserID"`
}

// MemberUnread holds the unread counters of one member, computed against the
// member's last read marker.
type MemberUnread struct {
	UserID             uuid.UUID
	EventMessageUnread int
	EventSystemUnread  int
}
