package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatAttachment is an uploaded media file referenced by message events.
type ChatAttachment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null"`
	MimeType  string    `gorm:"not null"`
	CreatedAt time.Time
}

// RoomEventMessage is a chat message posted into a room.
type RoomEventMessage struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID        uuid.UUID `gorm:"type:uuid;not null;index:idx_room_event_message"`
	UserID        uuid.UUID `gorm:"type:uuid;not null"`
	ClientEventID int32     `gorm:"not null"`
	Version       int16     `gorm:"not null"`
	Content       string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"index:idx_room_event_message"`
	EditedAt      *time.Time

	Attachments []ChatAttachment    `gorm:"many2many:room_event_message_attachments"`
	Reactions   []RoomEventReaction `gorm:"foreignKey:MessageID"`
}

func (e *RoomEventMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}

// RoomEventReaction is a reaction left on a message event.
type RoomEventReaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index"`
	RoomID    uuid.UUID `gorm:"type:uuid;not null"`
	UserID    uuid.UUID `gorm:"type:uuid;not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time
}

func (e *RoomEventReaction) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}

// RoomEventSystem is a room event generated by the server, e.g. an invite.
// Content holds a serialized SystemContentV1.
type RoomEventSystem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID    uuid.UUID `gorm:"type:uuid;not null;index:idx_room_event_system"`
	Version   int16     `gorm:"not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index:idx_room_event_system"`
}

func (e *RoomEventSystem) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}

// RoomEvents is the result of a filtered event query on one room.
type RoomEvents struct {
	Messages []RoomEventMessage
	Systems  []RoomEventSystem
}

// AllModels lists every table for AutoMigrate.
func AllModels() []any {
	return []any{
		&User{},
		&Room{},
		&RoomMember{},
		&ChatAttachment{},
		&RoomEventMessage{},
		&RoomEventReaction{},
		&RoomEventSystem{},
	}
}
