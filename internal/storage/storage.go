package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sputnikchat/backend/internal/models"
	"sputnikchat/backend/internal/protocol"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserDeliveryChannel is the Redis channel used to fan user deliveries out
// to every server node.
const UserDeliveryChannel = "chat:user-delivery"

// Storage is the persistence boundary of the chat core. Every method is safe
// for concurrent use.
type Storage interface {
	AddUser(user *models.User) error
	FindUserByLoginPassword(login, password string) (*models.User, error)
	FindUserByID(userID uuid.UUID) (*models.User, error)
	FindUsers(userIDs []uuid.UUID) ([]models.User, error)
	FindUserRooms(userID uuid.UUID) ([]models.Room, error)
	GetAllUsers() ([]models.User, error)

	GetRooms() ([]models.Room, error)
	AddRoom(room *models.Room, creatorID uuid.UUID, memberIDs []uuid.UUID) error
	GetRoomMembers(roomID uuid.UUID) ([]models.RoomMember, error)
	AddRoomMembers(roomID, inviterID uuid.UUID, userIDs []uuid.UUID) ([]models.RoomMember, error)
	SetRoomMemberStatus(roomID, actorID uuid.UUID, statuses map[uuid.UUID]models.MemberStatus) (int, error)
	SetMemberReadMarker(roomID, userID uuid.UUID, marker time.Time) (bool, error)
	GetMemberUnreads(roomID uuid.UUID) ([]models.MemberUnread, error)

	GetRoomEvents(roomID uuid.UUID, query EventQuery) (*models.RoomEvents, error)
	AddRoomEventMessage(event *models.RoomEventMessage, attachmentIDs []uuid.UUID) error
	AddRoomEventReaction(reaction *models.RoomEventReaction) error

	SetMemberOnline(roomID, userID uuid.UUID, online bool) error
	GetOnlineMembers(roomID uuid.UUID) ([]string, error)
}

var activeStatuses = []models.MemberStatus{models.MemberStatusInvited, models.MemberStatusJoined}

// EventQuery selects the events returned by GetRoomEvents.
type EventQuery struct {
	EventType protocol.RoomEventType
	Limit     int
	Since     time.Time
	Order     protocol.SinceTimeOrder
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor. rdb may be nil, presence tracking and the
// delivery bus are then disabled.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// AddUser stores a new user. The plain password is replaced by its bcrypt hash.
func (s *Service) AddUser(user *models.User) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hash)

	if err := s.DB.Create(user).Error; err != nil {
		log.Printf("ERROR: Failed to add user %s: %v", user.Login, err)
		return err
	}
	return nil
}

// FindUserByLoginPassword returns nil, nil when the login is unknown or the
// password does not match.
func (s *Service) FindUserByLoginPassword(login, password string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("login = ?", login).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to find user %s: %v", login, err)
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, nil
	}
	return &user, nil
}

func (s *Service) FindUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) FindUsers(userIDs []uuid.UUID) ([]models.User, error) {
	var users []models.User
	if len(userIDs) == 0 {
		return users, nil
	}
	if err := s.DB.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		log.Printf("ERROR: Failed to find users: %v", err)
		return nil, err
	}
	return users, nil
}

// FindUserRooms returns the rooms the user is an invited or joined member of.
func (s *Service) FindUserRooms(userID uuid.UUID) ([]models.Room, error) {
	var rooms []models.Room
	err := s.DB.Model(&models.Room{}).
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ? AND room_members.member_status IN ?", userID, activeStatuses).
		Find(&rooms).Error
	if err != nil {
		log.Printf("ERROR: Failed to find rooms of user %s: %v", userID, err)
		return nil, err
	}
	return rooms, nil
}

func (s *Service) GetAllUsers() ([]models.User, error) {
	var users []models.User
	if err := s.DB.Order("full_name asc").Find(&users).Error; err != nil {
		log.Printf("ERROR: Failed to list users: %v", err)
		return nil, err
	}
	return users, nil
}

func (s *Service) GetRooms() ([]models.Room, error) {
	var rooms []models.Room
	if err := s.DB.Find(&rooms).Error; err != nil {
		log.Printf("ERROR: Failed to list rooms: %v", err)
		return nil, err
	}
	return rooms, nil
}

// AddRoom creates the room, an Invited membership for every member and one
// user_invite system event per member, all in one transaction.
func (s *Service) AddRoom(room *models.Room, creatorID uuid.UUID, memberIDs []uuid.UUID) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}

		members := make([]models.RoomMember, 0, len(memberIDs))
		events := make([]models.RoomEventSystem, 0, len(memberIDs))
		for _, memberID := range memberIDs {
			members = append(members, models.RoomMember{
				RoomID:       room.ID,
				UserID:       memberID,
				MemberStatus: models.MemberStatusInvited,
			})
			event, err := models.NewMemberSystemEvent(room.ID, models.SystemActionUserInvite, creatorID, memberID)
			if err != nil {
				return err
			}
			events = append(events, event)
		}
		if len(members) == 0 {
			return nil
		}
		if err := tx.Omit("User").Create(&members).Error; err != nil {
			return err
		}
		return tx.Create(&events).Error
	})
	if err != nil {
		log.Printf("ERROR: Failed to add room %q: %v", room.Title, err)
		return err
	}
	return nil
}

func (s *Service) GetRoomMembers(roomID uuid.UUID) ([]models.RoomMember, error) {
	var members []models.RoomMember
	err := s.DB.Preload("User").Where("room_id = ?", roomID).Find(&members).Error
	if err != nil {
		log.Printf("ERROR: Failed to get members of room %s: %v", roomID, err)
		return nil, err
	}
	return members, nil
}

// AddRoomMembers invites the given users. Unknown users and users that are
// already invited or joined are skipped. A member that left is invited again.
// The added members are returned with their User loaded.
func (s *Service) AddRoomMembers(roomID, inviterID uuid.UUID, userIDs []uuid.UUID) ([]models.RoomMember, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	raw := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		raw = append(raw, id.String())
	}

	var added []models.RoomMember
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var users []models.User
		err := tx.Raw(`
			SELECT u.*
			FROM users u
			WHERE u.id = ANY(?::uuid[])
			  AND NOT EXISTS (
			    SELECT 1 FROM room_members rm
			    WHERE rm.room_id = ? AND rm.user_id = u.id
			      AND rm.member_status IN ?
			  )`, pq.Array(raw), roomID, activeStatuses).
			Scan(&users).Error
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return nil
		}

		events := make([]models.RoomEventSystem, 0, len(users))
		for _, user := range users {
			added = append(added, models.RoomMember{
				RoomID:       roomID,
				UserID:       user.ID,
				MemberStatus: models.MemberStatusInvited,
				User:         user,
			})
			event, err := models.NewMemberSystemEvent(roomID, models.SystemActionUserInvite, inviterID, user.ID)
			if err != nil {
				return err
			}
			events = append(events, event)
		}
		err = tx.Omit("User").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"member_status": models.MemberStatusInvited}),
		}).Create(&added).Error
		if err != nil {
			return err
		}
		return tx.Create(&events).Error
	})
	if err != nil {
		log.Printf("ERROR: Failed to add members to room %s: %v", roomID, err)
		return nil, err
	}
	return added, nil
}

// SetRoomMemberStatus updates the status of several members and returns how
// many rows changed. Members moved to Left get a user_leave system event.
func (s *Service) SetRoomMemberStatus(roomID, actorID uuid.UUID, statuses map[uuid.UUID]models.MemberStatus) (int, error) {
	updated := 0
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		for userID, status := range statuses {
			result := tx.Model(&models.RoomMember{}).
				Where("room_id = ? AND user_id = ?", roomID, userID).
				Update("member_status", status)
			if result.Error != nil {
				return result.Error
			}
			updated += int(result.RowsAffected)

			if status != models.MemberStatusLeft || result.RowsAffected == 0 {
				continue
			}
			event, err := models.NewMemberSystemEvent(roomID, models.SystemActionUserLeave, actorID, userID)
			if err != nil {
				return err
			}
			if err := tx.Create(&event).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("ERROR: Failed to set member status in room %s: %v", roomID, err)
		return 0, err
	}
	return updated, nil
}

func (s *Service) SetMemberReadMarker(roomID, userID uuid.UUID, marker time.Time) (bool, error) {
	result := s.DB.Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("last_read_marker", marker.UTC())
	if result.Error != nil {
		log.Printf("ERROR: Failed to set read marker of %s in room %s: %v", userID, roomID, result.Error)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetMemberUnreads counts, per member, the message and system events created
// after the member's read marker.
func (s *Service) GetMemberUnreads(roomID uuid.UUID) ([]models.MemberUnread, error) {
	rawSQL := `
        SELECT
            rm.user_id,
            (SELECT count(*) FROM room_event_messages rem
             WHERE rem.room_id = rm.room_id
               AND rem.created_at > coalesce(rm.last_read_marker, 'epoch')) AS event_message_unread,
            (SELECT count(*) FROM room_event_systems res
             WHERE res.room_id = rm.room_id
               AND res.created_at > coalesce(rm.last_read_marker, 'epoch')) AS event_system_unread
        FROM room_members rm
        WHERE rm.room_id = ?
    `

	var unreads []models.MemberUnread
	if err := s.DB.Raw(rawSQL, roomID).Scan(&unreads).Error; err != nil {
		log.Printf("ERROR: Failed to count unreads in room %s: %v", roomID, err)
		return nil, err
	}
	return unreads, nil
}

// GetRoomEvents returns at most query.Limit events of the room, newest first,
// taken from both event tables according to the event type mask.
func (s *Service) GetRoomEvents(roomID uuid.UUID, query EventQuery) (*models.RoomEvents, error) {
	events := &models.RoomEvents{}
	timeCond := "created_at > ?"
	if query.Order == protocol.OrderOldest {
		timeCond = "created_at < ?"
	}

	if query.EventType.HasMessages() {
		err := s.DB.Preload("Attachments").Preload("Reactions").
			Where("room_id = ?", roomID).
			Where(timeCond, query.Since).
			Order("created_at desc").
			Limit(query.Limit).
			Find(&events.Messages).Error
		if err != nil {
			log.Printf("ERROR: Failed to get message events of room %s: %v", roomID, err)
			return nil, err
		}
	}

	if query.EventType.HasSystem() {
		err := s.DB.Where("room_id = ?", roomID).
			Where(timeCond, query.Since).
			Order("created_at desc").
			Limit(query.Limit).
			Find(&events.Systems).Error
		if err != nil {
			log.Printf("ERROR: Failed to get system events of room %s: %v", roomID, err)
			return nil, err
		}
	}

	TrimEvents(events, query.Limit)
	return events, nil
}

// AddRoomEventMessage stores the message and links the given attachments.
// On success event.Attachments holds the linked attachment records.
func (s *Service) AddRoomEventMessage(event *models.RoomEventMessage, attachmentIDs []uuid.UUID) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Attachments", "Reactions").Create(event).Error; err != nil {
			return err
		}
		if len(attachmentIDs) == 0 {
			return nil
		}

		var attachments []models.ChatAttachment
		if err := tx.Where("id IN ?", attachmentIDs).Find(&attachments).Error; err != nil {
			return err
		}
		if len(attachments) == 0 {
			return nil
		}
		if err := tx.Model(event).Association("Attachments").Append(&attachments); err != nil {
			return err
		}
		event.Attachments = attachments
		return nil
	})
	if err != nil {
		log.Printf("ERROR: Failed to save message for room %s: %v", event.RoomID, err)
		return err
	}
	return nil
}

func (s *Service) AddRoomEventReaction(reaction *models.RoomEventReaction) error {
	if err := s.DB.Create(reaction).Error; err != nil {
		log.Printf("ERROR: Failed to save reaction for message %s: %v", reaction.MessageID, err)
		return err
	}
	return nil
}

func onlineKey(roomID uuid.UUID) string {
	return "room:" + roomID.String() + ":online"
}

// SetMemberOnline mirrors room presence into a Redis set.
func (s *Service) SetMemberOnline(roomID, userID uuid.UUID, online bool) error {
	if s.Redis == nil {
		return nil
	}
	if online {
		return s.Redis.SAdd(s.Ctx, onlineKey(roomID), userID.String()).Err()
	}
	return s.Redis.SRem(s.Ctx, onlineKey(roomID), userID.String()).Err()
}

func (s *Service) GetOnlineMembers(roomID uuid.UUID) ([]string, error) {
	if s.Redis == nil {
		return nil, nil
	}
	members, err := s.Redis.SMembers(s.Ctx, onlineKey(roomID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return members, err
}

// PublishUserDelivery publishes an encoded user delivery to every node.
func (s *Service) PublishUserDelivery(payload []byte) error {
	if s.Redis == nil {
		return errors.New("redis is not configured")
	}
	return s.Redis.Publish(s.Ctx, UserDeliveryChannel, string(payload)).Err()
}

// SubscribeUserDeliveries subscribes to the user delivery channel. The
// payload stream is closed once the returned func closes the subscription.
func (s *Service) SubscribeUserDeliveries(ctx context.Context) (<-chan []byte, func() error) {
	pubsub := s.Redis.Subscribe(ctx, UserDeliveryChannel)
	payloads := make(chan []byte)
	go func() {
		defer close(payloads)
		for msg := range pubsub.Channel() {
			select {
			case payloads <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return payloads, pubsub.Close
}
