package chathub_test

import (
	"sputnikchat/backend/internal/models"
	"sputnikchat/backend/internal/storage"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) AddUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStorage) FindUserByLoginPassword(login, password string) (*models.User, error) {
	args := m.Called(login, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) FindUserByID(userID uuid.UUID) (*models.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) FindUsers(userIDs []uuid.UUID) ([]models.User, error) {
	args := m.Called(userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStorage) FindUserRooms(userID uuid.UUID) ([]models.Room, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Room), args.Error(1)
}

func (m *MockStorage) GetAllUsers() ([]models.User, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStorage) GetRooms() ([]models.Room, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Room), args.Error(1)
}

func (m *MockStorage) AddRoom(room *models.Room, creatorID uuid.UUID, memberIDs []uuid.UUID) error {
	args := m.Called(room, creatorID, memberIDs)
	return args.Error(0)
}

func (m *MockStorage) GetRoomMembers(roomID uuid.UUID) ([]models.RoomMember, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RoomMember), args.Error(1)
}

func (m *MockStorage) AddRoomMembers(roomID, inviterID uuid.UUID, userIDs []uuid.UUID) ([]models.RoomMember, error) {
	args := m.Called(roomID, inviterID, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RoomMember), args.Error(1)
}

func (m *MockStorage) SetRoomMemberStatus(roomID, actorID uuid.UUID, statuses map[uuid.UUID]models.MemberStatus) (int, error) {
	args := m.Called(roomID, actorID, statuses)
	return args.Int(0), args.Error(1)
}

func (m *MockStorage) SetMemberReadMarker(roomID, userID uuid.UUID, marker time.Time) (bool, error) {
	args := m.Called(roomID, userID, marker)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) GetMemberUnreads(roomID uuid.UUID) ([]models.MemberUnread, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MemberUnread), args.Error(1)
}

func (m *MockStorage) GetRoomEvents(roomID uuid.UUID, query storage.EventQuery) (*models.RoomEvents, error) {
	args := m.Called(roomID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoomEvents), args.Error(1)
}

func (m *MockStorage) AddRoomEventMessage(event *models.RoomEventMessage, attachmentIDs []uuid.UUID) error {
	args := m.Called(event, attachmentIDs)
	return args.Error(0)
}

func (m *MockStorage) AddRoomEventReaction(reaction *models.RoomEventReaction) error {
	args := m.Called(reaction)
	return args.Error(0)
}

func (m *MockStorage) SetMemberOnline(roomID, userID uuid.UUID, online bool) error {
	args := m.Called(roomID, userID, online)
	return args.Error(0)
}

func (m *MockStorage) GetOnlineMembers(roomID uuid.UUID) ([]string, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type discardT struct{}

func (discardT) Logf(string, ...interface{})   {}
func (discardT) Errorf(string, ...interface{}) {}
func (discardT) FailNow()                      {}

// WasCalled reports whether method was called with arguments. Unlike
// AssertCalled it does not fail the test, so it can be polled.
func (m *MockStorage) WasCalled(method string, arguments ...interface{}) bool {
	return m.AssertCalled(discardT{}, method, arguments...)
}
