package chathub_test

import (
	"context"
	"sputnikchat/backend/internal/chathub"
	"sputnikchat/backend/internal/models"
	"sputnikchat/backend/internal/protocol"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type sentFrame struct {
	ResponseID int32
	Response   protocol.Response
	Kind       protocol.ErrorKind
}

// FakeTransport records every frame a client unit sends.
type FakeTransport struct {
	mu     sync.Mutex
	frames []sentFrame
	closed bool
}

func (f *FakeTransport) Send(responseID int32, resp protocol.Response, kind protocol.ErrorKind) {
	if resp == nil && kind == protocol.ErrNone {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, sentFrame{ResponseID: responseID, Response: resp, Kind: kind})
}

func (f *FakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *FakeTransport) Frames() []sentFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentFrame(nil), f.frames...)
}

func (f *FakeTransport) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset forgets the frames recorded so far.
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

// WaitFrame waits for the first recorded frame matching match.
func (f *FakeTransport) WaitFrame(t *testing.T, match func(sentFrame) bool) sentFrame {
	t.Helper()
	var found sentFrame
	require.Eventually(t, func() bool {
		for _, fr := range f.Frames() {
			if match(fr) {
				found = fr
				return true
			}
		}
		return false
	}, waitFor, tick)
	return found
}

// WaitState waits for a RoomStateChanged push of roomID matching match.
func (f *FakeTransport) WaitState(t *testing.T, roomID uuid.UUID, match func(protocol.RoomDetail) bool) protocol.RoomDetail {
	t.Helper()
	fr := f.WaitFrame(t, func(fr sentFrame) bool {
		state, ok := fr.Response.(protocol.RoomStateChanged)
		return ok && state.Detail.RoomID == roomID && (match == nil || match(state.Detail))
	})
	return fr.Response.(protocol.RoomStateChanged).Detail
}

func memberOnline(detail protocol.RoomDetail, userID uuid.UUID) bool {
	for _, m := range detail.Members {
		if m.UserID == userID {
			return m.IsOnline
		}
	}
	return false
}

func findMember(detail protocol.RoomDetail, userID uuid.UUID) (protocol.RoomMemberDetail, bool) {
	for _, m := range detail.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return protocol.RoomMemberDetail{}, false
}

func newUser(login string) models.User {
	return models.User{ID: uuid.New(), Login: login, FullName: login + " full"}
}

func newMember(roomID uuid.UUID, u models.User, status models.MemberStatus) models.RoomMember {
	return models.RoomMember{RoomID: roomID, UserID: u.ID, MemberStatus: status, User: u}
}

// newStorage returns a mock with the calls every room makes on each push.
func newStorage() *MockStorage {
	s := new(MockStorage)
	s.On("GetMemberUnreads", mock.Anything).Return([]models.MemberUnread{}, nil).Maybe()
	s.On("SetMemberOnline", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return s
}

func startHub(t *testing.T, s *MockStorage, rooms ...models.Room) *chathub.Hub {
	t.Helper()
	if rooms == nil {
		rooms = []models.Room{}
	}
	s.On("GetRooms").Return(rooms, nil)

	hub := chathub.NewHub(s, chathub.Options{CollectorTimeout: 200 * time.Millisecond})
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(hub.Stop)
	return hub
}

// connect authenticates user over a new connection and waits until every
// room of the user has pushed its state.
func connect(t *testing.T, hub *chathub.Hub, s *MockStorage, user models.User, rooms ...models.Room) (*chathub.ClientUnit, *FakeTransport) {
	t.Helper()
	if rooms == nil {
		rooms = []models.Room{}
	}
	u := user
	s.On("FindUserByLoginPassword", user.Login, "pw").Return(&u, nil)
	s.On("FindUserRooms", user.ID).Return(rooms, nil)

	conn := &FakeTransport{}
	client := hub.Connect(conn)
	client.HandleRequest(protocol.AuthUser{ID: 1, Login: user.Login, Password: "pw"})

	conn.WaitFrame(t, func(fr sentFrame) bool {
		_, ok := fr.Response.(protocol.AuthUserResponse)
		return ok
	})
	for _, room := range rooms {
		conn.WaitState(t, room.ID, func(d protocol.RoomDetail) bool { return memberOnline(d, user.ID) })
	}
	return client, conn
}
