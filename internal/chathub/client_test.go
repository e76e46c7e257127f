package chathub_test

import (
	"sputnikchat/backend/internal/models"
	"sputnikchat/backend/internal/protocol"
	"sputnikchat/backend/internal/storage"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestClient_RejectsRequestsBeforeAuth(t *testing.T) {
	s := newStorage()
	hub := startHub(t, s)
	roomID := uuid.New()

	requests := []protocol.Request{
		protocol.ListRooms{ID: 2},
		protocol.ListUsers{ID: 3},
		protocol.RoomEventMessage{ID: 4, RoomID: roomID, Content: "hi"},
		protocol.RoomEventReaction{ID: 5, RoomID: roomID},
		protocol.SyncRooms{ID: 6},
		protocol.SetRoomReadMarker{ID: 7, RoomID: roomID},
		protocol.CreateRoom{ID: 8, Title: "x"},
		protocol.InviteRoomMember{ID: 9, RoomID: roomID},
		protocol.RemoveRoomMember{ID: 10, RoomID: roomID},
	}

	conn := &FakeTransport{}
	client := hub.Connect(conn)
	for _, req := range requests {
		client.HandleRequest(req)
	}

	require.Eventually(t, func() bool { return len(conn.Frames()) == len(requests) }, waitFor, tick)
	for i, fr := range conn.Frames() {
		assert.Equal(t, requests[i].RequestID(), fr.ResponseID)
		assert.Nil(t, fr.Response)
		assert.Equal(t, protocol.ErrNeedsAuth, fr.Kind)
	}
	s.AssertNotCalled(t, "GetAllUsers")
}

func TestClient_AuthFailureKeepsSessionUnauthenticated(t *testing.T) {
	s := newStorage()
	hub := startHub(t, s)
	s.On("FindUserByLoginPassword", "mallory", "guess").Return(nil, nil)

	conn := &FakeTransport{}
	client := hub.Connect(conn)
	client.HandleRequest(protocol.AuthUser{ID: 1, Login: "mallory", Password: "guess"})
	client.HandleRequest(protocol.ListUsers{ID: 2})

	require.Eventually(t, func() bool { return len(conn.Frames()) == 2 }, waitFor, tick)
	frames := conn.Frames()
	assert.Equal(t, sentFrame{ResponseID: 1, Kind: protocol.ErrUserNotFound}, frames[0])
	assert.Equal(t, sentFrame{ResponseID: 2, Kind: protocol.ErrNeedsAuth}, frames[1])
	s.AssertNotCalled(t, "FindUserRooms", mock.Anything)
}

func TestClient_AuthJoinsEveryMemberRoom(t *testing.T) {
	s := newStorage()
	alice := newUser("alice")
	general := models.Room{ID: uuid.New(), Title: "general"}
	random := models.Room{ID: uuid.New(), Title: "random"}
	s.On("GetRoomMembers", general.ID).Return([]models.RoomMember{newMember(general.ID, alice, models.MemberStatusJoined)}, nil)
	s.On("GetRoomMembers", random.ID).Return([]models.RoomMember{newMember(random.ID, alice, models.MemberStatusInvited)}, nil)
	hub := startHub(t, s, general, random)

	_, conn := connect(t, hub, s, alice, general, random)

	auth := conn.Frames()[0]
	assert.Equal(t, int32(1), auth.ResponseID)
	assert.Equal(t, protocol.ErrNone, auth.Kind)
	assert.Equal(t, protocol.AuthUserResponse{ID: 1, Detail: protocol.UserDetail{UserID: alice.ID, FullName: "alice full"}}, auth.Response)

	for _, roomID := range []uuid.UUID{general.ID, random.ID} {
		state := conn.WaitState(t, roomID, nil)
		m, ok := findMember(state, alice.ID)
		require.True(t, ok)
		assert.True(t, m.IsOnline)
		s.AssertCalled(t, "SetMemberOnline", roomID, alice.ID, true)
	}
	assert.Equal(t, 1, hub.Clients.Connections(alice.ID))
}

func TestClient_ListRoomsAllAndIntersection(t *testing.T) {
	s := newStorage()
	alice := newUser("alice")
	general := models.Room{ID: uuid.New(), Title: "general"}
	random := models.Room{ID: uuid.New(), Title: "random"}
	s.On("GetRoomMembers", general.ID).Return([]models.RoomMember{newMember(general.ID, alice, models.MemberStatusJoined)}, nil)
	s.On("GetRoomMembers", random.ID).Return([]models.RoomMember{newMember(random.ID, alice, models.MemberStatusJoined)}, nil)
	hub := startHub(t, s, general, random)
	client, conn := connect(t, hub, s, alice, general, random)

	client.HandleRequest(protocol.ListRooms{ID: 20})
	all := conn.WaitFrame(t, func(fr sentFrame) bool { return fr.ResponseID == 20 })
	rooms := all.Response.(protocol.ListRoomsResponse).Detail
	require.Len(t, rooms, 2)
	assert.ElementsMatch(t, []string{"general", "random"}, []string{rooms[0].Title, rooms[1].Title})

	client.HandleRequest(protocol.ListRooms{ID: 21, RoomIDs: []uuid.UUID{random.ID, uuid.New()}})
	some := conn.WaitFrame(t, func(fr sentFrame) bool { return fr.ResponseID == 21 })
	rooms = some.Response.(protocol.ListRoomsResponse).Detail
	require.Len(t, rooms, 1)
	assert.Equal(t, random.ID, rooms[0].RoomID)
	assert.True(t, memberOnline(rooms[0], alice.ID))
}

func TestClient_ListRoomsWithoutTargetAnswersEmpty(t *testing.T) {
	s := newStorage()
	alice := newUser("alice")
	hub := startHub(t, s)
	client, conn := connect(t, hub, s, alice)

	client.HandleRequest(protocol.ListRooms{ID: 30, RoomIDs: []uuid.UUID{uuid.New()}})

	fr := conn.WaitFrame(t, func(fr sentFrame) bool { return fr.ResponseID == 30 })
	assert.Equal(t, protocol.ListRoomsResponse{ID: 30, Detail: []protocol.RoomDetail{}}, fr.Response)
}

func TestClient_ListUsers(t *testing.T) {
	s := newStorage()
	alice, bob := newUser("alice"), newUser("bob")
	s.On("GetAllUsers").Return([]models.User{alice, bob}, nil)
	hub := startHub(t, s)
	client, conn := connect(t, hub, s, alice)

	client.HandleRequest(protocol.ListUsers{ID: 40})

	fr := conn.WaitFrame(t, func(fr sentFrame) bool { return fr.ResponseID == 40 })
	users := fr.Response.(protocol.ListUsersResponse).Users
	require.Len(t, users, 2)
	assert.Equal(t, bob.ID, users[1].UserID)
}

func TestClient_DropsRequestsForForeignRooms(t *testing.T) {
	s := newStorage()
	alice := newUser("alice")
	other := models.Room{ID: uuid.New(), Title: "other"}
	s.On("GetRoomMembers", other.ID).Return([]models.RoomMember{}, nil)
	hub := startHub(t, s, other)
	s.On("GetAllUsers").Return([]models.User{alice}, nil)
	client, conn := connect(t, hub, s, alice)

	client.HandleRequest(protocol.RoomEventMessage{ID: 50, RoomID: other.ID, Content: "psst"})
	client.HandleRequest(protocol.InviteRoomMember{ID: 51, RoomID: other.ID, MemberIDs: []string{alice.ID.String()}})
	client.HandleRequest(protocol.ListUsers{ID: 52})

	conn.WaitFrame(t, func(fr sentFrame) bool { return fr.ResponseID == 52 })
	s.AssertNotCalled(t, "AddRoomEventMessage", mock.Anything, mock.Anything)
	s.AssertNotCalled(t, "AddRoomMembers", mock.Anything, mock.Anything, mock.Anything)
	for _, fr := range conn.Frames() {
		assert.NotEqual(t, int32(50), fr.ResponseID)
		assert.NotEqual(t, int32(51), fr.ResponseID)
	}
}

func TestClient_SyncRoomsMergesRoomBatches(t *testing.T) {
	s := newStorage()
	alice, bob := newUser("alice"), newUser("bob")
	general := models.Room{ID: uuid.New(), Title: "general"}
	random := models.Room{ID: uuid.New(), Title: "random"}
	s.On("GetRoomMembers", general.ID).Return([]models.RoomMember{newMember(general.ID, alice, models.MemberStatusJoined)}, nil)
	s.On("GetRoomMembers", random.ID).Return([]models.RoomMember{newMember(random.ID, alice, models.MemberStatusJoined)}, nil)
	hub := startHub(t, s, general, random)
	client, conn := connect(t, hub, s, alice, general, random)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.On("GetRoomEvents", general.ID, mock.Anything).Return(&models.RoomEvents{
		Messages: []models.RoomEventMessage{
			{ID: uuid.New(), RoomID: general.ID, UserID: alice.ID, ClientEventID: 42, Content: "mine", CreatedAt: created},
			{ID: uuid.New(), RoomID: general.ID, UserID: bob.ID, ClientEventID: 7, Content: "theirs", CreatedAt: created},
		},
	}, nil)
	s.On("GetRoomEvents", random.ID, mock.Anything).Return(&models.RoomEvents{
		Systems: []models.RoomEventSystem{{ID: uuid.New(), RoomID: random.ID, Version: 1, Content: "{}", CreatedAt: created}},
	}, nil)

	client.HandleRequest(protocol.SyncRooms{ID: 60, RoomFilter: []protocol.SyncRoomFilter{
		{RoomID: general.ID, EventLimit: 500},
		{RoomID: random.ID, EventFilter: protocol.EventTypeSystem},
	}})

	fr := conn.WaitFrame(t, func(fr sentFrame) bool { return fr.ResponseID == 60 })
	resp := fr.Response.(protocol.SyncRoomsResponse)
	require.Len(t, resp.MessageEvents, 2)
	require.Len(t, resp.SystemEvents, 1)
	for _, e := range resp.MessageEvents {
		if e.SenderID == alice.ID.String() {
			require.NotNil(t, e.ClientEventID)
			assert.Equal(t, int32(42), *e.ClientEventID)
		} else {
			assert.Nil(t, e.ClientEventID)
		}
	}

	s.AssertCalled(t, "GetRoomEvents", general.ID, storage.EventQuery{
		EventType: protocol.EventTypeAll,
		Limit:     100,
		Since:     time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		Order:     protocol.OrderNewest,
	})
	s.AssertCalled(t, "GetRoomEvents", random.ID, mock.MatchedBy(func(q storage.EventQuery) bool {
		return q.EventType == protocol.EventTypeSystem && q.Limit == 30
	}))
}

func TestClient_SyncRoomsTimeoutSendsNothing(t *testing.T) {
	s := newStorage()
	alice := newUser("alice")
	general := models.Room{ID: uuid.New(), Title: "general"}
	slow := models.Room{ID: uuid.New(), Title: "slow"}
	s.On("GetRoomMembers", general.ID).Return([]models.RoomMember{newMember(general.ID, alice, models.MemberStatusJoined)}, nil)
	s.On("GetRoomMembers", slow.ID).Return([]models.RoomMember{newMember(slow.ID, alice, models.MemberStatusJoined)}, nil)
	s.On("GetRoomEvents", general.ID, mock.Anything).Return(&models.RoomEvents{}, nil)
	hub := startHub(t, s, general, slow)

	// slow stays busy reading events past the collector timeout.
	release := make(chan time.Time)
	t.Cleanup(func() { close(release) })
	s.On("GetRoomEvents", slow.ID, mock.Anything).WaitUntil(release).Return(&models.RoomEvents{}, nil)

	client, conn := connect(t, hub, s, alice, general, slow)

	client.HandleRequest(protocol.SyncRooms{ID: 70})
	time.Sleep(400 * time.Millisecond)

	for _, fr := range conn.Frames() {
		assert.NotEqual(t, int32(70), fr.ResponseID)
	}
	s.AssertCalled(t, "GetRoomEvents", general.ID, mock.Anything)
}

func TestClient_SyncRoomsWithUnknownRoomIDAnswersEmpty(t *testing.T) {
	s := newStorage()
	alice := newUser("alice")
	general := models.Room{ID: uuid.New(), Title: "general"}
	s.On("GetRoomMembers", general.ID).Return([]models.RoomMember{newMember(general.ID, alice, models.MemberStatusJoined)}, nil)
	hub := startHub(t, s, general)
	client, conn := connect(t, hub, s, alice, general)

	// A room id that failed to parse arrives as uuid.Nil.
	client.HandleRequest(protocol.SyncRooms{ID: 71, RoomFilter: []protocol.SyncRoomFilter{{RoomID: uuid.Nil}}})

	fr := conn.WaitFrame(t, func(fr sentFrame) bool { return fr.ResponseID == 71 })
	resp := fr.Response.(protocol.SyncRoomsResponse)
	assert.Empty(t, resp.MessageEvents)
	assert.Empty(t, resp.SystemEvents)
	s.AssertNotCalled(t, "GetRoomEvents", mock.Anything, mock.Anything)
}

func TestClient_AuthStartsRoomsCreatedAfterStartup(t *testing.T) {
	s := newStorage()
	alice := newUser("alice")
	late := models.Room{ID: uuid.New(), Title: "late"}
	s.On("GetRoomMembers", late.ID).Return([]models.RoomMember{newMember(late.ID, alice, models.MemberStatusInvited)}, nil)
	hub := startHub(t, s)
	require.Equal(t, 0, hub.Rooms.RoomCount())

	client, conn := connect(t, hub, s, alice, late)
	client.HandleRequest(protocol.ListRooms{ID: 2})

	fr := conn.WaitFrame(t, func(fr sentFrame) bool { return fr.ResponseID == 2 })
	rooms := fr.Response.(protocol.ListRoomsResponse).Detail
	require.Len(t, rooms, 1)
	assert.Equal(t, late.ID, rooms[0].RoomID)
	assert.Equal(t, "late", rooms[0].Title)
	assert.Equal(t, 1, hub.Rooms.RoomCount())
}

func TestClient_StopUnregistersAndClosesTransport(t *testing.T) {
	s := newStorage()
	alice := newUser("alice")
	hub := startHub(t, s)
	client, conn := connect(t, hub, s, alice)
	require.Equal(t, 1, hub.Clients.Connections(alice.ID))

	client.Stop()

	<-client.Done()
	assert.True(t, conn.IsClosed())
	assert.Eventually(t, func() bool { return hub.Clients.Connections(alice.ID) == 0 }, waitFor, tick)
	assert.Equal(t, 0, hub.Clients.Connections(uuid.Nil))
}
