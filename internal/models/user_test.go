package models_test

import (
	"reflect"
	"sputnikchat/backend/internal/models"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUserBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a UUID.
func TestUserBeforeCreate_GeneratesUUID(t *testing.T) {
	user := &models.User{Login: "alice", Password: "secret", FullName: "Alice"}

	assert.Equal(t, uuid.Nil, user.ID, "User ID should be empty before BeforeCreate")

	err := user.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID, "User ID must be populated after BeforeCreate")
}

// TestUserBeforeCreate_PreservesExistingID verifies that the hook doesn't overwrite an existing ID.
func TestUserBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New()
	user := &models.User{ID: existingID, Login: "bob"}

	err := user.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.Equal(t, existingID, user.ID, "BeforeCreate should preserve existing ID")
}

// TestBeforeCreate_UniqueIDs verifies unique UUIDs are generated for every entity kind.
func TestBeforeCreate_UniqueIDs(t *testing.T) {
	room := &models.Room{Title: "general"}
	msg := &models.RoomEventMessage{Content: "hi"}
	reaction := &models.RoomEventReaction{Content: ":+1:"}
	system := &models.RoomEventSystem{Content: "{}"}
	user := &models.User{Login: "carol"}

	require.NoError(t, room.BeforeCreate(nil))
	require.NoError(t, msg.BeforeCreate(nil))
	require.NoError(t, reaction.BeforeCreate(nil))
	require.NoError(t, system.BeforeCreate(nil))
	require.NoError(t, user.BeforeCreate(nil))

	ids := map[uuid.UUID]bool{room.ID: true, msg.ID: true, reaction.ID: true, system.ID: true, user.ID: true}
	assert.Len(t, ids, 5, "All generated IDs should be unique")
	assert.NotContains(t, ids, uuid.Nil)
}

// TestUserStructTags guards the GORM and JSON tags against accidental removal.
func TestUserStructTags(t *testing.T) {
	userType := reflect.TypeOf(models.User{})

	idField, found := userType.FieldByName("ID")
	assert.True(t, found)
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")
	assert.Contains(t, idField.Tag.Get("json"), "id")

	loginField, found := userType.FieldByName("Login")
	assert.True(t, found)
	assert.Contains(t, loginField.Tag.Get("gorm"), "uniqueIndex")

	passwordField, found := userType.FieldByName("Password")
	assert.True(t, found)
	assert.Equal(t, "-", passwordField.Tag.Get("json"), "Password must never be serialized")
}

func TestRoomMemberCompositeKey(t *testing.T) {
	memberType := reflect.TypeOf(models.RoomMember{})

	roomField, _ := memberType.FieldByName("RoomID")
	userField, _ := memberType.FieldByName("UserID")
	assert.Contains(t, roomField.Tag.Get("gorm"), "primaryKey")
	assert.Contains(t, userField.Tag.Get("gorm"), "primaryKey")
}

func TestSystemContent_RoundTrip(t *testing.T) {
	roomID, src, dst := uuid.New(), uuid.New(), uuid.New()

	event, err := models.NewMemberSystemEvent(roomID, models.SystemActionUserInvite, src, dst)
	require.NoError(t, err)
	assert.Equal(t, roomID, event.RoomID)
	assert.Equal(t, models.SystemContentVersion, event.Version)
	assert.Contains(t, event.Content, `"action":"user_invite"`)

	content, err := models.DeserializeSystemContent(event.Content)
	require.NoError(t, err)
	assert.Equal(t, models.SystemActionUserInvite, content.Action)
	assert.Equal(t, src.String(), content.SrcUserID)
	require.NotNil(t, content.DstUserID)
	assert.Equal(t, dst.String(), *content.DstUserID)
	assert.Nil(t, content.FromContent)
}

func TestDeserializeSystemContent_Invalid(t *testing.T) {
	_, err := models.DeserializeSystemContent("not json")
	assert.Error(t, err)
}

func TestAllModels(t *testing.T) {
	assert.Len(t, models.AllModels(), 7)
}
