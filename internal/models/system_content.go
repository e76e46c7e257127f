package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// SystemContentVersion is written to RoomEventSystem.Version for
// SystemContentV1 payloads.
const SystemContentVersion int16 = 1

type SystemAction string

const (
	SystemActionChangeAvatar SystemAction = "change_avatar"
	SystemActionChangeTitle  SystemAction = "change_title"
	SystemActionUserInvite   SystemAction = "user_invite"
	SystemActionUserJoin     SystemAction = "user_join"
	SystemActionUserLeave    SystemAction = "user_leave"
	SystemActionUserKick     SystemAction = "user_kick"
	SystemActionUserBan      SystemAction = "user_ban"
)

// SystemContentV1 is the JSON body of a system event.
type SystemContentV1 struct {
	Action      SystemAction `json:"action"`
	SrcUserID   string       `json:"srcUserId"`
	DstUserID   *string      `json:"dstUserId,omitempty"`
	FromContent *string      `json:"fromContent,omitempty"`
	ToContent   *string      `json:"toContent,omitempty"`
}

// NewMemberSystemEvent builds a system event for an action performed by src
// on dst in roomID.
func NewMemberSystemEvent(roomID uuid.UUID, action SystemAction, src, dst uuid.UUID) (RoomEventSystem, error) {
	dstID := dst.String()
	content, err := SystemContentV1{
		Action:    action,
		SrcUserID: src.String(),
		DstUserID: &dstID,
	}.Serialize()
	if err != nil {
		return RoomEventSystem{}, err
	}
	return RoomEventSystem{
		RoomID:  roomID,
		Version: SystemContentVersion,
		Content: content,
	}, nil
}

func (c SystemContentV1) Serialize() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to serialize system content: %w", err)
	}
	return string(data), nil
}

func DeserializeSystemContent(value string) (SystemContentV1, error) {
	var c SystemContentV1
	if err := json.Unmarshal([]byte(value), &c); err != nil {
		return c, fmt.Errorf("failed to deserialize system content: %w", err)
	}
	return c, nil
}
