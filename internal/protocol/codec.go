package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message type names used in the wire envelopes.
const (
	TypeAuthUser          = "auth_user"
	TypeListRooms         = "list_rooms"
	TypeListUsers         = "list_users"
	TypeRoomEventMessage  = "room_event_message"
	TypeRoomEventReaction = "room_event_reaction"
	TypeSyncRooms         = "sync_rooms"
	TypeSetRoomReadMarker = "set_room_read_marker"
	TypeCreateRoom        = "create_room"
	TypeInviteRoomMember  = "invite_room_member"
	TypeRemoveRoomMember  = "remove_room_member"
	TypeRoomStateChanged  = "room_state_changed"
)

// ErrUnknownMessageType is returned for envelopes with an unrecognized kind.
var ErrUnknownMessageType = errors.New("unknown message type")

// RequestEnvelope is the inbound frame layout.
type RequestEnvelope struct {
	RequestID int32           `json:"request_id"`
	MsgType   string          `json:"msg_type"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ResponseEnvelope is the outbound frame layout.
type ResponseEnvelope struct {
	ResponseID int32           `json:"response_id"`
	MsgType    string          `json:"msg_type,omitempty"`
	Error      string          `json:"error"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// DecodeRequest turns one inbound frame into a typed request.
func DecodeRequest(frame []byte) (Request, error) {
	var env RequestEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	var req Request
	switch env.MsgType {
	case TypeAuthUser:
		var r AuthUser
		if err := decodeData(env.Data, &r); err != nil {
			return nil, err
		}
		r.ID = env.RequestID
		req = r
	case TypeListRooms:
		var r ListRooms
		if err := decodeData(env.Data, &r); err != nil {
			return nil, err
		}
		r.ID = env.RequestID
		req = r
	case TypeListUsers:
		req = ListUsers{ID: env.RequestID}
	case TypeRoomEventMessage:
		var r RoomEventMessage
		if err := decodeData(env.Data, &r); err != nil {
			return nil, err
		}
		r.ID = env.RequestID
		req = r
	case TypeRoomEventReaction:
		var r RoomEventReaction
		if err := decodeData(env.Data, &r); err != nil {
			return nil, err
		}
		r.ID = env.RequestID
		req = r
	case TypeSyncRooms:
		var r SyncRooms
		if err := decodeData(env.Data, &r); err != nil {
			return nil, err
		}
		r.ID = env.RequestID
		req = r
	case TypeSetRoomReadMarker:
		var r SetRoomReadMarker
		if err := decodeData(env.Data, &r); err != nil {
			return nil, err
		}
		r.ID = env.RequestID
		req = r
	case TypeCreateRoom:
		var r CreateRoom
		if err := decodeData(env.Data, &r); err != nil {
			return nil, err
		}
		r.ID = env.RequestID
		req = r
	case TypeInviteRoomMember:
		var r InviteRoomMember
		if err := decodeData(env.Data, &r); err != nil {
			return nil, err
		}
		r.ID = env.RequestID
		req = r
	case TypeRemoveRoomMember:
		var r RemoveRoomMember
		if err := decodeData(env.Data, &r); err != nil {
			return nil, err
		}
		r.ID = env.RequestID
		req = r
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.MsgType)
	}
	return req, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

// MsgType returns the wire name of a response.
func MsgType(resp Response) string {
	switch resp.(type) {
	case AuthUserResponse:
		return TypeAuthUser
	case ListRoomsResponse:
		return TypeListRooms
	case ListUsersResponse:
		return TypeListUsers
	case RoomEventMessageResponse:
		return TypeRoomEventMessage
	case RoomEventReactionResponse:
		return TypeRoomEventReaction
	case SyncRoomsResponse:
		return TypeSyncRooms
	case CreateRoomResponse:
		return TypeCreateRoom
	case RoomStateChanged:
		return TypeRoomStateChanged
	default:
		return ""
	}
}

// EncodeResponse builds one outbound frame. A nil response is sent as an
// error-only frame; a nil response without an error produces no frame at all
// and EncodeResponse returns nil, nil. When a payload is present its own
// response id wins over responseID.
func EncodeResponse(responseID int32, resp Response, kind ErrorKind) ([]byte, error) {
	if resp == nil && kind == ErrNone {
		return nil, nil
	}

	env := ResponseEnvelope{
		ResponseID: responseID,
		Error:      kind.String(),
	}
	if resp != nil {
		data, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", MsgType(resp), err)
		}
		env.ResponseID = resp.ResponseID()
		env.MsgType = MsgType(resp)
		env.Data = data
	}

	return json.Marshal(env)
}
