package chathub

import (
	"sputnikchat/backend/internal/models"
	"sputnikchat/backend/internal/protocol"

	"github.com/google/uuid"
)

func userDetail(u models.User) protocol.UserDetail {
	return protocol.UserDetail{
		UserID:   u.ID,
		FullName: u.FullName,
		Avatar:   u.Avatar,
	}
}

func isActiveStatus(status models.MemberStatus) bool {
	return status == models.MemberStatusInvited || status == models.MemberStatusJoined
}

// isActiveMember reports whether the snapshot lists userID as a member that
// has not left the room.
func isActiveMember(detail protocol.RoomDetail, userID uuid.UUID) bool {
	for _, m := range detail.Members {
		if m.UserID != userID {
			continue
		}
		return m.MemberStatus == protocol.MemberInvited || m.MemberStatus == protocol.MemberJoined
	}
	return false
}

func memberDetail(m models.RoomMember, online bool) protocol.RoomMemberDetail {
	d := protocol.RoomMemberDetail{
		UserID:       m.UserID,
		FullName:     m.User.FullName,
		IsOnline:     online,
		MemberStatus: protocol.MemberStatus(m.MemberStatus),
		Avatar:       m.User.Avatar,
	}
	if m.LastReadMarker != nil {
		marker := m.LastReadMarker.UnixMilli()
		d.LastReadMarker = &marker
	}
	return d
}

// messageDetail converts a stored message. clientEventID is only passed for
// copies addressed to the author.
func messageDetail(e models.RoomEventMessage, clientEventID *int32) protocol.RoomEventMessageDetail {
	eventID := e.ID.String()
	updated := e.CreatedAt
	if e.EditedAt != nil {
		updated = *e.EditedAt
	}

	attachments := make([]protocol.ChatAttachmentDetail, 0, len(e.Attachments))
	for _, a := range e.Attachments {
		attachments = append(attachments, protocol.ChatAttachmentDetail{
			EventID:      eventID,
			AttachmentID: a.ID.String(),
			MimeType:     a.MimeType,
		})
	}
	reactions := make([]protocol.RoomEventReactionDetail, 0, len(e.Reactions))
	for _, r := range e.Reactions {
		reactions = append(reactions, reactionDetail(r))
	}

	return protocol.RoomEventMessageDetail{
		EventID:         eventID,
		RoomID:          e.RoomID.String(),
		SenderID:        e.UserID.String(),
		ClientEventID:   clientEventID,
		Version:         int32(e.Version),
		Attachment:      attachments,
		Reaction:        reactions,
		Content:         e.Content,
		CreateTimestamp: e.CreatedAt.UnixMilli(),
		UpdateTimestamp: updated.UnixMilli(),
	}
}

func reactionDetail(r models.RoomEventReaction) protocol.RoomEventReactionDetail {
	return protocol.RoomEventReactionDetail{
		EventID:   r.MessageID.String(),
		RoomID:    r.RoomID.String(),
		SenderID:  r.UserID.String(),
		Content:   r.Content,
		Timestamp: r.CreatedAt.UnixMilli(),
	}
}

func systemDetail(e models.RoomEventSystem) protocol.RoomEventSystemDetail {
	return protocol.RoomEventSystemDetail{
		EventID:         e.ID.String(),
		RoomID:          e.RoomID.String(),
		Version:         int32(e.Version),
		Content:         e.Content,
		CreateTimestamp: e.CreatedAt.UnixMilli(),
	}
}
