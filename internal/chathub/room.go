package chathub

import (
	"log"
	"sputnikchat/backend/internal/config"
	"sputnikchat/backend/internal/models"
	"sputnikchat/backend/internal/protocol"
	"sputnikchat/backend/internal/storage"
	"time"

	"github.com/google/uuid"
)

type clientTerminated struct {
	client Ref
}

type presenceEntry struct {
	client Ref
	userID uuid.UUID
	cancel chan struct{}
}

// RoomUnit owns the roster and the online presence of one room.
type RoomUnit struct {
	*process

	id     uuid.UUID
	title  string
	avatar *string

	storage storage.Storage
	clients UserDeliverer

	members  []models.RoomMember
	presence []presenceEntry
}

// NewRoomUnit starts a room. The roster is loaded from storage before the
// first message is handled.
func NewRoomUnit(id uuid.UUID, title string, avatar *string, s storage.Storage, clients UserDeliverer) *RoomUnit {
	r := &RoomUnit{
		process: newProcess("room " + id.String()),
		id:      id,
		title:   title,
		avatar:  avatar,
		storage: s,
		clients: clients,
	}
	go r.run(r.loadRoster, r.receive, r.unwatchAll)
	return r
}

func (r *RoomUnit) ID() uuid.UUID {
	return r.id
}

func (r *RoomUnit) loadRoster() {
	members, err := r.storage.GetRoomMembers(r.id)
	if err != nil {
		log.Printf("ERROR: Room %s failed to load roster: %v", r.id, err)
		return
	}
	r.members = r.members[:0]
	for _, m := range members {
		if isActiveStatus(m.MemberStatus) {
			r.members = append(r.members, m)
		}
	}
}

func (r *RoomUnit) receive(msg any) bool {
	switch m := msg.(type) {
	case JoinPresence:
		r.handleJoin(m)
	case ListRoom:
		r.handleListRoom(m)
	case SyncRoom:
		r.handleSync(m)
	case RoomCommand:
		r.handleCommand(m)
	case clientTerminated:
		r.handleTerminated(m.client)
	default:
		log.Printf("WARNING: Room %s got unhandled message %T", r.id, msg)
	}
	return true
}

func (r *RoomUnit) handleCommand(m RoomCommand) {
	entry, ok := r.presenceOf(m.Client)
	if !ok {
		log.Printf("WARNING: Room %s dropped %T from a connection that is not present", r.id, m.Request)
		return
	}

	switch req := m.Request.(type) {
	case protocol.RoomEventMessage:
		r.postMessage(entry, req)
	case protocol.RoomEventReaction:
		r.postReaction(entry, req)
	case protocol.SetRoomReadMarker:
		r.setReadMarker(entry, req)
	case protocol.InviteRoomMember:
		r.inviteMembers(entry, req)
	case protocol.RemoveRoomMember:
		r.removeMembers(entry, req)
	default:
		log.Printf("WARNING: Room %s got unhandled request %T", r.id, req)
	}
}

func (r *RoomUnit) handleJoin(m JoinPresence) {
	if r.memberIndex(m.UserID) < 0 {
		// The roster may have been changed by another node.
		r.loadRoster()
		if r.memberIndex(m.UserID) < 0 {
			log.Printf("WARNING: Room %s rejected join of non member %s", r.id, m.UserID)
			return
		}
	}

	if _, ok := r.presenceOf(m.Client); !ok {
		firstConnection := !r.isOnline(m.UserID)
		r.presence = append(r.presence, presenceEntry{
			client: m.Client,
			userID: m.UserID,
			cancel: r.watch(m.Client),
		})
		if firstConnection {
			r.setOnline(m.UserID, true)
		}
	}

	r.pushState()
}

func (r *RoomUnit) handleListRoom(m ListRoom) {
	entry, ok := r.presenceOf(m.Client)
	if !ok {
		log.Printf("WARNING: Room %s ignored list from a connection that is not present", r.id)
		return
	}
	m.ReplyTo.Tell(r.detailFor(entry.userID, r.loadUnreads()))
}

// SyncQuery returns the event query a room runs for a sync filter. found is
// false when the request carries no filter for the room.
func SyncQuery(filter protocol.SyncRoomFilter, found bool) storage.EventQuery {
	query := storage.EventQuery{
		EventType: protocol.EventTypeAll,
		Limit:     config.DefaultSyncEvents,
		Since:     config.MinSyncDate,
		Order:     protocol.OrderNewest,
	}
	if !found {
		return query
	}

	query.EventType = filter.EventFilter
	switch {
	case filter.EventLimit > config.MaxSyncEvents:
		query.Limit = config.MaxSyncEvents
	case filter.EventLimit > 0:
		query.Limit = int(filter.EventLimit)
	}
	if filter.SinceFilter != nil {
		query.Since = time.UnixMilli(filter.SinceFilter.SinceTime).UTC()
		query.Order = filter.SinceFilter.Order
	}
	return query
}

func (r *RoomUnit) handleSync(m SyncRoom) {
	batch := SyncBatch{RoomID: r.id}
	defer func() { m.ReplyTo.Tell(batch) }()

	// Without a filter for this room the defaults apply.
	filter, found := m.Request.FilterFor(r.id)
	events, err := r.storage.GetRoomEvents(r.id, SyncQuery(filter, found))
	if err != nil {
		return
	}

	batch.Messages = make([]protocol.RoomEventMessageDetail, 0, len(events.Messages))
	for _, e := range events.Messages {
		var clientEventID *int32
		// only the author sees its own client event id
		if e.UserID == m.UserID {
			id := e.ClientEventID
			clientEventID = &id
		}
		batch.Messages = append(batch.Messages, messageDetail(e, clientEventID))
	}
	batch.Systems = make([]protocol.RoomEventSystemDetail, 0, len(events.Systems))
	for _, e := range events.Systems {
		batch.Systems = append(batch.Systems, systemDetail(e))
	}
}

func (r *RoomUnit) postMessage(author presenceEntry, req protocol.RoomEventMessage) {
	event := &models.RoomEventMessage{
		RoomID:        r.id,
		UserID:        author.userID,
		ClientEventID: req.ClientEventID,
		Version:       int16(req.Version),
		Content:       req.Content,
	}
	if err := r.storage.AddRoomEventMessage(event, req.AttachmentIDs); err != nil {
		return
	}

	// Only the posting connection gets the request id. The author's other
	// sessions get a broadcast like everyone else.
	for _, p := range r.presence {
		resp := protocol.RoomEventMessageResponse{ID: protocol.BroadcastID}
		if p.client == author.client {
			resp.ID = req.ID
			resp.Detail = messageDetail(*event, &req.ClientEventID)
		} else {
			resp.Detail = messageDetail(*event, nil)
		}
		p.client.Tell(Push{Response: resp})
	}
}

func (r *RoomUnit) postReaction(author presenceEntry, req protocol.RoomEventReaction) {
	reaction := &models.RoomEventReaction{
		MessageID: req.MessageID,
		RoomID:    r.id,
		UserID:    author.userID,
		Content:   req.Content,
	}
	if err := r.storage.AddRoomEventReaction(reaction); err != nil {
		return
	}

	detail := reactionDetail(*reaction)
	for _, p := range r.presence {
		resp := protocol.RoomEventReactionResponse{ID: protocol.BroadcastID, Detail: detail}
		if p.client == author.client {
			resp.ID = req.ID
		}
		p.client.Tell(Push{Response: resp})
	}
}

func (r *RoomUnit) setReadMarker(entry presenceEntry, req protocol.SetRoomReadMarker) {
	marker := time.UnixMilli(req.ReadMarker).UTC()
	updated, err := r.storage.SetMemberReadMarker(r.id, entry.userID, marker)
	if err != nil || !updated {
		return
	}
	if i := r.memberIndex(entry.userID); i >= 0 {
		r.members[i].LastReadMarker = &marker
	}
	r.pushState()
}

func (r *RoomUnit) inviteMembers(inviter presenceEntry, req protocol.InviteRoomMember) {
	var candidates []uuid.UUID
	for _, id := range protocol.ParseIDs(req.MemberIDs) {
		// already on the roster
		if r.memberIndex(id) < 0 {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return
	}

	added, err := r.storage.AddRoomMembers(r.id, inviter.userID, candidates)
	if err != nil || len(added) == 0 {
		return
	}
	r.members = append(r.members, added...)

	unreads := r.pushState()
	// Invitees without a connection here learn about the room through
	// their other sessions.
	for _, m := range added {
		if r.isOnline(m.UserID) {
			continue
		}
		detail := r.detailFor(m.UserID, unreads)
		r.clients.DeliverToUsers(UserDelivery{
			UserIDs:   []uuid.UUID{m.UserID},
			RoomState: &detail,
		})
	}
}

func (r *RoomUnit) removeMembers(actor presenceEntry, req protocol.RemoveRoomMember) {
	statuses := make(map[uuid.UUID]models.MemberStatus)
	for _, id := range protocol.ParseIDs(req.MemberIDs) {
		if r.memberIndex(id) >= 0 {
			statuses[id] = models.MemberStatusLeft
		}
	}
	if len(statuses) == 0 {
		return
	}

	if _, err := r.storage.SetRoomMemberStatus(r.id, actor.userID, statuses); err != nil {
		return
	}
	for i := range r.members {
		if _, ok := statuses[r.members[i].UserID]; ok {
			r.members[i].MemberStatus = models.MemberStatusLeft
		}
	}

	// Departing members get this last snapshot too.
	r.pushState()

	kept := r.members[:0]
	for _, m := range r.members {
		if _, ok := statuses[m.UserID]; !ok {
			kept = append(kept, m)
		}
	}
	r.members = kept

	present := r.presence[:0]
	for _, p := range r.presence {
		if _, ok := statuses[p.userID]; ok {
			close(p.cancel)
			continue
		}
		present = append(present, p)
	}
	r.presence = present
	for userID := range statuses {
		r.setOnline(userID, false)
	}
}

func (r *RoomUnit) handleTerminated(client Ref) {
	entry, ok := r.presenceOf(client)
	if !ok {
		return
	}

	present := r.presence[:0]
	for _, p := range r.presence {
		if p.client != client {
			present = append(present, p)
		}
	}
	r.presence = present
	if !r.isOnline(entry.userID) {
		r.setOnline(entry.userID, false)
	}

	r.pushState()
}

// pushState sends a fresh snapshot to every present connection. Unread
// counters are loaded once for the whole push and returned for reuse.
func (r *RoomUnit) pushState() map[uuid.UUID]models.MemberUnread {
	unreads := r.loadUnreads()
	for _, p := range r.presence {
		p.client.Tell(Push{Response: protocol.RoomStateChanged{
			ID:     protocol.BroadcastID,
			Detail: r.detailFor(p.userID, unreads),
		}})
	}
	return unreads
}

func (r *RoomUnit) loadUnreads() map[uuid.UUID]models.MemberUnread {
	unreads := make(map[uuid.UUID]models.MemberUnread)
	rows, err := r.storage.GetMemberUnreads(r.id)
	if err != nil {
		return unreads
	}
	for _, row := range rows {
		unreads[row.UserID] = row
	}
	return unreads
}

// detailFor builds the snapshot of the room as seen by target.
func (r *RoomUnit) detailFor(target uuid.UUID, unreads map[uuid.UUID]models.MemberUnread) protocol.RoomDetail {
	members := make([]protocol.RoomMemberDetail, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, memberDetail(m, r.isOnline(m.UserID)))
	}
	own := unreads[target]
	return protocol.RoomDetail{
		RoomID:                  r.id,
		Title:                   r.title,
		Avatar:                  r.avatar,
		Members:                 members,
		EventMessageUnreadCount: own.EventMessageUnread,
		EventSystemUnreadCount:  own.EventSystemUnread,
	}
}

func (r *RoomUnit) memberIndex(userID uuid.UUID) int {
	for i, m := range r.members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

func (r *RoomUnit) presenceOf(client Ref) (presenceEntry, bool) {
	for _, p := range r.presence {
		if p.client == client {
			return p, true
		}
	}
	return presenceEntry{}, false
}

func (r *RoomUnit) isOnline(userID uuid.UUID) bool {
	for _, p := range r.presence {
		if p.userID == userID {
			return true
		}
	}
	return false
}

func (r *RoomUnit) setOnline(userID uuid.UUID, online bool) {
	if err := r.storage.SetMemberOnline(r.id, userID, online); err != nil {
		log.Printf("WARNING: Room %s failed to mirror presence of %s: %v", r.id, userID, err)
	}
}

// watch reports the termination of client back to the room until cancel is
// closed.
func (r *RoomUnit) watch(client Ref) chan struct{} {
	cancel := make(chan struct{})
	go func() {
		select {
		case <-client.Done():
			r.Tell(clientTerminated{client: client})
		case <-cancel:
		case <-r.Done():
		}
	}()
	return cancel
}

func (r *RoomUnit) unwatchAll() {
	for _, p := range r.presence {
		close(p.cancel)
	}
	r.presence = nil
}
