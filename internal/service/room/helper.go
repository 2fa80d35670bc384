package room

import (
	"context"
	"time"

	"github.com/sharetube/watchparty/internal/repository/message"
	"github.com/sharetube/watchparty/internal/repository/room"
)

func (s *service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms).UTC()
}

func (r *Room) clone() *Room {
	c := *r
	c.Participants = make([]Participant, len(r.Participants))
	copy(c.Participants, r.Participants)

	return &c
}

func (r *Room) participantIndex(userId string) int {
	for i, p := range r.Participants {
		if p.UserId == userId {
			return i
		}
	}

	return -1
}

func (r *Room) removeParticipant(i int) Participant {
	p := r.Participants[i]
	r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)

	return p
}

// ensureHost makes the host id point at a participant, promoting the
// first one when the host is gone, and keeps exactly one host flag set.
// It reports whether the host changed.
func (r *Room) ensureHost() bool {
	changed := false
	if len(r.Participants) > 0 && r.participantIndex(r.HostId) == -1 {
		r.HostId = r.Participants[0].UserId
		changed = true
	}

	for i := range r.Participants {
		r.Participants[i].IsHost = r.Participants[i].UserId == r.HostId
	}

	return changed
}

func (r *Room) host() (Participant, bool) {
	i := r.participantIndex(r.HostId)
	if i == -1 {
		return Participant{}, false
	}

	return r.Participants[i], true
}

func (r *Room) canControl(userId string) bool {
	return userId == r.HostId || r.Settings.NonHostControl
}

func (r *Room) toRepo() room.Room {
	return room.Room{
		Id:             r.Id,
		CatalogItemId:  r.CatalogItemId,
		EpisodeId:      r.EpisodeId,
		Title:          r.Title,
		Description:    r.Description,
		HostId:         r.HostId,
		IsPrivate:      r.IsPrivate,
		Password:       r.password,
		MaxUsers:       r.MaxUsers,
		Status:         r.Status,
		ChatEnabled:    r.Settings.ChatEnabled,
		NonHostControl: r.Settings.NonHostControl,
		SystemMessages: r.Settings.SystemMessages,
		SyncTolerance:  r.Settings.SyncTolerance,
		CreatedAt:      toMillis(r.CreatedAt),
		UpdatedAt:      toMillis(r.UpdatedAt),
	}
}

func roomFromRepo(rm room.Room, player room.Player) *Room {
	return &Room{
		Id:            rm.Id,
		CatalogItemId: rm.CatalogItemId,
		EpisodeId:     rm.EpisodeId,
		Title:         rm.Title,
		Description:   rm.Description,
		HostId:        rm.HostId,
		IsPrivate:     rm.IsPrivate,
		MaxUsers:      rm.MaxUsers,
		Status:        rm.Status,
		Participants:  []Participant{},
		VideoState:    videoStateFromRepo(player),
		Settings: Settings{
			ChatEnabled:    rm.ChatEnabled,
			NonHostControl: rm.NonHostControl,
			SyncTolerance:  rm.SyncTolerance,
			SystemMessages: rm.SystemMessages,
		},
		CreatedAt: fromMillis(rm.CreatedAt),
		UpdatedAt: fromMillis(rm.UpdatedAt),
		password:  rm.Password,
	}
}

func (v VideoState) toRepo() room.Player {
	return room.Player{
		CurrentTime: v.CurrentTime,
		IsPlaying:   v.IsPlaying,
		UpdatedAt:   toMillis(v.LastUpdated),
		UpdatedBy:   v.UpdatedBy,
	}
}

func videoStateFromRepo(p room.Player) VideoState {
	return VideoState{
		CurrentTime: p.CurrentTime,
		IsPlaying:   p.IsPlaying,
		LastUpdated: fromMillis(p.UpdatedAt),
		UpdatedBy:   p.UpdatedBy,
	}
}

func membersToRepo(participants []Participant) []room.Member {
	members := make([]room.Member, 0, len(participants))
	for _, p := range participants {
		members = append(members, room.Member{
			UserId:   p.UserId,
			Username: p.Username,
			Avatar:   p.Avatar,
			JoinedAt: toMillis(p.JoinedAt),
			IsHost:   p.IsHost,
		})
	}

	return members
}

func (p Participant) user() User {
	return User{
		UserId:   p.UserId,
		Username: p.Username,
		Avatar:   p.Avatar,
	}
}

func messageFromRepo(m message.Message, reactions []message.Reaction) Message {
	return Message{
		Id:             m.Id,
		RoomId:         m.RoomId,
		UserId:         m.UserId,
		Username:       m.Username,
		Avatar:         m.Avatar,
		Text:           m.Text,
		Kind:           m.Kind,
		VideoTimestamp: m.VideoTimestamp,
		ReplyTo:        m.ReplyTo,
		Reactions:      reactionsFromRepo(reactions),
		IsDeleted:      m.IsDeleted,
		CreatedAt:      fromMillis(m.CreatedAt),
	}
}

func reactionsFromRepo(reactions []message.Reaction) []Reaction {
	res := make([]Reaction, 0, len(reactions))
	for _, r := range reactions {
		res = append(res, Reaction{
			UserId:    r.UserId,
			Emoji:     r.Emoji,
			CreatedAt: fromMillis(r.CreatedAt),
		})
	}

	return res
}
