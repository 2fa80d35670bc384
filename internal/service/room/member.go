package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sharetube/watchparty/internal/repository/connection"
	"github.com/sharetube/watchparty/internal/repository/room"
)

const (
	leaveAttempts       = 4
	defaultLeaveBackoff = 250 * time.Millisecond
)

// Connect registers a live client so that events can reach it.
func (s *service) Connect(ctx context.Context, client connection.Client) error {
	if err := s.connRepo.Add(client); err != nil {
		return fmt.Errorf("failed to add connection: %w", err)
	}

	return nil
}

type JoinRoomParams struct {
	ConnId   string
	SenderId string
	Username string
	Avatar   string
	RoomId   string
	Password string
}

type JoinRoomResponse struct {
	Room       Room       `json:"room"`
	VideoState VideoState `json:"videoState"`
	UserCount  int        `json:"userCount"`
}

func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	// a connection is in one room at a time
	if prev := s.connRepo.GetRoomId(params.ConnId); prev != "" && prev != params.RoomId {
		if err := s.LeaveRoom(ctx, &LeaveRoomParams{
			ConnId:   params.ConnId,
			SenderId: params.SenderId,
			RoomId:   prev,
		}); err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to leave previous room: %w", err)
		}
	}

	e, release, err := s.lockRoom(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, err
	}
	defer release()

	isHost := params.SenderId == e.room.HostId

	if e.room.IsPrivate && !isHost && params.Password != e.room.password {
		return JoinRoomResponse{}, ErrWrongPassword
	}

	next := e.room.clone()
	var stale []Participant
	for _, p := range s.dropStale(next) {
		// a user coming back from a dropped connection is not leaving
		if p.UserId != params.SenderId {
			stale = append(stale, p)
		}
	}

	existing := next.participantIndex(params.SenderId)
	if existing == -1 && len(next.Participants) >= next.MaxUsers {
		return JoinRoomResponse{}, ErrRoomFull
	}

	now := s.now()

	var staleConnId string
	if existing != -1 {
		staleConnId = next.removeParticipant(existing).connId
	}

	next.Participants = append(next.Participants, Participant{
		UserId:   params.SenderId,
		Username: params.Username,
		Avatar:   params.Avatar,
		JoinedAt: now,
		IsHost:   isHost,
		connId:   params.ConnId,
	})
	hostChanged := next.ensureHost()
	next.UpdatedAt = now

	if err := s.saveMembers(ctx, next); err != nil {
		return JoinRoomResponse{}, err
	}
	e.room = next

	if staleConnId != "" && staleConnId != params.ConnId {
		s.connRepo.Leave(next.Id, staleConnId)
	}
	if err := s.connRepo.Join(next.Id, params.ConnId); err != nil && !errors.Is(err, connection.ErrNotFound) {
		return JoinRoomResponse{}, err
	}

	joined := next.Participants[len(next.Participants)-1]
	resp := JoinRoomResponse{
		Room:       *next.clone(),
		VideoState: next.VideoState.At(now),
		UserCount:  len(next.Participants),
	}
	resp.Room.VideoState = resp.VideoState

	s.announceLeft(ctx, next, stale, false)
	s.sendRoomJoined(ctx, params.ConnId, &resp)
	s.sendUserJoined(ctx, next.Id, params.ConnId, joined, resp.UserCount)
	if hostChanged {
		s.sendHostChanged(ctx, next)
	}
	if next.Settings.SystemMessages {
		s.postSystemMessage(ctx, next.Id, fmt.Sprintf("%s joined the room", params.Username))
	}

	s.logger.InfoContext(ctx, "member joined", "room_id", next.Id, "user_id", params.SenderId, "user_count", resp.UserCount)
	return resp, nil
}

type LeaveRoomParams struct {
	ConnId   string
	SenderId string
	RoomId   string
}

// LeaveRoom removes the participant that joined from the connection. It
// is a no-op when the user is not in the room or has since joined it
// from another connection.
func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) error {
	e, release, err := s.lockRoom(ctx, params.RoomId)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.connRepo.Leave(params.RoomId, params.ConnId)
			return nil
		}
		return err
	}
	defer release()

	if ended, err := s.reapStale(ctx, e); err != nil {
		return err
	} else if ended {
		s.connRepo.Leave(params.RoomId, params.ConnId)
		return nil
	}

	i := e.room.participantIndex(params.SenderId)
	if i == -1 || e.room.Participants[i].connId != params.ConnId {
		s.connRepo.Leave(params.RoomId, params.ConnId)
		return nil
	}

	next := e.room.clone()
	left := next.removeParticipant(i)

	if len(next.Participants) == 0 {
		if err := s.endRoom(ctx, e); err != nil {
			return err
		}
		s.connRepo.RemoveGroup(params.RoomId)
		s.logger.InfoContext(ctx, "last member left, room ended", "room_id", params.RoomId)
		return nil
	}

	hostChanged := next.ensureHost()
	next.UpdatedAt = s.now()

	if err := s.saveMembers(ctx, next); err != nil {
		return err
	}
	e.room = next

	s.connRepo.Leave(params.RoomId, params.ConnId)

	s.announceLeft(ctx, next, []Participant{left}, hostChanged)
	return nil
}

// dropStale removes from r the participants whose connection is gone,
// which happens when the leave that runs on disconnect could not be
// persisted. It returns the removed participants.
func (s *service) dropStale(r *Room) []Participant {
	var stale []Participant
	kept := r.Participants[:0]
	for _, p := range r.Participants {
		if p.connId != "" {
			if _, err := s.connRepo.Get(p.connId); err != nil {
				stale = append(stale, p)
				continue
			}
		}
		kept = append(kept, p)
	}
	r.Participants = kept

	return stale
}

// reapStale drops the participants of the room held by e whose
// connection is gone and persists the result. It reports whether that
// left the room empty, in which case the room is ended. Must be called
// holding e.sem.
func (s *service) reapStale(ctx context.Context, e *roomEntry) (bool, error) {
	next := e.room.clone()
	stale := s.dropStale(next)
	if len(stale) == 0 {
		return false, nil
	}

	if len(next.Participants) == 0 {
		if err := s.endRoom(ctx, e); err != nil {
			return false, err
		}
		s.connRepo.RemoveGroup(next.Id)
		s.logger.InfoContext(ctx, "only stale members left, room ended", "room_id", next.Id)
		return true, nil
	}

	hostChanged := next.ensureHost()
	next.UpdatedAt = s.now()

	if err := s.saveMembers(ctx, next); err != nil {
		return false, err
	}
	e.room = next

	s.announceLeft(ctx, next, stale, hostChanged)
	return false, nil
}

// announceLeft notifies the room that the given participants are gone.
func (s *service) announceLeft(ctx context.Context, rm *Room, left []Participant, hostChanged bool) {
	userCount := len(rm.Participants)
	for _, p := range left {
		s.sendUserLeft(ctx, rm.Id, p, userCount)
		if rm.Settings.SystemMessages {
			s.postSystemMessage(ctx, rm.Id, fmt.Sprintf("%s left the room", p.Username))
		}
		s.logger.InfoContext(ctx, "member left", "room_id", rm.Id, "user_id", p.UserId, "user_count", userCount)
	}

	if hostChanged {
		s.sendHostChanged(ctx, rm)
	}
}

type DisconnectParams struct {
	ConnId   string
	SenderId string
}

// Disconnect runs the leave path for a closed connection and forgets it.
func (s *service) Disconnect(ctx context.Context, params *DisconnectParams) error {
	defer s.connRepo.Remove(params.ConnId)

	roomId := s.connRepo.GetRoomId(params.ConnId)
	if roomId == "" {
		return nil
	}

	leave := &LeaveRoomParams{
		ConnId:   params.ConnId,
		SenderId: params.SenderId,
		RoomId:   roomId,
	}

	for attempt := 1; ; attempt++ {
		err := s.LeaveRoom(ctx, leave)
		if err == nil || errors.Is(err, ErrShuttingDown) {
			return nil
		}

		if !errors.Is(err, ErrTransient) || attempt == leaveAttempts {
			return fmt.Errorf("failed to leave room on disconnect: %w", err)
		}

		s.logger.WarnContext(ctx, "leave on disconnect failed, retrying", "room_id", roomId, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to leave room on disconnect: %w", ctx.Err())
		case <-time.After(s.leaveBackoff * time.Duration(attempt)):
		}
	}
}

func (s *service) saveMembers(ctx context.Context, next *Room) error {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.roomRepo.SetMembers(storeCtx, &room.SetMembersParams{
		RoomId:    next.Id,
		HostId:    next.HostId,
		Members:   membersToRepo(next.Participants),
		UpdatedAt: toMillis(next.UpdatedAt),
	}); err != nil {
		return storeError(err)
	}

	return nil
}

// requireMember returns the participant of userId or ErrNotMember.
func (r *Room) requireMember(userId string) (Participant, error) {
	i := r.participantIndex(userId)
	if i == -1 {
		return Participant{}, ErrNotMember
	}

	return r.Participants[i], nil
}
