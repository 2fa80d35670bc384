package room

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sharetube/watchparty/internal/repository/room"
)

const (
	ActionPlay  = "play"
	ActionPause = "pause"
)

type SetPlayingParams struct {
	ConnId      string
	SenderId    string
	Username    string
	RoomId      string
	Action      string
	CurrentTime *float64
}

// SetPlaying plays or pauses the video of a room. Without a position the
// playhead stays where it currently is.
func (s *service) SetPlaying(ctx context.Context, params *SetPlayingParams) (VideoState, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.Action, validation.Required, validation.In(ActionPlay, ActionPause)),
		validation.Field(&params.CurrentTime, PositionRule...),
	); err != nil {
		return VideoState{}, invalidArgument(err)
	}

	e, release, err := s.lockRoom(ctx, params.RoomId)
	if err != nil {
		return VideoState{}, err
	}
	defer release()

	if err := s.checkControl(ctx, e, params.SenderId); err != nil {
		return VideoState{}, err
	}

	now := s.now()
	state := e.room.VideoState.At(now)
	if params.CurrentTime != nil {
		state.CurrentTime = *params.CurrentTime
	}
	state.IsPlaying = params.Action == ActionPlay
	state.UpdatedBy = params.SenderId

	if err := s.savePlayer(ctx, e, state); err != nil {
		return VideoState{}, err
	}

	s.sendVideoStateChanged(ctx, params.RoomId, params.Action, state, params.Username)
	return state, nil
}

type SeekParams struct {
	ConnId      string
	SenderId    string
	Username    string
	RoomId      string
	CurrentTime float64
}

func (s *service) Seek(ctx context.Context, params *SeekParams) (VideoState, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.CurrentTime, PositionRule...),
	); err != nil {
		return VideoState{}, invalidArgument(err)
	}

	e, release, err := s.lockRoom(ctx, params.RoomId)
	if err != nil {
		return VideoState{}, err
	}
	defer release()

	if err := s.checkControl(ctx, e, params.SenderId); err != nil {
		return VideoState{}, err
	}

	state := e.room.VideoState
	state.CurrentTime = params.CurrentTime
	state.LastUpdated = s.now()
	state.UpdatedBy = params.SenderId

	if err := s.savePlayer(ctx, e, state); err != nil {
		return VideoState{}, err
	}

	s.sendVideoSeeked(ctx, params.RoomId, params.ConnId, state, params.Username)
	return state, nil
}

type SyncParams struct {
	ConnId   string
	SenderId string
	RoomId   string
}

type SyncResponse struct {
	VideoState VideoState `json:"videoState"`
	ServerTime int64      `json:"serverTime"`
}

// Sync replies to the connection with the playback state as of now.
func (s *service) Sync(ctx context.Context, params *SyncParams) (SyncResponse, error) {
	e, release, err := s.lockRoom(ctx, params.RoomId)
	if err != nil {
		return SyncResponse{}, err
	}
	defer release()

	if _, err := e.room.requireMember(params.SenderId); err != nil {
		return SyncResponse{}, err
	}

	now := s.now()
	resp := SyncResponse{
		VideoState: e.room.VideoState.At(now),
		ServerTime: now.UnixMilli(),
	}

	s.sendSyncResponse(ctx, params.ConnId, &resp)
	return resp, nil
}

// checkControl reports whether userId may control the video of the room
// held by e. Members with a dead connection are dropped first so that
// their authority passes on.
func (s *service) checkControl(ctx context.Context, e *roomEntry, userId string) error {
	if ended, err := s.reapStale(ctx, e); err != nil {
		return err
	} else if ended {
		return ErrRoomNotFound
	}

	if _, err := e.room.requireMember(userId); err != nil {
		return err
	}

	if !e.room.canControl(userId) {
		return ErrControlDenied
	}

	return nil
}

// savePlayer persists state and commits it to the room held by e.
func (s *service) savePlayer(ctx context.Context, e *roomEntry, state VideoState) error {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.roomRepo.SetPlayer(storeCtx, &room.SetPlayerParams{
		RoomId: e.room.Id,
		Player: state.toRepo(),
	}); err != nil {
		return storeError(err)
	}

	next := e.room.clone()
	next.VideoState = state
	next.UpdatedAt = state.LastUpdated
	e.room = next

	return nil
}
