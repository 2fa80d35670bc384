package room

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/repository/catalog"
	"github.com/sharetube/watchparty/internal/repository/room"
	omitnilpointers "github.com/sharetube/watchparty/pkg/omit-nil-pointers"
)

type CreateRoomParams struct {
	SenderId      string
	Username      string
	Avatar        string
	CatalogItemId string
	EpisodeSlug   string
	Title         *string
	Description   *string
	IsPrivate     bool
	Password      string
	MaxUsers      *int
	Settings      *SettingsPatch
}

type CreateRoomResponse struct {
	Room    Room    `json:"room"`
	Episode Episode `json:"episode"`
}

func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.SenderId, validation.Required),
		validation.Field(&params.CatalogItemId, validation.Required),
		validation.Field(&params.EpisodeSlug, validation.Required),
		validation.Field(&params.Title, TitleRule...),
		validation.Field(&params.Description, DescriptionRule...),
		validation.Field(&params.Password, validation.When(params.IsPrivate, PasswordRule...)),
		validation.Field(&params.MaxUsers, s.maxUsersRule()...),
		validation.Field(&params.Settings),
	); err != nil {
		return CreateRoomResponse{}, invalidArgument(err)
	}

	if s.registry.isClosed() {
		return CreateRoomResponse{}, ErrShuttingDown
	}

	item, err := s.getCatalogItem(ctx, params.CatalogItemId)
	if err != nil {
		return CreateRoomResponse{}, err
	}

	now := s.now()
	rm := &Room{
		Id:            uuid.NewString(),
		CatalogItemId: item.Id,
		EpisodeId:     params.EpisodeSlug,
		Title:         fmt.Sprintf("%s - Watch together", item.Name),
		HostId:        params.SenderId,
		IsPrivate:     params.IsPrivate,
		MaxUsers:      s.membersLimit,
		Status:        StatusActive,
		Participants: []Participant{{
			UserId:   params.SenderId,
			Username: params.Username,
			Avatar:   params.Avatar,
			JoinedAt: now,
			IsHost:   true,
		}},
		VideoState: VideoState{LastUpdated: now},
		Settings:   params.Settings.apply(defaultSettings()),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if params.Title != nil {
		rm.Title = *params.Title
	}
	if params.Description != nil {
		rm.Description = *params.Description
	}
	if params.MaxUsers != nil {
		rm.MaxUsers = *params.MaxUsers
	}
	if params.IsPrivate {
		rm.password = params.Password
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.roomRepo.SetRoom(storeCtx, &room.SetRoomParams{
		Room:    rm.toRepo(),
		Player:  rm.VideoState.toRepo(),
		Members: membersToRepo(rm.Participants),
	}); err != nil {
		return CreateRoomResponse{}, storeError(err)
	}

	if err := s.registry.put(rm.Id, rm.clone()); err != nil {
		return CreateRoomResponse{}, err
	}

	s.logger.InfoContext(ctx, "room created", "room_id", rm.Id, "host_id", rm.HostId)
	return CreateRoomResponse{
		Room:    *rm,
		Episode: findEpisode(item, params.EpisodeSlug),
	}, nil
}

func (s *service) getCatalogItem(ctx context.Context, itemId string) (catalog.Item, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	item, err := s.catalogRepo.GetItem(ctx, itemId)
	if err != nil {
		if errors.Is(err, catalog.ErrItemNotFound) {
			return catalog.Item{}, ErrCatalogItemNotFound
		}
		return catalog.Item{}, storeError(err)
	}

	return item, nil
}

// findEpisode returns the episode of item with the given slug, or a
// placeholder named after the slug when the catalog has no such episode.
func findEpisode(item catalog.Item, slug string) Episode {
	for _, ep := range item.Episodes {
		if ep.Slug == slug {
			return Episode{
				Id:        ep.Id,
				Slug:      ep.Slug,
				Name:      ep.Name,
				Filename:  ep.Filename,
				LinkEmbed: ep.LinkEmbed,
				LinkM3U8:  ep.LinkM3U8,
			}
		}
	}

	return Episode{Id: slug, Slug: slug, Name: slug}
}

type GetRoomParams struct {
	SenderId string
	RoomId   string
}

type GetRoomResponse struct {
	Room    Room     `json:"room"`
	Episode *Episode `json:"episode"`
}

// GetRoom returns a snapshot of a live room with its playback state as
// of now. Private rooms are visible to their host and participants only.
func (s *service) GetRoom(ctx context.Context, params *GetRoomParams) (GetRoomResponse, error) {
	roomId := params.RoomId

	e, release, err := s.lockRoom(ctx, roomId)
	if err != nil {
		return GetRoomResponse{}, err
	}
	snapshot := e.room.clone()
	release()

	if snapshot.IsPrivate && snapshot.HostId != params.SenderId && snapshot.participantIndex(params.SenderId) == -1 {
		return GetRoomResponse{}, ErrNotMember
	}

	snapshot.VideoState = snapshot.VideoState.At(s.now())
	resp := GetRoomResponse{Room: *snapshot}

	item, err := s.getCatalogItem(ctx, snapshot.CatalogItemId)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to get catalog item", "room_id", roomId, "error", err)
		return resp, nil
	}

	episode := findEpisode(item, snapshot.EpisodeId)
	resp.Episode = &episode
	return resp, nil
}

type UpdateRoomParams struct {
	SenderId    string
	RoomId      string
	Title       *string
	Description *string
	MaxUsers    *int
	Settings    *SettingsPatch
}

func (s *service) UpdateRoom(ctx context.Context, params *UpdateRoomParams) (Room, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.Title, TitleRule...),
		validation.Field(&params.Description, DescriptionRule...),
		validation.Field(&params.MaxUsers, s.maxUsersRule()...),
		validation.Field(&params.Settings),
	); err != nil {
		return Room{}, invalidArgument(err)
	}

	e, release, err := s.lockRoom(ctx, params.RoomId)
	if err != nil {
		return Room{}, err
	}
	defer release()

	if e.room.HostId != params.SenderId {
		return Room{}, ErrNotHost
	}

	if params.MaxUsers != nil && *params.MaxUsers < len(e.room.Participants) {
		return Room{}, invalidArgument(errors.New("maxUsers is lower than the number of participants"))
	}

	fields := map[string]any{
		"title":       params.Title,
		"description": params.Description,
		"max_users":   params.MaxUsers,
	}
	if params.Settings != nil {
		fields["chat_enabled"] = params.Settings.ChatEnabled
		fields["non_host_control"] = params.Settings.NonHostControl
		fields["sync_tolerance"] = params.Settings.SyncTolerance
		fields["system_messages"] = params.Settings.SystemMessages
	}
	fields = omitnilpointers.OmitNilPointers(fields)

	if len(fields) == 0 {
		return *e.room.clone(), nil
	}

	next := e.room.clone()
	if params.Title != nil {
		next.Title = *params.Title
	}
	if params.Description != nil {
		next.Description = *params.Description
	}
	if params.MaxUsers != nil {
		next.MaxUsers = *params.MaxUsers
	}
	next.Settings = params.Settings.apply(next.Settings)
	next.UpdatedAt = s.now()

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.roomRepo.UpdateRoom(storeCtx, &room.UpdateRoomParams{
		RoomId:    next.Id,
		Fields:    fields,
		UpdatedAt: toMillis(next.UpdatedAt),
	}); err != nil {
		return Room{}, storeError(err)
	}

	e.room = next
	s.sendRoomUpdated(ctx, next)

	return *next.clone(), nil
}

type EndRoomParams struct {
	SenderId string
	RoomId   string
}

// EndRoom ends a room on behalf of its host. Connected participants are
// notified and detached from the room.
func (s *service) EndRoom(ctx context.Context, params *EndRoomParams) error {
	e, release, err := s.lockRoom(ctx, params.RoomId)
	if err != nil {
		return err
	}
	defer release()

	if e.room.HostId != params.SenderId {
		return ErrNotHost
	}

	if err := s.endRoom(ctx, e); err != nil {
		return err
	}

	s.sendRoomDeleted(ctx, params.RoomId, "The host has ended the room")
	s.connRepo.RemoveGroup(params.RoomId)

	s.logger.InfoContext(ctx, "room ended by host", "room_id", params.RoomId)
	return nil
}

// endRoom persists the end of the room held by e and drops it from the
// registry. Must be called holding e.sem.
func (s *service) endRoom(ctx context.Context, e *roomEntry) error {
	now := s.now()

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.roomRepo.EndRoom(storeCtx, &room.EndRoomParams{
		RoomId:     e.room.Id,
		EndedAt:    toMillis(now),
		Expiration: s.endedRoomTTL,
	}); err != nil {
		return storeError(err)
	}

	next := e.room.clone()
	next.Status = StatusEnded
	next.Participants = []Participant{}
	next.UpdatedAt = now
	e.room = next

	s.registry.remove(next.Id, e)
	return nil
}
