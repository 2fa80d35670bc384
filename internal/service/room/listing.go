package room

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sharetube/watchparty/internal/repository/catalog"
	"github.com/sharetube/watchparty/internal/repository/room"
)

const roomsPageSize = 20

const (
	MyRoomsHosting = room.UserRoomsHosting
	MyRoomsJoined  = room.UserRoomsJoined
)

// RoomSummary is the listing view of a room.
type RoomSummary struct {
	Id            string    `json:"roomId"`
	CatalogItemId string    `json:"movieId"`
	EpisodeId     string    `json:"episodeId"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	HostId        string    `json:"hostId"`
	IsPrivate     bool      `json:"isPrivate"`
	MaxUsers      int       `json:"maxUsers"`
	Status        string    `json:"status"`
	UserCount     int       `json:"userCount"`
	CreatedAt     time.Time `json:"createdAt"`
	Episode       *Episode  `json:"episode"`
}

type ListRoomsParams struct {
	Page          int
	Limit         int
	CatalogItemId string
	Search        string
}

type ListRoomsResponse struct {
	Rooms      []RoomSummary `json:"rooms"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	Total      int           `json:"total"`
	TotalPages int           `json:"totalPages"`
}

// ListRooms pages through public rooms, active or ended, newest first.
func (s *service) ListRooms(ctx context.Context, params *ListRoomsParams) (ListRoomsResponse, error) {
	if params.Page == 0 {
		params.Page = 1
	}
	if params.Limit == 0 {
		params.Limit = roomsPageSize
	}

	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.Page, validation.Min(1)),
		validation.Field(&params.Limit, validation.Min(1), validation.Max(s.historyPageMax)),
		validation.Field(&params.Search, validation.RuneLength(0, 100)),
	); err != nil {
		return ListRoomsResponse{}, invalidArgument(err)
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	resp, err := s.roomRepo.ListPublicRooms(storeCtx, &room.ListPublicRoomsParams{
		CatalogItemId: params.CatalogItemId,
		Search:        params.Search,
		Offset:        (params.Page - 1) * params.Limit,
		Limit:         params.Limit,
	})
	if err != nil {
		return ListRoomsResponse{}, storeError(err)
	}

	return ListRoomsResponse{
		Rooms:      s.summarize(ctx, resp.Rooms),
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      resp.Total,
		TotalPages: (resp.Total + params.Limit - 1) / params.Limit,
	}, nil
}

type ListMyRoomsParams struct {
	SenderId string
	Type     string
}

type ListMyRoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

// ListMyRooms returns the active rooms the sender is hosting or has
// joined, newest first.
func (s *service) ListMyRooms(ctx context.Context, params *ListMyRoomsParams) (ListMyRoomsResponse, error) {
	if params.Type == "" {
		params.Type = MyRoomsHosting
	}

	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.SenderId, validation.Required),
		validation.Field(&params.Type, validation.In(MyRoomsHosting, MyRoomsJoined)),
	); err != nil {
		return ListMyRoomsResponse{}, invalidArgument(err)
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	rooms, err := s.roomRepo.ListUserRooms(storeCtx, &room.ListUserRoomsParams{
		UserId: params.SenderId,
		Kind:   params.Type,
	})
	if err != nil {
		return ListMyRoomsResponse{}, storeError(err)
	}

	return ListMyRoomsResponse{Rooms: s.summarize(ctx, rooms)}, nil
}

// summarize builds listing views, resolving each episode once per
// catalog item. Catalog failures leave the episode empty.
func (s *service) summarize(ctx context.Context, listings []room.RoomListing) []RoomSummary {
	items := make(map[string]*catalog.Item)
	summaries := make([]RoomSummary, 0, len(listings))

	for _, l := range listings {
		summary := RoomSummary{
			Id:            l.Room.Id,
			CatalogItemId: l.Room.CatalogItemId,
			EpisodeId:     l.Room.EpisodeId,
			Title:         l.Room.Title,
			Description:   l.Room.Description,
			HostId:        l.Room.HostId,
			IsPrivate:     l.Room.IsPrivate,
			MaxUsers:      l.Room.MaxUsers,
			Status:        l.Room.Status,
			UserCount:     l.MemberCount,
			CreatedAt:     fromMillis(l.Room.CreatedAt),
		}

		item, ok := items[l.Room.CatalogItemId]
		if !ok {
			got, err := s.getCatalogItem(ctx, l.Room.CatalogItemId)
			if err != nil {
				s.logger.WarnContext(ctx, "failed to get catalog item", "room_id", l.Room.Id, "error", err)
			} else {
				item = &got
			}
			items[l.Room.CatalogItemId] = item
		}

		if item != nil {
			episode := findEpisode(*item, l.Room.EpisodeId)
			summary.Episode = &episode
		}

		summaries = append(summaries, summary)
	}

	return summaries
}
