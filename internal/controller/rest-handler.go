package controller

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/rest"
)

type settingsRequest struct {
	AllowChat             *bool    `json:"allowChat"`
	AllowUserControl      *bool    `json:"allowUserControl"`
	SyncTolerance         *float64 `json:"syncTolerance" validate:"omitempty,gte=0,lte=30"`
	SystemMessagesEnabled *bool    `json:"systemMessagesEnabled"`
}

func (s *settingsRequest) patch() *room.SettingsPatch {
	if s == nil {
		return nil
	}

	return &room.SettingsPatch{
		ChatEnabled:    s.AllowChat,
		NonHostControl: s.AllowUserControl,
		SyncTolerance:  s.SyncTolerance,
		SystemMessages: s.SystemMessagesEnabled,
	}
}

type createRoomRequest struct {
	MovieId     string           `json:"movieId" validate:"required"`
	EpisodeId   string           `json:"episodeId" validate:"required"`
	Title       *string          `json:"title" validate:"omitempty,min=1,max=100"`
	Description *string          `json:"description" validate:"omitempty,max=500"`
	IsPrivate   bool             `json:"isPrivate"`
	Password    string           `json:"password" validate:"required_if=IsPrivate true,max=32"`
	MaxUsers    *int             `json:"maxUsers" validate:"omitempty,gte=1"`
	Settings    *settingsRequest `json:"settings"`
}

func (c *controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := rest.ReadJSON(w, r, &req); err != nil {
		c.writeError(w, r, err)
		return
	}

	if err := c.validate.Struct(req); err != nil {
		c.writeError(w, r, err)
		return
	}

	identity := c.getIdentityFromCtx(r.Context())
	resp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		SenderId:      identity.UserId,
		Username:      identity.Username,
		Avatar:        identity.Avatar,
		CatalogItemId: req.MovieId,
		EpisodeSlug:   req.EpisodeId,
		Title:         req.Title,
		Description:   req.Description,
		IsPrivate:     req.IsPrivate,
		Password:      req.Password,
		MaxUsers:      req.MaxUsers,
		Settings:      req.Settings.patch(),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, resp)
}

func (c *controller) getRoom(w http.ResponseWriter, r *http.Request) {
	resp, err := c.roomService.GetRoom(r.Context(), &room.GetRoomParams{
		SenderId: c.getIdentityFromCtx(r.Context()).UserId,
		RoomId:   chi.URLParam(r, "roomId"),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, resp)
}

func (c *controller) listRooms(w http.ResponseWriter, r *http.Request) {
	page, err := c.getIntQueryParam(r, "page")
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	limit, err := c.getIntQueryParam(r, "limit")
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	resp, err := c.roomService.ListRooms(r.Context(), &room.ListRoomsParams{
		Page:          page,
		Limit:         limit,
		CatalogItemId: query.Get("movieId"),
		Search:        query.Get("search"),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, resp)
}

func (c *controller) listMyRooms(w http.ResponseWriter, r *http.Request) {
	resp, err := c.roomService.ListMyRooms(r.Context(), &room.ListMyRoomsParams{
		SenderId: c.getIdentityFromCtx(r.Context()).UserId,
		Type:     r.URL.Query().Get("type"),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, resp)
}

type updateRoomRequest struct {
	Title       *string          `json:"title" validate:"omitempty,min=1,max=100"`
	Description *string          `json:"description" validate:"omitempty,max=500"`
	MaxUsers    *int             `json:"maxUsers" validate:"omitempty,gte=1"`
	Settings    *settingsRequest `json:"settings"`
}

func (c *controller) updateRoom(w http.ResponseWriter, r *http.Request) {
	var req updateRoomRequest
	if err := rest.ReadJSON(w, r, &req); err != nil {
		c.writeError(w, r, err)
		return
	}

	if err := c.validate.Struct(req); err != nil {
		c.writeError(w, r, err)
		return
	}

	rm, err := c.roomService.UpdateRoom(r.Context(), &room.UpdateRoomParams{
		SenderId:    c.getIdentityFromCtx(r.Context()).UserId,
		RoomId:      chi.URLParam(r, "roomId"),
		Title:       req.Title,
		Description: req.Description,
		MaxUsers:    req.MaxUsers,
		Settings:    req.Settings.patch(),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, map[string]any{"room": rm})
}

func (c *controller) endRoom(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.EndRoom(r.Context(), &room.EndRoomParams{
		SenderId: c.getIdentityFromCtx(r.Context()).UserId,
		RoomId:   chi.URLParam(r, "roomId"),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *controller) getMessages(w http.ResponseWriter, r *http.Request) {
	page, err := c.getIntQueryParam(r, "page")
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	limit, err := c.getIntQueryParam(r, "limit")
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	resp, err := c.roomService.GetHistory(r.Context(), &room.GetHistoryParams{
		RoomId: chi.URLParam(r, "roomId"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, resp)
}

// getIntQueryParam returns 0 when the parameter is absent.
func (c *controller) getIntQueryParam(r *http.Request, key string) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, &room.Error{Kind: room.ErrInvalidArgument, Message: fmt.Sprintf("%s must be a positive integer", key)}
	}

	return n, nil
}

func (c *controller) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
