package room

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/oklog/ulid/v2"
	"github.com/sharetube/watchparty/internal/repository/message"
	"github.com/sharetube/watchparty/internal/repository/room"
)

type SendMessageParams struct {
	ConnId         string
	SenderId       string
	Username       string
	Avatar         string
	RoomId         string
	Text           string
	Kind           string
	VideoTimestamp *float64
	ReplyTo        string
}

func (s *service) SendMessage(ctx context.Context, params *SendMessageParams) (Message, error) {
	params.Text = strings.TrimSpace(params.Text)
	if params.Kind == "" {
		params.Kind = message.KindMessage
	}

	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.Text, MessageRule...),
		validation.Field(&params.Kind, validation.In(message.KindMessage, message.KindEmoji, message.KindSticker)),
		validation.Field(&params.VideoTimestamp, PositionRule...),
	); err != nil {
		return Message{}, invalidArgument(err)
	}

	e, release, err := s.lockRoom(ctx, params.RoomId)
	if err != nil {
		return Message{}, err
	}
	defer release()

	if _, err := e.room.requireMember(params.SenderId); err != nil {
		return Message{}, err
	}

	if !e.room.Settings.ChatEnabled {
		return Message{}, ErrChatDisabled
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if params.ReplyTo != "" {
		parent, err := s.getMessage(storeCtx, params.ReplyTo)
		if err != nil {
			return Message{}, err
		}

		if parent.RoomId != params.RoomId {
			return Message{}, ErrMessageNotFound
		}
	}

	msg := message.Message{
		Id:        ulid.Make().String(),
		RoomId:    params.RoomId,
		UserId:    params.SenderId,
		Username:  params.Username,
		Avatar:    params.Avatar,
		Text:      params.Text,
		Kind:      params.Kind,
		ReplyTo:   params.ReplyTo,
		CreatedAt: toMillis(s.now()),
	}
	if params.VideoTimestamp != nil {
		msg.VideoTimestamp = *params.VideoTimestamp
	}

	if err := s.messageRepo.SetMessage(storeCtx, &msg); err != nil {
		return Message{}, storeError(err)
	}

	res := messageFromRepo(msg, nil)
	s.sendNewMessage(ctx, params.RoomId, &res)

	return res, nil
}

// postSystemMessage records and broadcasts a system notice. Must be
// called holding the room lock. Failures are logged only.
func (s *service) postSystemMessage(ctx context.Context, roomId, text string) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	msg := message.Message{
		Id:        ulid.Make().String(),
		RoomId:    roomId,
		Username:  "system",
		Text:      text,
		Kind:      message.KindSystem,
		CreatedAt: toMillis(s.now()),
	}

	if err := s.messageRepo.SetMessage(storeCtx, &msg); err != nil {
		s.logger.WarnContext(ctx, "failed to save system message", "room_id", roomId, "error", err)
		return
	}

	res := messageFromRepo(msg, nil)
	s.sendNewMessage(ctx, roomId, &res)
}

func (s *service) getMessage(ctx context.Context, messageId string) (message.Message, error) {
	msg, err := s.messageRepo.GetMessage(ctx, messageId)
	if err != nil {
		if errors.Is(err, message.ErrMessageNotFound) {
			return message.Message{}, ErrMessageNotFound
		}
		return message.Message{}, storeError(err)
	}

	if msg.IsDeleted {
		return message.Message{}, ErrMessageNotFound
	}

	return msg, nil
}

type ReactParams struct {
	ConnId    string
	SenderId  string
	MessageId string
	Emoji     string
}

type ReactResponse struct {
	MessageId string     `json:"messageId"`
	Reactions []Reaction `json:"reactions"`
}

// React toggles the reaction of the sender on a message: the same emoji
// again removes it, another emoji replaces it.
func (s *service) React(ctx context.Context, params *ReactParams) (ReactResponse, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.MessageId, validation.Required),
		validation.Field(&params.Emoji, EmojiRule...),
	); err != nil {
		return ReactResponse{}, invalidArgument(err)
	}

	lookupCtx, cancel := s.storeCtx(ctx)
	msg, err := s.getMessage(lookupCtx, params.MessageId)
	cancel()
	if err != nil {
		return ReactResponse{}, err
	}

	e, release, err := s.lockRoom(ctx, msg.RoomId)
	if err != nil {
		return ReactResponse{}, err
	}
	defer release()

	if _, err := e.room.requireMember(params.SenderId); err != nil {
		return ReactResponse{}, err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	reactions, err := s.messageRepo.GetReactions(storeCtx, params.MessageId)
	if err != nil {
		return ReactResponse{}, storeError(err)
	}

	next := make([]message.Reaction, 0, len(reactions)+1)
	var previous *message.Reaction
	for i := range reactions {
		if reactions[i].UserId == params.SenderId {
			previous = &reactions[i]
			continue
		}
		next = append(next, reactions[i])
	}

	if previous != nil && previous.Emoji == params.Emoji {
		err = s.messageRepo.RemoveReaction(storeCtx, &message.RemoveReactionParams{
			MessageId: params.MessageId,
			UserId:    params.SenderId,
		})
	} else {
		reaction := message.Reaction{
			UserId:    params.SenderId,
			Emoji:     params.Emoji,
			CreatedAt: toMillis(s.now()),
		}
		next = append(next, reaction)
		err = s.messageRepo.SetReaction(storeCtx, &message.SetReactionParams{
			MessageId: params.MessageId,
			Reaction:  reaction,
		})
	}
	if err != nil {
		return ReactResponse{}, storeError(err)
	}

	resp := ReactResponse{
		MessageId: params.MessageId,
		Reactions: reactionsFromRepo(next),
	}
	s.sendReactionUpdated(ctx, msg.RoomId, &resp)

	return resp, nil
}

type DeleteMessageParams struct {
	ConnId    string
	SenderId  string
	MessageId string
}

// DeleteMessage soft-deletes a message. Only its author or the host of
// its room may delete it.
func (s *service) DeleteMessage(ctx context.Context, params *DeleteMessageParams) error {
	lookupCtx, cancel := s.storeCtx(ctx)
	msg, err := s.getMessage(lookupCtx, params.MessageId)
	cancel()
	if err != nil {
		return err
	}

	e, release, err := s.lockRoom(ctx, msg.RoomId)
	if err != nil {
		return err
	}
	defer release()

	if msg.UserId != params.SenderId && e.room.HostId != params.SenderId {
		return ErrNotAuthor
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.messageRepo.DeleteMessage(storeCtx, &message.DeleteMessageParams{
		MessageId: params.MessageId,
		DeletedAt: toMillis(s.now()),
	}); err != nil {
		if errors.Is(err, message.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		return storeError(err)
	}

	s.sendMessageDeleted(ctx, msg.RoomId, params.MessageId)
	return nil
}

type GetHistoryParams struct {
	RoomId string
	Page   int
	Limit  int
}

type GetHistoryResponse struct {
	Messages   []Message `json:"messages"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	Total      int       `json:"total"`
	TotalPages int       `json:"totalPages"`
}

// GetHistory returns a page of the visible messages of a room, active or
// ended. Page 1 holds the newest messages; each page is ordered oldest
// first.
func (s *service) GetHistory(ctx context.Context, params *GetHistoryParams) (GetHistoryResponse, error) {
	if params.Page == 0 {
		params.Page = 1
	}
	if params.Limit == 0 {
		params.Limit = s.historyPageSize
	}

	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.RoomId, validation.Required),
		validation.Field(&params.Page, validation.Min(1)),
		validation.Field(&params.Limit, validation.Min(1), validation.Max(s.historyPageMax)),
	); err != nil {
		return GetHistoryResponse{}, invalidArgument(err)
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.roomRepo.GetRoom(storeCtx, params.RoomId); err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return GetHistoryResponse{}, ErrRoomNotFound
		}
		return GetHistoryResponse{}, storeError(err)
	}

	page, err := s.messageRepo.GetMessages(storeCtx, &message.GetMessagesParams{
		RoomId: params.RoomId,
		Offset: (params.Page - 1) * params.Limit,
		Limit:  params.Limit,
	})
	if err != nil {
		return GetHistoryResponse{}, storeError(err)
	}

	messages := make([]Message, 0, len(page.Messages))
	for _, m := range page.Messages {
		reactions, err := s.messageRepo.GetReactions(storeCtx, m.Id)
		if err != nil {
			return GetHistoryResponse{}, storeError(err)
		}
		messages = append(messages, messageFromRepo(m, reactions))
	}

	return GetHistoryResponse{
		Messages:   messages,
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      page.Total,
		TotalPages: (page.Total + params.Limit - 1) / params.Limit,
	}, nil
}
