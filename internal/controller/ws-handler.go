package controller

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/rest"
)

// serveWS authenticates the request, upgrades it and serves the
// connection until it is closed. The leave path runs once on the way out.
func (c *controller) serveWS(w http.ResponseWriter, r *http.Request) {
	token := rest.BearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	identity, err := c.authService.Authenticate(r.Context(), token)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	cl := newClient(conn, identity, &c.cfg, c.logger)

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("conn_id", cl.id))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", identity.UserId))

	if err := c.roomService.Connect(ctx, cl); err != nil {
		c.logger.WarnContext(ctx, "failed to connect client", "error", err)
		conn.Close()
		return
	}
	defer c.disconnect(ctx, cl)

	c.logger.InfoContext(ctx, "client connected")

	go cl.writePump()
	cl.readPump(ctx, c.handleMessage)
}

func (c *controller) disconnect(ctx context.Context, cl *client) {
	cl.Close()

	if err := c.roomService.Disconnect(context.WithoutCancel(ctx), &room.DisconnectParams{
		ConnId:   cl.id,
		SenderId: cl.identity.UserId,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect client", "error", err)
		return
	}

	c.logger.InfoContext(ctx, "client disconnected")
}

func (c *controller) handleMessage(ctx context.Context, cl *client, data []byte) {
	if err := c.wsRouter.ServeMessage(ctx, cl, data); err != nil {
		c.sendError(ctx, cl, err)
	}
}

type JoinRoomInput struct {
	RoomId   string `json:"roomId" validate:"required"`
	Password string `json:"password" validate:"max=32"`
}

func (c *controller) handleJoinRoom(ctx context.Context, cl *client, input JoinRoomInput) error {
	if _, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		ConnId:   cl.id,
		SenderId: cl.identity.UserId,
		Username: cl.identity.Username,
		Avatar:   cl.identity.Avatar,
		RoomId:   input.RoomId,
		Password: input.Password,
	}); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	return nil
}

type RoomInput struct {
	RoomId string `json:"roomId" validate:"required"`
}

func (c *controller) handleLeaveRoom(ctx context.Context, cl *client, input RoomInput) error {
	if err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		ConnId:   cl.id,
		SenderId: cl.identity.UserId,
		RoomId:   input.RoomId,
	}); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	return nil
}

func (c *controller) handleDeleteRoom(ctx context.Context, cl *client, input RoomInput) error {
	if err := c.roomService.EndRoom(ctx, &room.EndRoomParams{
		SenderId: cl.identity.UserId,
		RoomId:   input.RoomId,
	}); err != nil {
		return fmt.Errorf("failed to end room: %w", err)
	}

	return nil
}

type PlaybackInput struct {
	RoomId      string   `json:"roomId" validate:"required"`
	CurrentTime *float64 `json:"currentTime" validate:"omitempty,gte=0"`
}

func (c *controller) handleVideoPlay(ctx context.Context, cl *client, input PlaybackInput) error {
	return c.setPlaying(ctx, cl, room.ActionPlay, input)
}

func (c *controller) handleVideoPause(ctx context.Context, cl *client, input PlaybackInput) error {
	return c.setPlaying(ctx, cl, room.ActionPause, input)
}

func (c *controller) setPlaying(ctx context.Context, cl *client, action string, input PlaybackInput) error {
	if _, err := c.roomService.SetPlaying(ctx, &room.SetPlayingParams{
		ConnId:      cl.id,
		SenderId:    cl.identity.UserId,
		Username:    cl.identity.Username,
		RoomId:      input.RoomId,
		Action:      action,
		CurrentTime: input.CurrentTime,
	}); err != nil {
		return fmt.Errorf("failed to %s video: %w", action, err)
	}

	return nil
}

type SeekInput struct {
	RoomId      string   `json:"roomId" validate:"required"`
	CurrentTime *float64 `json:"currentTime" validate:"required,gte=0"`
}

func (c *controller) handleVideoSeek(ctx context.Context, cl *client, input SeekInput) error {
	if _, err := c.roomService.Seek(ctx, &room.SeekParams{
		ConnId:      cl.id,
		SenderId:    cl.identity.UserId,
		Username:    cl.identity.Username,
		RoomId:      input.RoomId,
		CurrentTime: *input.CurrentTime,
	}); err != nil {
		return fmt.Errorf("failed to seek video: %w", err)
	}

	return nil
}

func (c *controller) handleRequestSync(ctx context.Context, cl *client, input RoomInput) error {
	if _, err := c.roomService.Sync(ctx, &room.SyncParams{
		ConnId:   cl.id,
		SenderId: cl.identity.UserId,
		RoomId:   input.RoomId,
	}); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}

	return nil
}

type SendMessageInput struct {
	RoomId         string   `json:"roomId" validate:"required"`
	Message        string   `json:"message" validate:"required,max=500"`
	Type           string   `json:"type" validate:"omitempty,oneof=message emoji sticker"`
	VideoTimestamp *float64 `json:"videoTimestamp" validate:"omitempty,gte=0"`
	ReplyTo        string   `json:"replyTo"`
}

func (c *controller) handleSendMessage(ctx context.Context, cl *client, input SendMessageInput) error {
	if _, err := c.roomService.SendMessage(ctx, &room.SendMessageParams{
		ConnId:         cl.id,
		SenderId:       cl.identity.UserId,
		Username:       cl.identity.Username,
		Avatar:         cl.identity.Avatar,
		RoomId:         input.RoomId,
		Text:           input.Message,
		Kind:           input.Type,
		VideoTimestamp: input.VideoTimestamp,
		ReplyTo:        input.ReplyTo,
	}); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

type AddReactionInput struct {
	MessageId string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required,max=32"`
}

func (c *controller) handleAddReaction(ctx context.Context, cl *client, input AddReactionInput) error {
	if _, err := c.roomService.React(ctx, &room.ReactParams{
		ConnId:    cl.id,
		SenderId:  cl.identity.UserId,
		MessageId: input.MessageId,
		Emoji:     input.Emoji,
	}); err != nil {
		return fmt.Errorf("failed to react: %w", err)
	}

	return nil
}

type DeleteMessageInput struct {
	MessageId string `json:"messageId" validate:"required"`
}

func (c *controller) handleDeleteMessage(ctx context.Context, cl *client, input DeleteMessageInput) error {
	if err := c.roomService.DeleteMessage(ctx, &room.DeleteMessageParams{
		ConnId:    cl.id,
		SenderId:  cl.identity.UserId,
		MessageId: input.MessageId,
	}); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}
