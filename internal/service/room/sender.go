package room

import (
	"context"
	"encoding/json"

	"github.com/sharetube/watchparty/internal/repository/connection"
)

// Output is the envelope of every event sent to clients.
type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (s *service) encode(ctx context.Context, out *Output) ([]byte, bool) {
	data, err := json.Marshal(out)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode event", "type", out.Type, "error", err)
		return nil, false
	}

	return data, true
}

func (s *service) deliver(ctx context.Context, client connection.Client, data []byte) {
	if !client.Enqueue(data) {
		s.logger.WarnContext(ctx, "client is too slow, closing connection", "conn_id", client.Id())
		client.Close()
	}
}

func (s *service) sendToConn(ctx context.Context, connId string, out *Output) {
	client, err := s.connRepo.Get(connId)
	if err != nil {
		return
	}

	if data, ok := s.encode(ctx, out); ok {
		s.deliver(ctx, client, data)
	}
}

// sendToRoom sends out to every connection in the room group except the
// ones listed.
func (s *service) sendToRoom(ctx context.Context, roomId string, out *Output, except ...string) {
	data, ok := s.encode(ctx, out)
	if !ok {
		return
	}

	for _, client := range s.connRepo.GetGroup(roomId) {
		skip := false
		for _, id := range except {
			if client.Id() == id {
				skip = true
				break
			}
		}

		if !skip {
			s.deliver(ctx, client, data)
		}
	}
}

func (s *service) sendRoomJoined(ctx context.Context, connId string, resp *JoinRoomResponse) {
	s.sendToConn(ctx, connId, &Output{
		Type:    "room-joined",
		Payload: resp,
	})
}

func (s *service) sendUserJoined(ctx context.Context, roomId, connId string, p Participant, userCount int) {
	s.sendToRoom(ctx, roomId, &Output{
		Type: "user-joined",
		Payload: map[string]any{
			"user":      p.user(),
			"userCount": userCount,
		},
	}, connId)
}

func (s *service) sendUserLeft(ctx context.Context, roomId string, p Participant, userCount int) {
	s.sendToRoom(ctx, roomId, &Output{
		Type: "user-left",
		Payload: map[string]any{
			"userId":    p.UserId,
			"username":  p.Username,
			"userCount": userCount,
		},
	})
}

func (s *service) sendHostChanged(ctx context.Context, rm *Room) {
	host, ok := rm.host()
	if !ok {
		return
	}

	s.sendToRoom(ctx, rm.Id, &Output{
		Type: "host-changed",
		Payload: map[string]any{
			"newHost": host.user(),
		},
	})
}

func (s *service) sendVideoStateChanged(ctx context.Context, roomId, action string, state VideoState, username string) {
	s.sendToRoom(ctx, roomId, &Output{
		Type: "video-state-changed",
		Payload: map[string]any{
			"action":      action,
			"currentTime": state.CurrentTime,
			"isPlaying":   state.IsPlaying,
			"updatedBy":   username,
			"timestamp":   state.LastUpdated.UnixMilli(),
		},
	})
}

func (s *service) sendVideoSeeked(ctx context.Context, roomId, connId string, state VideoState, username string) {
	s.sendToRoom(ctx, roomId, &Output{
		Type: "video-seeked",
		Payload: map[string]any{
			"currentTime": state.CurrentTime,
			"updatedBy":   username,
			"timestamp":   state.LastUpdated.UnixMilli(),
		},
	}, connId)
}

func (s *service) sendSyncResponse(ctx context.Context, connId string, resp *SyncResponse) {
	s.sendToConn(ctx, connId, &Output{
		Type:    "sync-response",
		Payload: resp,
	})
}

func (s *service) sendNewMessage(ctx context.Context, roomId string, msg *Message) {
	s.sendToRoom(ctx, roomId, &Output{
		Type:    "new-message",
		Payload: msg,
	})
}

func (s *service) sendReactionUpdated(ctx context.Context, roomId string, resp *ReactResponse) {
	s.sendToRoom(ctx, roomId, &Output{
		Type:    "reaction-updated",
		Payload: resp,
	})
}

func (s *service) sendMessageDeleted(ctx context.Context, roomId, messageId string) {
	s.sendToRoom(ctx, roomId, &Output{
		Type: "message-deleted",
		Payload: map[string]any{
			"messageId": messageId,
		},
	})
}

func (s *service) sendRoomUpdated(ctx context.Context, rm *Room) {
	s.sendToRoom(ctx, rm.Id, &Output{
		Type: "room-updated",
		Payload: map[string]any{
			"room": rm,
		},
	})
}

func (s *service) sendRoomDeleted(ctx context.Context, roomId, reason string) {
	s.sendToRoom(ctx, roomId, &Output{
		Type: "room-deleted",
		Payload: map[string]any{
			"message": reason,
		},
	})
}
