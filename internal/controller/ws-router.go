package controller

import (
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

func (c *controller) getWSRouter() *wsrouter.WSRouter[*client] {
	mux := wsrouter.New[*client](c.validate.Struct)
	mux.Use(c.wsRequestIdMw(), c.loggerWSMw())

	// membership
	wsrouter.Handle(mux, "join-room", c.handleJoinRoom)
	wsrouter.Handle(mux, "leave-room", c.handleLeaveRoom)
	wsrouter.Handle(mux, "delete-room", c.handleDeleteRoom)

	// playback
	wsrouter.Handle(mux, "video-play", c.handleVideoPlay)
	wsrouter.Handle(mux, "video-pause", c.handleVideoPause)
	wsrouter.Handle(mux, "video-seek", c.handleVideoSeek)
	wsrouter.Handle(mux, "request-sync", c.handleRequestSync)

	// chat
	wsrouter.Handle(mux, "send-message", c.handleSendMessage)
	wsrouter.Handle(mux, "add-reaction", c.handleAddReaction)
	wsrouter.Handle(mux, "delete-message", c.handleDeleteMessage)

	return mux
}
