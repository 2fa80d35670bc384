package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c *controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: c.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", c.healthz)
		r.Get("/ws", c.serveWS)

		r.Route("/rooms", func(r chi.Router) {
			r.Use(c.authMw)

			r.Get("/", c.listRooms)
			r.Post("/", c.createRoom)
			r.Get("/my-rooms", c.listMyRooms)
			r.Route("/{roomId}", func(r chi.Router) {
				r.Get("/", c.getRoom)
				r.Patch("/", c.updateRoom)
				r.Delete("/", c.endRoom)
				r.Get("/messages", c.getMessages)
			})
		})
	})

	return r
}
