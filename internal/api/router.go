package api

import (
	"context"
	"net/http"

	"chatroom/internal/chat"
	"chatroom/internal/clock"
	"chatroom/internal/middleware"
	"chatroom/internal/presence"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Deps struct {
	Presence    *presence.Engine
	Chat        *chat.Engine
	Clock       clock.Clock
	Limiters    *middleware.Limiters
	Metrics     http.Handler
	Health      func(context.Context) error
	CORSOrigins []string
}

func NewRouter(d Deps) http.Handler {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}

	mux := http.NewServeMux()

	mux.Handle("POST /participants", JoinHandler(d.Presence, d.Clock))
	mux.Handle("GET /participants", ListParticipantsHandler(d.Presence))

	withUser := middleware.RequireUser
	post := http.Handler(PostMessageHandler(d.Chat, d.Clock))
	if d.Limiters != nil {
		post = middleware.RateLimit(d.Limiters)(post)
	}

	mux.Handle("GET /messages", withUser(ListMessagesHandler(d.Chat)))
	mux.Handle("POST /messages", withUser(post))
	mux.Handle("PUT /messages/{id}", withUser(EditMessageHandler(d.Chat, d.Clock)))
	mux.Handle("DELETE /messages/{id}", withUser(DeleteMessageHandler(d.Chat)))
	mux.Handle("POST /status", withUser(HeartbeatHandler(d.Presence, d.Clock)))

	mux.Handle("GET /healthz", HealthHandler(d.Health))
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.UserHeader},
	})

	return otelhttp.NewHandler(c.Handler(mux), "chatroom")
}
