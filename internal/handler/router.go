package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/z-chat/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/z-chat/backend/internal/middleware"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
)

// NewRouter wires HTTP routes to the session service. The chat routes are
// served both at the root and under /api, which is where the two frontends
// expect them.
func NewRouter(chatSvc *chatService.Service, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))
	r.Use(middlewarePkg.CORS(allowedOrigins))

	chatHandler := chat.New(chatSvc)
	wsHandler := ws.New(chatSvc, allowedOrigins)

	register := func(router chi.Router) {
		chatHandler.RegisterRoutes(router)
		wsHandler.RegisterRoutes(router)
	}

	register(r)
	r.Route("/api", func(api chi.Router) {
		register(api)
	})

	return r
}
