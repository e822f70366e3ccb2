package handlers

import (
	"github.com/goaltrack/goaltrack/server"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewAuthHandler),
	fx.Invoke(func(h *AuthHandler, srv *server.Server) {
		h.RegisterRoutes(srv)
	}),
)
