package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goaltrack/goaltrack/config"
	"github.com/goaltrack/goaltrack/services/logging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger *logging.Service
}

func New(cfg *config.Config, logger *logging.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(logging.RequestLogger(logger))

	return &Server{
		echo:   e,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Server) Start() {
	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info("starting server", zap.String("addr", addr))

	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		s.logger.Error("server stopped", zap.Error(err))
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) Group(prefix string) *echo.Group {
	return s.echo.Group(prefix)
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}
