package jwt

import (
	"github.com/goaltrack/goaltrack/config"
	"github.com/goaltrack/goaltrack/services/logging"
	"go.uber.org/fx"
)

func ProvideJWTService(cfg *config.Config, logger *logging.Service) *Service {
	return NewService(cfg, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideJWTService),
)
