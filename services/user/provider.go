package user

import (
	"github.com/goaltrack/goaltrack/config"
	"github.com/goaltrack/goaltrack/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideUserService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	return NewService(cfg, db, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideUserService),
)
