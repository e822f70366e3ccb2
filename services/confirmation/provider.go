package confirmation

import (
	"github.com/goaltrack/goaltrack/config"
	"github.com/goaltrack/goaltrack/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideConfirmationService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	service := NewService(cfg, db, logger)

	if cfg.Auth.CleanupInterval > 0 {
		service.StartCleanupWorker()
	}

	return service
}

var Module = fx.Options(
	fx.Provide(ProvideConfirmationService),
)
