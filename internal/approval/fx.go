package approval

import (
	"github.com/sitedock/sitedock/internal/approval/repository"
	"github.com/sitedock/sitedock/internal/approval/service"
	"go.uber.org/fx"
)

var Module = fx.Module("approval.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
