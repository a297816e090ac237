package organization

import (
	"github.com/sitedock/sitedock/internal/organization/repository"
	"github.com/sitedock/sitedock/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
