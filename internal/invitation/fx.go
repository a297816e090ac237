package invitation

import (
	"github.com/sitedock/sitedock/internal/invitation/domain"
	"github.com/sitedock/sitedock/internal/invitation/repository"
	"github.com/sitedock/sitedock/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(domain.NewTokenGenerator),
	fx.Provide(service.NewService),
)
