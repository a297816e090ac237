package auth

import (
	"github.com/sitedock/sitedock/internal/auth/repository"
	"github.com/sitedock/sitedock/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewVerifier),
)
