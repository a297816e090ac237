package project

import (
	"github.com/sitedock/sitedock/internal/project/repository"
	"github.com/sitedock/sitedock/internal/project/service"
	"go.uber.org/fx"
)

var Module = fx.Module("project.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
