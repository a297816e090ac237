package session

import (
	"go.uber.org/fx"

	"github.com/sitedock/sitedock/internal/session/service"
)

var Module = fx.Module("session.service",
	fx.Provide(service.NewResolver),
)
