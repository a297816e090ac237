package migration

import (
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	approvaldomain "github.com/sitedock/sitedock/internal/approval/domain"
	authdomain "github.com/sitedock/sitedock/internal/auth/domain"
	"github.com/sitedock/sitedock/internal/config"
	invitationdomain "github.com/sitedock/sitedock/internal/invitation/domain"
	orgdomain "github.com/sitedock/sitedock/internal/organization/domain"
	projectdomain "github.com/sitedock/sitedock/internal/project/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if strings.EqualFold(cfg.DBType, "postgres") {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// Versioned migrations are written for Postgres; other dialects are
		// development targets and use the schema derived from the models.
		return conn.AutoMigrate(
			&authdomain.User{},
			&orgdomain.Organization{},
			&orgdomain.Membership{},
			&projectdomain.Project{},
			&projectdomain.Membership{},
			&invitationdomain.Invitation{},
			&approvaldomain.Approval{},
			&approvaldomain.Approver{},
		)
	}),
)
