package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// WorkflowConfig carries the tunable knobs of the invitation and approval
// workflows. It is loaded from workflow.yml and hot-reloaded on change so
// operators can adjust TTLs without a restart.
type WorkflowConfig struct {
	InvitationTTL        time.Duration `mapstructure:"invitationTTL"`
	InvitationMaxResends int           `mapstructure:"invitationMaxResends"`
	TokenRatePerMinute   int           `mapstructure:"tokenRatePerMinute"`
	TokenBurst           int           `mapstructure:"tokenBurst"`
}

func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		InvitationTTL:        7 * 24 * time.Hour,
		InvitationMaxResends: 5,
		TokenRatePerMinute:   30,
		TokenBurst:           10,
	}
}

type WorkflowConfigHolder struct {
	current atomic.Value // holds WorkflowConfig
}

func NewWorkflowConfigHolder(log *zap.Logger) (*WorkflowConfigHolder, error) {
	log = log.Named("workflow-config")

	v := viper.New()

	v.SetConfigName("workflow")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/sitedock")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SITEDOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultWorkflowConfig()
	v.SetDefault("workflow.invitationTTL", defaults.InvitationTTL)
	v.SetDefault("workflow.invitationMaxResends", defaults.InvitationMaxResends)
	v.SetDefault("workflow.tokenRatePerMinute", defaults.TokenRatePerMinute)
	v.SetDefault("workflow.tokenBurst", defaults.TokenBurst)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg WorkflowConfig
	if err := v.UnmarshalKey("workflow", &cfg); err != nil {
		return nil, err
	}
	if err := validateWorkflowConfig(cfg); err != nil {
		return nil, err
	}

	holder := &WorkflowConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated WorkflowConfig
		if err := v.UnmarshalKey("workflow", &updated); err != nil {
			log.Warn("reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := validateWorkflowConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("workflow config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticWorkflowConfig returns a holder pinned to cfg, with no file
// watching. Used by tests and tools that do not read workflow.yml.
func NewStaticWorkflowConfig(cfg WorkflowConfig) *WorkflowConfigHolder {
	holder := &WorkflowConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *WorkflowConfigHolder) Current() WorkflowConfig {
	return h.current.Load().(WorkflowConfig)
}

func validateWorkflowConfig(cfg WorkflowConfig) error {
	if cfg.InvitationTTL <= 0 {
		return errors.New("workflow: invitationTTL must be positive")
	}
	if cfg.InvitationMaxResends < 0 {
		return errors.New("workflow: invitationMaxResends must not be negative")
	}
	if cfg.TokenRatePerMinute <= 0 || cfg.TokenBurst <= 0 {
		return errors.New("workflow: token rate limit must be positive")
	}
	return nil
}
