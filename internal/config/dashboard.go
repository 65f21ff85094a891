package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DashboardConfig tunes the analytics queries and the snapshot cache.
type DashboardConfig struct {
	// RevenueStatuses are the payment statuses counted as collected revenue.
	RevenueStatuses []string `mapstructure:"revenueStatuses"`
	// RetentionMaxMonths caps the retention curve. Zero keeps every month.
	RetentionMaxMonths int `mapstructure:"retentionMaxMonths"`
	// CacheTTL overrides DASHBOARD_CACHE_TTL when positive.
	CacheTTL time.Duration `mapstructure:"cacheTTL"`
}

func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		RevenueStatuses:    []string{"Success", "Recovered"},
		RetentionMaxMonths: 0,
	}
}

type DashboardConfigHolder struct {
	current atomic.Value // holds DashboardConfig
}

// NewStaticDashboardConfigHolder wraps cfg without any file watching.
func NewStaticDashboardConfigHolder(cfg DashboardConfig) *DashboardConfigHolder {
	holder := &DashboardConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// NewDashboardConfigHolder loads dashboard.yml. When watch is set the file is
// re-read on change and invalid updates are ignored.
func NewDashboardConfigHolder(path string, watch bool, log *zap.Logger) (*DashboardConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.dashboard")

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dashboard")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/subsight")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SUBSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultDashboardConfig()
	v.SetDefault("dashboard.revenueStatuses", defaults.RevenueStatuses)
	v.SetDefault("dashboard.retentionMaxMonths", defaults.RetentionMaxMonths)
	v.SetDefault("dashboard.cacheTTL", defaults.CacheTTL)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read dashboard config: %w", err)
		}
		fileLoaded = false
	}

	cfg, err := decodeDashboardConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticDashboardConfigHolder(cfg)

	if watch && fileLoaded {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeDashboardConfig(v)
			if err != nil {
				log.Warn("dashboard config reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("dashboard config reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *DashboardConfigHolder) Get() DashboardConfig {
	return h.current.Load().(DashboardConfig)
}

func decodeDashboardConfig(v *viper.Viper) (DashboardConfig, error) {
	var file struct {
		Dashboard DashboardConfig `mapstructure:"dashboard"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return DashboardConfig{}, fmt.Errorf("decode dashboard config: %w", err)
	}
	if err := validateDashboardConfig(file.Dashboard); err != nil {
		return DashboardConfig{}, err
	}
	return file.Dashboard, nil
}

func validateDashboardConfig(cfg DashboardConfig) error {
	if len(cfg.RevenueStatuses) == 0 {
		return errors.New("dashboard.revenueStatuses cannot be empty")
	}
	for _, status := range cfg.RevenueStatuses {
		switch status {
		case "Success", "Failed", "Recovered":
		default:
			return fmt.Errorf("dashboard.revenueStatuses: unknown status %q", status)
		}
	}
	if cfg.RetentionMaxMonths < 0 {
		return errors.New("dashboard.retentionMaxMonths cannot be negative")
	}
	if cfg.CacheTTL < 0 {
		return errors.New("dashboard.cacheTTL cannot be negative")
	}
	return nil
}
