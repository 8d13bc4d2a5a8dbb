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

// RollupConfig tunes the populate engine.
type RollupConfig struct {
	BatchSize   int           `mapstructure:"batchSize"`
	MaxRetries  uint64        `mapstructure:"maxRetries"`
	LockEnabled bool          `mapstructure:"lockEnabled"`
	LockTTL     time.Duration `mapstructure:"lockTTL"`
}

func DefaultRollupConfig() RollupConfig {
	return RollupConfig{
		BatchSize:   int(getenvInt64("ROLLUP_BATCH_SIZE", 100)),
		MaxRetries:  uint64(getenvInt64("ROLLUP_MAX_RETRIES", 3)),
		LockEnabled: getenvBool("ROLLUP_LOCK_ENABLED", true),
		LockTTL:     time.Duration(getenvInt64("ROLLUP_LOCK_TTL_SECONDS", 300)) * time.Second,
	}
}

type RollupConfigHolder struct {
	current atomic.Value // holds RollupConfig
}

// NewRollupConfigHolder reads the rollup section of telcousage.yml, falling
// back to environment defaults, and reloads it when the file changes.
func NewRollupConfigHolder(log *zap.Logger) (*RollupConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("telcousage")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/telcousage")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TELCOUSAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRollupConfig()
	v.SetDefault("rollup.batchSize", defaults.BatchSize)
	v.SetDefault("rollup.maxRetries", defaults.MaxRetries)
	v.SetDefault("rollup.lockEnabled", defaults.LockEnabled)
	v.SetDefault("rollup.lockTTL", defaults.LockTTL)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg RollupConfig
	if err := v.UnmarshalKey("rollup", &cfg); err != nil {
		return nil, err
	}
	if err := validateRollupConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticRollupConfig(cfg)
	if !fileLoaded {
		return holder, nil
	}

	log = log.Named("config.rollup")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		holder.reload(v, e.Name, log)
	})

	return holder, nil
}

// reload swaps in the rollup section of v. Invalid sections keep the
// previous configuration.
func (h *RollupConfigHolder) reload(v *viper.Viper, source string, log *zap.Logger) {
	var updated RollupConfig
	if err := v.UnmarshalKey("rollup", &updated); err != nil {
		log.Warn("rollup config reload failed", zap.String("source", source), zap.Error(err))
		return
	}
	if err := validateRollupConfig(updated); err != nil {
		log.Warn("invalid rollup config ignored", zap.String("source", source), zap.Error(err))
		return
	}
	h.current.Store(updated)
	log.Info("rollup config reloaded", zap.String("source", source))
}

// NewStaticRollupConfig wraps a fixed configuration, used by tests and the CLI.
func NewStaticRollupConfig(cfg RollupConfig) *RollupConfigHolder {
	holder := &RollupConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *RollupConfigHolder) Get() RollupConfig {
	return h.current.Load().(RollupConfig)
}

func validateRollupConfig(cfg RollupConfig) error {
	if cfg.BatchSize <= 0 {
		return errors.New("rollup.batchSize must be positive")
	}
	if cfg.LockEnabled && cfg.LockTTL <= 0 {
		return errors.New("rollup.lockTTL must be positive when locking is enabled")
	}
	return nil
}
