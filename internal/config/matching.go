package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// MatchingConfig tunes a matching pass. It is reloaded at runtime.
type MatchingConfig struct {
	// Workers bounds how many orders are ranked in parallel.
	Workers int `mapstructure:"workers"`
	// MaxCandidates caps the ranked list per order; 0 keeps every candidate.
	MaxCandidates int `mapstructure:"maxCandidates"`
}

func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		Workers:       8,
		MaxCandidates: 0,
	}
}

type MatchingConfigHolder struct {
	current atomic.Value // holds MatchingConfig
}

// NewStaticMatchingConfigHolder returns a holder that never reloads.
func NewStaticMatchingConfigHolder(cfg MatchingConfig) *MatchingConfigHolder {
	holder := &MatchingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewMatchingConfigHolder() (*MatchingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("matching")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/dispatch")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMatchingConfig()
	v.SetDefault("matching.workers", defaults.Workers)
	v.SetDefault("matching.maxCandidates", defaults.MaxCandidates)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg MatchingConfig
	if err := v.UnmarshalKey("matching", &cfg); err != nil {
		return nil, err
	}
	if err := validateMatchingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticMatchingConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated MatchingConfig
		if err := v.UnmarshalKey("matching", &updated); err != nil {
			log.Printf("[matching-config] reload failed: %v", err)
			return
		}
		if err := validateMatchingConfig(updated); err != nil {
			log.Printf("[matching-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[matching-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *MatchingConfigHolder) Get() MatchingConfig {
	if h == nil {
		return DefaultMatchingConfig()
	}
	return h.current.Load().(MatchingConfig)
}

func validateMatchingConfig(cfg MatchingConfig) error {
	if cfg.Workers <= 0 {
		return errors.New("matching.workers must be positive")
	}
	if cfg.MaxCandidates < 0 {
		return errors.New("matching.maxCandidates cannot be negative")
	}
	return nil
}
