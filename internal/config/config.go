package config

import (
	"fmt"
	"sync"

	"tradepilot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads a YAML config file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	applyDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	return &cfg, nil
}

// Watcher re-reads the config file on change and publishes the refreshed
// instrument list. Only the instrument list is hot-reloadable; everything
// else requires a restart.
type Watcher struct {
	v  *viper.Viper
	mu sync.Mutex
	fn func([]string)
}

// Watch starts watching path and invokes onInstruments with the new
// normalized instrument list whenever the file changes and still parses.
func Watch(path string, onInstruments func([]string)) (*Watcher, error) {
	if onInstruments == nil {
		return nil, fmt.Errorf("config watch: callback cannot be nil")
	}
	v := viper.New()
	v.SetConfigFile(path)
	applyDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	w := &Watcher{v: v, fn: onInstruments}
	v.OnConfigChange(func(e fsnotify.Event) {
		w.mu.Lock()
		defer w.mu.Unlock()
		cfg, err := decode(v)
		if err != nil {
			logger.Warnf("config reload ignored: %v", err)
			return
		}
		if err := validate(cfg); err != nil {
			logger.Warnf("config reload ignored: %v", err)
			return
		}
		logger.Infof("config changed (%s), instruments=%v", e.Name, cfg.Trading.NormalizedInstruments())
		w.fn(cfg.Trading.NormalizedInstruments())
	})
	v.WatchConfig()
	return w, nil
}
