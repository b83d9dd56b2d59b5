// Package settings holds the global provisioning settings every item
// resolution chain ends at. Values come from built-in defaults, an optional
// YAML or TOML file, and runtime overrides.
package settings

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/papapumpkin/bootforge/internal/telemetry"
)

// defaults mirrors a stock provisioning server configuration.
var defaults = map[string]any{
	"cache_enabled":               true,
	"default_ownership":           []string{"admin"},
	"server":                      "127.0.0.1",
	"next_server_v4":              "127.0.0.1",
	"next_server_v6":              "::1",
	"proxy_url_int":               "",
	"proxy_url_ext":               "",
	"default_virt_bridge":         "xenbr0",
	"default_virt_file_size":      5.0,
	"default_virt_ram":            512,
	"default_virt_type":           "kvm",
	"default_virt_auto_boot":      true,
	"default_virt_cpus":           1,
	"enable_ipxe":                 false,
	"enable_menu":                 true,
	"default_name_servers":        []string{},
	"default_name_servers_search": []string{},
	"default_autoinstall":         "default.ks",
	"default_boot_loaders":        []string{"grub", "pxe", "ipxe"},
	"kernel_options":              map[string]any{},
}

// Config configures a Settings.
type Config struct {
	// Path is an optional settings file; its extension selects the format.
	Path   string
	Logger *logrus.Logger
	Events *telemetry.Emitter
}

// Settings is a viper-backed settings provider. It is safe for concurrent
// use.
type Settings struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string
	log  *logrus.Logger
	evts *telemetry.Emitter

	subMu sync.Mutex
	subs  []func()
}

// New builds settings from the defaults and, if cfg.Path is set, the file.
func New(cfg Config) (*Settings, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	s := &Settings{v: viper.New(), log: cfg.Logger, evts: cfg.Events}
	for k, v := range defaults {
		s.v.SetDefault(k, v)
	}
	if cfg.Path != "" {
		if err := s.Load(cfg.Path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Load reads the settings file at path, replacing previously loaded file
// values. Subscribers are notified.
func (s *Settings) Load(path string) error {
	s.mu.Lock()
	s.v.SetConfigFile(path)
	err := s.v.ReadInConfig()
	if err == nil {
		s.path = path
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("settings: read %s: %w", path, err)
	}
	s.log.WithFields(logrus.Fields{"path": path}).Debug("settings loaded")
	s.notify("load")
	return nil
}

// Get returns the named setting and whether it has a value.
func (s *Settings) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.v.Get(name)
	return v, v != nil
}

// CacheEnabled reports whether items may cache resolved values.
func (s *Settings) CacheEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cast.ToBool(s.v.Get("cache_enabled"))
}

// Set overrides a setting at runtime and notifies subscribers.
func (s *Settings) Set(name string, value any) {
	s.mu.Lock()
	s.v.Set(name, value)
	s.mu.Unlock()
	s.notify("set " + name)
}

// Keys returns every known setting name, sorted.
func (s *Settings) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.v.AllKeys()
	sort.Strings(keys)
	return keys
}

// All returns a snapshot of every setting.
func (s *Settings) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.AllSettings()
}

// OnChange registers fn to run after every change to the settings.
func (s *Settings) OnChange(fn func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
}

// Watch reloads the settings file whenever it changes on disk. It requires
// a file to have been loaded.
func (s *Settings) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return fmt.Errorf("settings: watch: no settings file loaded")
	}
	s.v.OnConfigChange(func(e fsnotify.Event) {
		s.log.WithFields(logrus.Fields{"path": e.Name, "op": e.Op.String()}).Info("settings file changed")
		s.notify("reload")
	})
	s.v.WatchConfig()
	return nil
}

func (s *Settings) notify(reason string) {
	s.subMu.Lock()
	subs := append([]func(){}, s.subs...)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn()
	}
	if err := s.evts.Emit(telemetry.Event{
		Timestamp: time.Now(),
		Kind:      telemetry.KindSettingsReloaded,
		Data:      map[string]string{"reason": reason},
	}); err != nil {
		s.log.Warnf("settings: %v", err)
	}
}
