// Package config loads server settings and avatar tuning from an optional
// YAML or JSON file plus AVATAR_* environment variables, and hot-reloads the
// file while the server runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/avatar"
)

// EnvPrefix prefixes every environment override, e.g. AVATAR_PORT or
// AVATAR_AVATAR_VAD_DEBOUNCE_FRAMES.
const EnvPrefix = "AVATAR"

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "AVATAR_CONFIG"

// Defaults
const (
	DefaultPort   = "8080"
	DefaultPreset = "default"
)

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("config: invalid settings")

// Settings is the full server configuration.
type Settings struct {
	Port        string `mapstructure:"port" json:"port"`
	Preset      string `mapstructure:"preset" json:"preset"`
	AssetsDir   string `mapstructure:"assets_dir" json:"assets_dir,omitempty"`
	Debug       bool   `mapstructure:"debug" json:"debug"`
	DebugFrames bool   `mapstructure:"debug_frames" json:"debug_frames"`

	// Avatar starts from the named preset; keys present in the file or
	// environment override individual fields.
	Avatar avatar.Config `mapstructure:"avatar" json:"avatar"`
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if s.Port == "" {
		return fmt.Errorf("%w: port is required", ErrInvalid)
	}
	if err := s.Avatar.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ChangeFunc is called with the new settings after a successful reload.
type ChangeFunc func(Settings)

// Store holds the current settings and reloads them from disk.
type Store struct {
	v      *viper.Viper
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	current  Settings
	onChange []ChangeFunc
}

// ResolvePath returns flagPath when set, otherwise the AVATAR_CONFIG
// environment variable. An empty result means no config file.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return os.Getenv(EnvConfigPath)
}

// Option customizes Load.
type Option func(*viper.Viper)

// WithOverride pins key to value above file and environment, across
// reloads. Typically used for command-line flags.
func WithOverride(key string, value any) Option {
	return func(v *viper.Viper) { v.Set(key, value) }
}

// Load reads settings from path (optional) and the environment.
func Load(path string, logger *zap.Logger, opts ...Option) (*Store, error) {
	logger = log.OrNop(logger)

	v := viper.New()
	v.SetDefault("port", DefaultPort)
	v.SetDefault("preset", DefaultPreset)
	v.SetDefault("assets_dir", "")
	v.SetDefault("debug", false)
	v.SetDefault("debug_frames", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindAvatarEnv(v)

	if path != "" {
		v.SetConfigFile(path)
	}
	for _, opt := range opts {
		opt(v)
	}

	s := &Store{v: v, path: path, logger: logger.With(zap.String("component", "config"))}
	settings, err := s.read()
	if err != nil {
		return nil, err
	}
	s.current = settings
	return s, nil
}

// bindAvatarEnv registers every avatar key so AutomaticEnv overrides reach
// Unmarshal even when the key is absent from the file.
func bindAvatarEnv(v *viper.Viper) {
	keys := viper.New()
	keys.Set("avatar", avatarKeys())
	for _, key := range keys.AllKeys() {
		_ = v.BindEnv(key)
	}
}

func avatarKeys() map[string]any {
	out := map[string]any{}
	_ = mapstructure.Decode(avatar.DefaultConfig(), &out)
	return out
}

// read loads the file (if any) and decodes it onto the selected preset.
func (s *Store) read() (Settings, error) {
	if s.path != "" {
		if err := s.v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read config %s: %w", s.path, err)
		}
	}

	preset := s.v.GetString("preset")
	base, err := avatar.Preset(preset)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	settings := Settings{Avatar: base}
	if err := s.v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// SetLogger replaces the logger used for reload events.
func (s *Store) SetLogger(logger *zap.Logger) {
	logger = log.OrNop(logger)
	s.mu.Lock()
	s.logger = logger.With(zap.String("component", "config"))
	s.mu.Unlock()
}

// Current returns the active settings.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Avatar returns the active avatar tuning.
func (s *Store) Avatar() avatar.Config {
	return s.Current().Avatar
}

// PresetName returns the active preset name.
func (s *Store) PresetName() string {
	return s.Current().Preset
}

// Path returns the config file path, or "" when running on defaults.
func (s *Store) Path() string {
	return s.path
}

// OnChange registers fn to run after every successful reload.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Reload re-reads the configuration. Invalid settings are rejected and the
// previous settings stay active.
func (s *Store) Reload() error {
	settings, err := s.read()

	s.mu.Lock()
	logger := s.logger
	if err != nil {
		s.mu.Unlock()
		logger.Warn("config reload rejected, keeping previous settings", zap.Error(err))
		return err
	}
	s.current = settings
	callbacks := append([]ChangeFunc(nil), s.onChange...)
	s.mu.Unlock()

	logger.Info("config reloaded",
		zap.String("path", s.path),
		zap.String("preset", settings.Preset))
	for _, fn := range callbacks {
		fn(settings)
	}
	return nil
}

// Watch reloads the file whenever it is written. It is a no-op without a
// config file.
func (s *Store) Watch() {
	if s.path == "" {
		return
	}
	s.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		s.mu.RLock()
		logger := s.logger
		s.mu.RUnlock()
		logger.Debug("config file changed", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		_ = s.Reload()
	})
	s.v.WatchConfig()
}
