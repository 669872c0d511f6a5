// avatar serves per-session avatar animation over WebSocket.
//
// Clients connect to /ws/avatar/:id and stream audio features (or raw PCM)
// plus transcript lines; the server answers every tick with the frame to
// render. Dashboards can watch frames on /ws/frames.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/teslashibe/go-avatar/internal/config"
	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/debug"
	"github.com/teslashibe/go-avatar/pkg/emotions"
	"github.com/teslashibe/go-avatar/pkg/secondary"
	"github.com/teslashibe/go-avatar/pkg/server"
)

func main() {
	port := flag.String("port", "", "HTTP port (overrides config)")
	cfgPath := flag.String("config", "", "Config file (overrides AVATAR_CONFIG env var)")
	preset := flag.String("preset", "", "Avatar preset: default, calm, expressive")
	assets := flag.String("assets", "", "Asset directory with emotions/ and animations/ manifests")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	debugFrames := flag.Bool("debug-frames", false, "Log every frame snapshot (very verbose)")
	flag.Parse()

	path := config.ResolvePath(*cfgPath)
	var overrides []config.Option
	if *port != "" {
		overrides = append(overrides, config.WithOverride("port", *port))
	}
	if *preset != "" {
		overrides = append(overrides, config.WithOverride("preset", *preset))
	}
	if *assets != "" {
		overrides = append(overrides, config.WithOverride("assets_dir", *assets))
	}

	store, err := config.Load(path, nil, overrides...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	settings := store.Current()
	debug.Enabled = *debugFlag || settings.Debug
	debug.Frames = *debugFrames || settings.DebugFrames

	level := "info"
	if debug.Enabled || debug.Frames {
		level = "debug"
	}
	log.Init(level)
	defer log.Sync()
	logger := log.L()

	store.SetLogger(logger)
	store.OnChange(func(s config.Settings) {
		logger.Info("new sessions will use reloaded settings", zap.String("preset", s.Preset))
	})

	emo := emotions.NewRegistry()
	anim := secondary.NewMemoryRegistry()
	if err := loadAssets(emo, anim, settings.AssetsDir); err != nil {
		logger.Fatal("failed to load assets", zap.Error(err))
	}
	defaultEmotion := emotions.Normalize(settings.Avatar.DefaultEmotion)
	if defaultEmotion == "" {
		defaultEmotion = emo.DefaultTag()
	}
	if _, err := emo.Get(defaultEmotion); err != nil {
		logger.Fatal("default emotion is not in the loaded assets",
			zap.String("default_emotion", defaultEmotion), zap.Error(err))
	}
	logger.Info("assets loaded",
		zap.Int("emotions", emo.Count()),
		zap.Int("animations", anim.Count()),
		zap.String("default_emotion", defaultEmotion))

	srv, err := server.New(server.Options{
		Port:       settings.Port,
		Config:     store,
		Emotions:   emo,
		Animations: anim,
		AssetsDir:  settings.AssetsDir,
		RequestLog: debug.Enabled,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store.Watch()
	logger.Info("🎭 avatar server starting",
		zap.String("port", settings.Port),
		zap.String("preset", store.PresetName()),
		zap.String("config", path))

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// loadAssets loads the built-in manifests, then any overrides under dir.
func loadAssets(emo *emotions.Registry, anim *secondary.MemoryRegistry, dir string) error {
	if err := emo.LoadBuiltIn(); err != nil {
		return err
	}
	if err := anim.LoadBuiltIn(); err != nil {
		return err
	}
	if dir == "" {
		return nil
	}
	if sub := filepath.Join(dir, "emotions"); isDir(sub) {
		if err := emo.LoadCustomDir(sub); err != nil {
			return err
		}
	}
	if sub := filepath.Join(dir, "animations"); isDir(sub) {
		if err := anim.LoadCustomDir(sub); err != nil {
			return err
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
