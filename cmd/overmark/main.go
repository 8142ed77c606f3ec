package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/overmark/overmark/internal/config"
	"github.com/overmark/overmark/internal/scripts"
	"github.com/overmark/overmark/internal/stream"
	"github.com/overmark/overmark/internal/world"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "overmark"
)

var (
	// Logger is the host slog logger (convenience reference)
	Logger *slog.Logger

	SessionStartTime time.Time = time.Now()
)

func main() {
	flags := pflag.NewFlagSet(AppName, pflag.ExitOnError)
	configDir := flags.String("config-dir", ".", "directory holding "+config.FileName)
	worldPath := flags.String("world", "", "JSON world feed to replay; empty runs against an empty world")
	maxFrames := flags.Int("frames", 0, "stop after this many frames; 0 runs until interrupted")
	flags.String("log-level", "", "override logLevel from the config file")
	_ = flags.Parse(os.Args[1:])

	if err := run(*configDir, *worldPath, *maxFrames, flags); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func run(configDir, worldPath string, maxFrames int, flags *pflag.FlagSet) error {
	configErr := config.Load(configDir)
	if f := flags.Lookup("log-level"); f != nil && f.Changed {
		if err := viper.BindPFlag("logLevel", f); err != nil {
			return fmt.Errorf("binding log-level flag: %w", err)
		}
	}

	svc, err := newServices(context.Background())
	if err != nil {
		return err
	}
	defer svc.shutdown()
	Logger = svc.slog.Logger()

	if configErr != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		Logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}
	Logger.Info("Starting up...", "version", CurrentVersion, "buildDate", BuildDate)

	for _, s := range scripts.Builtin() {
		if err := svc.engine.Load(s); err != nil {
			Logger.Error("Failed to load script", "script", s.Name(), "error", err)
		}
	}

	if mc := config.GetManifestConfig(); mc.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), mc.Timeout)
		for _, c := range svc.engine.CheckManifests(ctx) {
			Logger.Info("Script update available",
				"script", c.Script, "current", c.CurrentVersion, "latest", c.LatestVersion, "autoApply", c.AutoApply)
		}
		cancel()
	}

	if svc.stream != nil {
		if err := svc.stream.Hello(stream.ScriptInfos(svc.engine.Scripts())); err != nil {
			Logger.Warn("Stream viewer did not acknowledge hello", "error", err)
		}
	}

	feed, err := loadFeed(worldPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	frames := runLoop(ctx, svc, feed, config.GetDuration("frameInterval"), maxFrames)
	Logger.Info("Shutting down", "frames", frames)
	return nil
}

func loadFeed(path string) ([]*world.Snapshot, error) {
	if path == "" {
		return []*world.Snapshot{{}}, nil
	}
	feed, err := world.LoadSnapshots(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	if len(feed) == 0 {
		return nil, errors.New("world feed is empty")
	}
	return feed, nil
}

// runLoop ticks the engine once per interval, replaying feed in a loop. It
// returns the number of frames run.
func runLoop(ctx context.Context, svc *services, feed []*world.Snapshot, interval time.Duration, maxFrames int) int {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	frames := 0
	for maxFrames == 0 || frames < maxFrames {
		select {
		case <-ctx.Done():
			return frames
		case <-ticker.C:
		}
		svc.tick(time.Since(start).Milliseconds(), feed[frames%len(feed)])
		frames++
	}
	return frames
}
