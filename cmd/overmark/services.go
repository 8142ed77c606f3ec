package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/overmark/overmark/internal/config"
	"github.com/overmark/overmark/internal/database"
	"github.com/overmark/overmark/internal/dispatcher"
	"github.com/overmark/overmark/internal/engine"
	"github.com/overmark/overmark/internal/influx"
	"github.com/overmark/overmark/internal/logging"
	"github.com/overmark/overmark/internal/manifest"
	intOtel "github.com/overmark/overmark/internal/otel"
	"github.com/overmark/overmark/internal/script"
	"github.com/overmark/overmark/internal/storage"
	"github.com/overmark/overmark/internal/stream"
	"github.com/overmark/overmark/internal/world"
)

// services holds everything the frame loop depends on.
type services struct {
	slog     *logging.SlogManager
	otel     *intOtel.Provider
	db       *database.Manager
	store    storage.Store
	influx   *influx.Manager
	stream   *stream.Publisher
	engine   *engine.Engine
	commands *dispatcher.Dispatcher

	logFile  *os.File
	otelFile *os.File

	// read by the log context handler from any goroutine
	frame     atomic.Int64
	territory atomic.Uint32
	now       atomic.Int64
}

func newServices(ctx context.Context) (*services, error) {
	svc := &services{slog: logging.NewSlogManager()}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, AppName, SessionStartTime)
	if _, err := os.Stat(logPath); err == nil {
		_ = os.Rename(logPath, logPath+".old")
	}
	var err error
	svc.logFile, err = os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	if err := svc.initOTel(logsDir); err != nil {
		return nil, err
	}
	svc.slog.Context = func() []slog.Attr {
		return []slog.Attr{
			slog.Int64("frame", svc.frame.Load()),
			slog.Uint64("territory", uint64(svc.territory.Load())),
		}
	}
	svc.slog.Setup(svc.logFile, viper.GetString("logLevel"), svc.otel.LoggerProvider())
	logger := svc.slog.Logger()

	zlog := zerolog.New(svc.logFile).With().Timestamp().Str("component", "engine").Logger().
		Level(zerologLevel(viper.GetString("logLevel")))

	storageCfg := config.GetStorageConfig()
	svc.db = database.NewManager(zlog)
	svc.store, err = storage.NewStore(storageCfg, svc.db)
	if err != nil {
		return nil, fmt.Errorf("creating settings store: %w", err)
	}
	if err := svc.store.Init(); err != nil {
		return nil, fmt.Errorf("initializing settings store: %w", err)
	}
	logger.Info("Settings store initialized", "type", storageCfg.Type, "local", svc.db.ShouldSaveLocal)

	engineLog := logging.NewEngineLogger(zlog)
	deps := engine.Dependencies{
		Logger: engineLog,
		Store:  svc.store,
	}

	if ic := config.GetInfluxConfig(); ic.Enabled {
		svc.influx = influx.NewManager(zlog, ic, filepath.Join(logsDir, AppName+".influx.lp.gz"))
		if err := svc.influx.Connect(ctx); err != nil {
			logger.Warn("InfluxDB telemetry disabled", "error", err)
			svc.influx = nil
		} else {
			deps.Observer = svc.influx
		}
	}

	if mc := config.GetManifestConfig(); mc.Enabled {
		deps.Manifests = manifest.New(mc.Timeout)
	}

	svc.engine, err = engine.New(deps)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	svc.commands, err = dispatcher.New(engineLog, viper.GetInt("commandQueueSize"))
	if err != nil {
		return nil, fmt.Errorf("creating command dispatcher: %w", err)
	}
	registerCommands(svc.commands, svc.engine, svc.now.Load)

	if sc := config.GetStreamConfig(); sc.Enabled {
		pub, err := stream.New(stream.Config{URL: sc.URL, Secret: sc.Secret, Host: hostName()}, logger)
		if err != nil {
			return nil, err
		}
		pub.OnCommand(enqueueCommand(svc.commands))
		if err := pub.Init(); err != nil {
			logger.Warn("Frame stream unavailable", "url", sc.URL, "error", err)
		} else {
			svc.stream = pub
			logger.Info("Frame stream connected", "url", sc.URL)
		}
	}

	return svc, nil
}

func (svc *services) initOTel(logsDir string) error {
	oc := config.GetOTelConfig()
	cfg := intOtel.Config{
		Enabled:      oc.Enabled,
		ServiceName:  oc.ServiceName,
		BatchTimeout: oc.BatchTimeout,
		Endpoint:     oc.Endpoint,
		Insecure:     oc.Insecure,
	}
	if oc.Enabled {
		f, err := os.OpenFile(filepath.Join(logsDir, AppName+".otel.jsonl"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("opening otel log file: %w", err)
		}
		svc.otelFile = f
		cfg.LogWriter = f
	}

	p, err := intOtel.New(cfg)
	if err != nil {
		return fmt.Errorf("initializing OTel: %w", err)
	}
	svc.otel = p
	return nil
}

// tick applies queued viewer commands, runs one engine pass and streams
// the result.
func (svc *services) tick(now int64, view world.View) {
	frame := script.Frame{Now: now, World: view}
	svc.frame.Add(1)
	svc.territory.Store(frame.Territory())
	svc.now.Store(now)
	if svc.commands != nil {
		svc.commands.Drain()
	}
	svc.engine.Tick(frame)
	freezes := svc.engine.ActiveFreezes(now)
	if svc.stream == nil {
		return
	}
	payload := stream.BuildFrame(now, frame.Territory(), svc.engine.Controllers(), freezes)
	if err := svc.stream.PublishFrame(payload); err != nil {
		svc.slog.Logger().Debug("Dropping frame", "error", err)
	}
}

func (svc *services) shutdown() {
	logger := svc.slog.Logger()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if svc.stream != nil {
		errs = append(errs, svc.stream.Close())
	}
	if svc.influx != nil {
		errs = append(errs, svc.influx.Close())
	}
	// The store owns the database connection when one was opened.
	if svc.store != nil {
		errs = append(errs, svc.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("Errors during shutdown", "error", err)
	}

	_ = svc.slog.Flush(ctx)
	if svc.otel != nil {
		_ = svc.otel.Shutdown(ctx)
	}
	if svc.otelFile != nil {
		_ = svc.otelFile.Close()
	}
	if svc.logFile != nil {
		_ = svc.logFile.Close()
	}
}

func zerologLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

func hostName() string {
	h, err := os.Hostname()
	if err != nil {
		return AppName
	}
	return h
}
