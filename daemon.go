package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/tinyland/lab/status-overlay/pkg/asset"
	"gitlab.com/tinyland/lab/status-overlay/pkg/audio"
	"gitlab.com/tinyland/lab/status-overlay/pkg/battery"
	"gitlab.com/tinyland/lab/status-overlay/pkg/config"
	"gitlab.com/tinyland/lab/status-overlay/pkg/daemon"
	"gitlab.com/tinyland/lab/status-overlay/pkg/gesture"
	"gitlab.com/tinyland/lab/status-overlay/pkg/gpio"
	"gitlab.com/tinyland/lab/status-overlay/pkg/overlay"
	"gitlab.com/tinyland/lab/status-overlay/pkg/render"
	"gitlab.com/tinyland/lab/status-overlay/pkg/shutdown"
)

// runDaemon runs the overlay until shutdown and returns the exit code.
func runDaemon(cfg *config.Config, logger *slog.Logger, runID string) int {
	started := time.Now()

	if err := daemon.AcquirePID(cfg.General.PIDFile); err != nil {
		logger.Error("cannot start", "err", err)
		return 1
	}
	defer daemon.ReleasePID(cfg.General.PIDFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Display.ReapStale {
		if n, err := render.ReapStale(ctx, cfg.Display.Pngview, logger); err != nil {
			logger.Warn("failed to reap stale renderers", "err", err)
		} else if n > 0 {
			logger.Info("reaped stale renderers", "count", n)
		}
	}

	if cfg.Display.AssetScale > 1 {
		if _, err := asset.Prepare(cfg.Display.AssetDir, cfg.Display.PreparedDir, cfg.Display.AssetScale, logger); err != nil {
			logger.Error("asset preparation failed", "err", err)
			return 1
		}
	}
	catalog := asset.Catalog{Dir: cfg.ImageDir()}
	sizer := asset.NewSizer()
	if err := catalog.Verify(sizer); err != nil {
		logger.Error("artwork incomplete", "dir", catalog.Dir, "err", err)
		return 1
	}

	gauge, closeGauge, err := openGauge(cfg)
	if err != nil {
		logger.Error("fuel gauge unavailable", "backend", cfg.Battery.Gauge, "err", err)
		return 1
	}
	defer closeGauge()

	player, err := audio.New(cfg.Audio.Backend, cfg.Audio.SoundDir, cfg.Audio.Command, logger)
	if err != nil {
		logger.Warn("audio disabled", "err", err)
		player = audio.Nop{}
	}

	src, err := gpio.OpenPeriph(gpio.Pins{
		ChargeChanged: cfg.Battery.GPOUTPin,
		PowerButton:   cfg.Button.Pin,
	}, logger)
	if err != nil {
		logger.Error("gpio unavailable", "err", err)
		return 1
	}

	mode, err := gesture.ParseMode(cfg.Button.Behavior)
	if err != nil {
		logger.Error("bad button behavior", "err", err)
		src.Close()
		return 1
	}

	health := func(st overlay.Status) *daemon.HealthStatus {
		return daemon.NewHealthStatus(runID, version, started, st)
	}
	ov := overlay.New(overlay.Config{
		Mode:              mode,
		Debounce:          cfg.Button.Debounce.Duration,
		LongPress:         cfg.Button.LongPress.Duration,
		FlashDuration:     cfg.Button.FlashDuration.Duration,
		LowThreshold:      cfg.Battery.LowThreshold,
		CriticalThreshold: cfg.Battery.CriticalThreshold,
		LowDuration:       cfg.Battery.LowDuration.Duration,
		CriticalDuration:  cfg.Battery.CriticalDuration.Duration,
		Screen:            render.Screen{Width: cfg.Display.Width, Height: cfg.Display.Height},
		Tvservice:         cfg.Display.Tvservice,
		DisplayID:         cfg.Display.ID,
		ScreenshotTool:    cfg.Button.Screenshot,
		ScreenshotDir:     cfg.Button.ScreenshotDir,
		StatePath:         cfg.General.StateFile,
		Shutdown: shutdown.Config{
			NotifyDuration: cfg.Battery.CriticalDuration.Duration,
			Sound:          asset.ShutdownSound,
			Grace:          cfg.Shutdown.Grace.Duration,
			PowerOff:       cfg.Shutdown.Command,
		},
	}, overlay.Deps{
		Renderer:     render.NewPngview(cfg.Display.Pngview, logger),
		FlickerPause: cfg.Display.FlickerPause.Duration,
		Catalog:      catalog,
		Sizer:        sizer,
		Layers:       layersFromConfig(cfg),
		Gauge:        gauge,
		Player:       player,
		Source:       src,
		Logger:       logger,
		OnChange: func(st overlay.Status) {
			if err := daemon.WriteHealthFile(cfg.General.HealthFile, health(st)); err != nil {
				logger.Debug("health file write failed", "err", err)
			}
		},
	})
	coord := ov.Shutdown()

	stopSignals := watchSignals(coord, logger)
	defer stopSignals()

	if err := ov.Start(ctx); err != nil {
		logger.Error("overlay start failed", "err", err)
	}

	srv := daemon.NewIPCServer(cfg.General.Socket, daemon.NewControl(ctx, ov, func() *daemon.HealthStatus {
		return health(ov.Snapshot())
	}), logger)
	if err := srv.Start(); err != nil {
		logger.Warn("control socket disabled", "err", err)
	} else {
		defer srv.Stop()
	}
	defer daemon.RemoveHealthFile(cfg.General.HealthFile)

	edges := make(chan gpio.Edge, gpio.QueueSize)
	go func() {
		if err := src.Run(ctx, edges); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("gpio watcher stopped", "err", err)
		}
	}()
	go ov.Dispatch(ctx, edges)
	if iv := cfg.Battery.PollInterval.Duration; iv > 0 {
		go ov.Poll(ctx, iv)
	}

	logger.Info("status-overlay running", "version", version, "mode", mode, "pid", os.Getpid())
	reason, err := coord.Run(ctx)
	cancel()
	if err != nil {
		logger.Error("shutdown failed", "reason", reason, "err", err)
		return 1
	}
	logger.Info("stopped", "reason", reason, "uptime", time.Since(started).Truncate(time.Second))
	if reason.Fatal() {
		return 1
	}
	return 0
}

// watchSignals turns SIGINT and SIGTERM into a Signal shutdown until the
// coordinator fires or the returned stop func is called.
func watchSignals(coord *shutdown.Coordinator, logger *slog.Logger) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal", "signal", sig)
			coord.Trigger(shutdown.Signal)
		case <-coord.Done():
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}

// openGauge builds the configured fuel gauge backend.
func openGauge(cfg *config.Config) (battery.Gauge, func(), error) {
	switch cfg.Battery.Gauge {
	case "i2c":
		g, err := battery.OpenI2C(cfg.Battery.Bus, cfg.Battery.Address)
		if err != nil {
			return nil, nil, err
		}
		return g, func() { g.Close() }, nil
	default:
		return &battery.ScriptGauge{
			Script:  cfg.Battery.Script,
			Bus:     cfg.Battery.Bus,
			Address: cfg.Battery.Address,
		}, func() {}, nil
	}
}
