// Package overlay is the coordinator that ties the battery gauge, the power
// button and the sprite renderer together into the status HUD.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/status-overlay/pkg/asset"
	"gitlab.com/tinyland/lab/status-overlay/pkg/audio"
	"gitlab.com/tinyland/lab/status-overlay/pkg/battery"
	"gitlab.com/tinyland/lab/status-overlay/pkg/gesture"
	"gitlab.com/tinyland/lab/status-overlay/pkg/gpio"
	"gitlab.com/tinyland/lab/status-overlay/pkg/layout"
	"gitlab.com/tinyland/lab/status-overlay/pkg/notify"
	"gitlab.com/tinyland/lab/status-overlay/pkg/render"
	"gitlab.com/tinyland/lab/status-overlay/pkg/shutdown"
	"gitlab.com/tinyland/lab/status-overlay/pkg/sprite"
	"gitlab.com/tinyland/lab/status-overlay/pkg/state"
)

// SnapshotDuration is how long the screenshot confirmation stays up.
const SnapshotDuration = 3 * time.Second

// Config holds the overlay's behavior settings.
type Config struct {
	Mode          gesture.Mode
	Debounce      time.Duration
	LongPress     time.Duration
	FlashDuration time.Duration

	LowThreshold      int
	CriticalThreshold int
	LowDuration       time.Duration
	CriticalDuration  time.Duration

	// Screen, when non-zero, skips resolution detection.
	Screen    render.Screen
	Tvservice string
	DisplayID int

	ScreenshotTool string
	ScreenshotDir  string

	// StatePath is the persisted visibility record.
	StatePath string

	Shutdown shutdown.Config
}

// Deps are the collaborators the overlay drives.
type Deps struct {
	Renderer render.Renderer
	// FlickerPause is slept between spawning a sprite and killing the one
	// it replaces.
	FlickerPause time.Duration
	Catalog      asset.Catalog
	Sizer        *asset.Sizer
	Layers       layout.Layers
	Gauge        battery.Gauge
	Player       audio.Player
	Source       gpio.Source
	Logger       *slog.Logger

	// OnChange, if set, is called with a fresh status after every HUD
	// update and visibility change.
	OnChange func(Status)
}

// Status is a point-in-time view of the overlay.
type Status struct {
	Visible       bool          `json:"visible" yaml:"visible"`
	Mode          string        `json:"mode" yaml:"mode"`
	StateOfCharge int           `json:"state_of_charge" yaml:"state_of_charge"`
	Charging      bool          `json:"charging" yaml:"charging"`
	LastReading   time.Time     `json:"last_reading" yaml:"last_reading"`
	Screen        render.Screen `json:"screen" yaml:"screen"`
	Sprites       int           `json:"sprites" yaml:"sprites"`
	Notifications int           `json:"notifications" yaml:"notifications"`
	ShuttingDown  bool          `json:"shutting_down" yaml:"shutting_down"`
}

// Overlay owns every piece of HUD state. Edges are handled by a single
// Dispatch goroutine; IPC and timers may call the exported methods
// concurrently.
type Overlay struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	registry   *sprite.Registry
	engine     *layout.Engine
	notes      *notify.Scheduler
	classifier *gesture.Classifier
	flasher    *gesture.Flasher
	monitor    *battery.Monitor
	shutdown   *shutdown.Coordinator

	// resolve looks up the screen size; replaced in tests.
	resolve func(ctx context.Context) (render.Screen, error)
	// screenshot starts a capture; replaced in tests.
	screenshot func(now time.Time) (string, error)

	drawMu sync.Mutex
	closed bool // guarded by drawMu

	mu      sync.Mutex
	ctx     context.Context
	visible bool
	screen  render.Screen
	reading battery.Reading

	teardownOnce sync.Once
	teardownErr  error
}

// New builds an overlay. The initial visibility comes from cfg.Mode and the
// record at cfg.StatePath.
func New(cfg Config, deps Deps) *Overlay {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Player == nil {
		deps.Player = audio.Nop{}
	}
	if cfg.Mode == "" {
		cfg.Mode = gesture.Saved
	}
	logger := deps.Logger

	registry := sprite.NewRegistry(deps.Renderer, sprite.Options{
		Base:         render.Options{Display: cfg.DisplayID, NonInteractive: true},
		FlickerPause: deps.FlickerPause,
		Logger:       logger,
	})

	o := &Overlay{
		cfg:        cfg,
		deps:       deps,
		logger:     logger,
		registry:   registry,
		engine:     layout.NewEngine(deps.Catalog, deps.Sizer, deps.Layers),
		notes:      notify.NewScheduler(registry, deps.Layers.Notification, logger),
		classifier: gesture.NewClassifier(cfg.LongPress),
		monitor:    battery.NewMonitor(cfg.LowThreshold, cfg.CriticalThreshold),
		ctx:        context.Background(),
		reading:    battery.Reading{StateOfCharge: 0, Discharging: true},
	}
	o.flasher = gesture.NewFlasher(o, cfg.FlashDuration)
	o.shutdown = shutdown.NewCoordinator(cfg.Shutdown, o, deps.Player, o.Teardown, logger)
	o.resolve = func(ctx context.Context) (render.Screen, error) {
		return render.Resolution(ctx, cfg.Tvservice, cfg.DisplayID)
	}
	o.screenshot = func(now time.Time) (string, error) {
		return render.Screenshot(cfg.ScreenshotTool, cfg.ScreenshotDir, now)
	}

	saved := true
	if cfg.StatePath != "" {
		rec, err := state.Load(cfg.StatePath, state.Record{state.Visible: true})
		if err != nil {
			logger.Warn("failed to load state, using defaults", "path", cfg.StatePath, "err", err)
		} else {
			saved = rec.Bool(state.Visible, true)
		}
	}
	o.visible = cfg.Mode.InitialVisibility(saved)
	return o
}

// Shutdown returns the coordinator that runs the exit sequence.
func (o *Overlay) Shutdown() *shutdown.Coordinator {
	return o.shutdown
}

// Start resolves the screen, reads the gauge and draws the initial HUD. In
// FLASH_INITIAL_ON mode the HUD is then flashed once.
func (o *Overlay) Start(ctx context.Context) error {
	o.mu.Lock()
	o.ctx = ctx
	o.mu.Unlock()

	if err := o.ResolveScreen(ctx); err != nil {
		o.shutdown.Trigger(shutdown.FatalDisplay)
		return err
	}
	if _, err := o.readGauge(ctx); err != nil {
		return o.gaugeFailed(err)
	}
	if err := o.Redraw(); err != nil {
		return err
	}
	if o.cfg.Mode.FlashOnStart() {
		o.flasher.Flash()
	}
	o.logger.Info("overlay started", "mode", o.cfg.Mode, "visible", o.Visible(), "screen", o.Screen())
	return nil
}

// ResolveScreen refreshes the screen size from the config or the display.
func (o *Overlay) ResolveScreen(ctx context.Context) error {
	screen := o.cfg.Screen
	if screen.Width == 0 || screen.Height == 0 {
		var err error
		screen, err = o.resolve(ctx)
		if err != nil {
			return fmt.Errorf("resolve screen: %w", err)
		}
	}
	o.mu.Lock()
	o.screen = screen
	o.mu.Unlock()
	return nil
}

// Screen returns the current screen size.
func (o *Overlay) Screen() render.Screen {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.screen
}

func (o *Overlay) readGauge(ctx context.Context) (battery.Reading, error) {
	if o.deps.Gauge == nil {
		return o.Reading(), errors.New("no fuel gauge")
	}
	r, err := battery.Read(ctx, o.deps.Gauge)
	if err != nil {
		return o.Reading(), err
	}
	o.mu.Lock()
	o.reading = r
	o.mu.Unlock()
	return r, nil
}

// gaugeFailed starts the fatal shutdown. The charge drives the critical
// battery decision, so the overlay does not run on a stale reading.
func (o *Overlay) gaugeFailed(err error) error {
	o.logger.Error("gauge read failed", "err", err)
	o.shutdown.Trigger(shutdown.GaugeFailure)
	return fmt.Errorf("read gauge: %w", err)
}

// Reading returns the last gauge reading.
func (o *Overlay) Reading() battery.Reading {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reading
}

// DrawHUD draws the HUD for a reading, or kills every sprite when the HUD
// is hidden. Digit sprites left over from a longer previous reading are
// removed.
func (o *Overlay) DrawHUD(charge int, charging bool) error {
	o.drawMu.Lock()
	defer o.drawMu.Unlock()

	if o.closed {
		return nil
	}
	if !o.Visible() {
		n := o.registry.HideAll()
		o.logger.Debug("hud hidden", "sprites", n)
		o.changed()
		return nil
	}

	plan, err := o.engine.Plan(o.Screen(), charge, charging)
	if err != nil {
		return err
	}
	for _, p := range plan.Placements {
		if _, err := o.registry.Show(p.Key, p.Image, p.Layer, p.X, p.Y); err != nil {
			return fmt.Errorf("draw %s: %w", p.Key, err)
		}
	}
	for _, k := range layout.RetiredDigits(plan.DigitCount, o.registry.Has) {
		o.registry.Hide(k)
	}
	o.logger.Debug("hud drawn", "charge", plan.Charge, "charging", charging, "digits", plan.DigitCount)
	o.changed()
	return nil
}

// Redraw draws the HUD for the last reading. A failure triggers the fatal
// display shutdown.
func (o *Overlay) Redraw() error {
	r := o.Reading()
	if err := o.DrawHUD(r.StateOfCharge, r.Charging()); err != nil {
		o.logger.Error("failed to draw hud", "err", err)
		o.shutdown.Trigger(shutdown.FatalDisplay)
		return err
	}
	return nil
}

// Refresh re-reads the gauge and redraws. A failed read triggers the fatal
// gauge shutdown.
func (o *Overlay) Refresh(ctx context.Context) error {
	if _, err := o.readGauge(ctx); err != nil {
		return o.gaugeFailed(err)
	}
	return o.Redraw()
}

// Visible reports whether the HUD is shown.
func (o *Overlay) Visible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visible
}

// SetVisibility shows or hides the HUD, re-reading the gauge first. It does
// nothing once the overlay is torn down.
func (o *Overlay) SetVisibility(v bool) {
	o.drawMu.Lock()
	if o.closed {
		o.drawMu.Unlock()
		return
	}
	o.mu.Lock()
	o.visible = v
	ctx := o.ctx
	o.mu.Unlock()
	o.drawMu.Unlock()

	o.logger.Debug("visibility changed", "visible", v)
	_ = o.Refresh(ctx)
}

// Toggle flips visibility.
func (o *Overlay) Toggle() {
	o.SetVisibility(!o.Visible())
}

// Flash shows the HUD for the flash duration if it is hidden.
func (o *Overlay) Flash() bool {
	return o.flasher.Flash()
}

// ShortPress performs the mode's short-press action.
func (o *Overlay) ShortPress() {
	if o.cfg.Mode.Flashes() {
		o.Flash()
		return
	}
	o.Toggle()
}

// HandleChargeChanged reads the gauge, redraws and acts on threshold
// crossings: a low crossing shows a warning and plays a sound, a critical
// crossing starts the shutdown.
func (o *Overlay) HandleChargeChanged(ctx context.Context) {
	r, err := o.readGauge(ctx)
	if err != nil {
		_ = o.gaugeFailed(err)
		return
	}
	_ = o.Redraw()

	crossed := o.monitor.Observe(r.StateOfCharge, r.Discharging)
	if crossed.Has(battery.LowCrossed) {
		o.logger.Warn("battery low", "charge", r.StateOfCharge)
		if err := o.notes.Notify(notify.LowBattery, o.deps.Catalog.Path(asset.LowBatteryImage), o.cfg.LowDuration); err != nil {
			o.logger.Error("low battery notification failed", "err", err)
		}
		audio.Go(ctx, o.deps.Player, asset.LowBatterySound, o.logger)
	}
	if crossed.Has(battery.CriticalCrossed) {
		o.logger.Warn("battery critical", "charge", r.StateOfCharge)
		o.shutdown.Trigger(shutdown.CriticalBattery)
	}
}

// HandleButton debounces a power-button edge, samples the line and acts on
// the completed gesture.
func (o *Overlay) HandleButton(ctx context.Context, e gpio.Edge) {
	high, err := gesture.SampleAfter(ctx, o.cfg.Debounce, func() bool {
		if o.deps.Source == nil {
			return e.High
		}
		level, err := o.deps.Source.Level(gpio.PowerButton)
		if err != nil {
			return e.High
		}
		return level
	})
	if err != nil {
		return
	}

	now := time.Now()
	switch g := o.classifier.Edge(high, now); g {
	case gesture.ShortPress:
		o.logger.Debug("short press")
		o.ShortPress()
	case gesture.LongPress:
		o.logger.Debug("long press")
		o.HandleLongPress(now)
	}
}

// HandleLongPress captures a screenshot and confirms it on screen.
func (o *Overlay) HandleLongPress(now time.Time) {
	path, err := o.screenshot(now)
	if err != nil {
		o.logger.Error("screenshot failed", "err", err)
		return
	}
	o.logger.Info("screenshot", "path", path)
	if err := o.notes.Notify(notify.Snapshot, o.deps.Catalog.Path(asset.SnapshotImage), SnapshotDuration); err != nil {
		o.logger.Error("snapshot notification failed", "err", err)
	}
}

// NotifyCritical shows the critical battery warning.
func (o *Overlay) NotifyCritical(d time.Duration) error {
	return o.notes.Notify(notify.CriticalBattery, o.deps.Catalog.Path(asset.CriticalBatteryImage), d)
}

// Dispatch consumes edges until ctx is done or shutdown starts. It is the
// only goroutine that feeds the gesture classifier.
func (o *Overlay) Dispatch(ctx context.Context, edges <-chan gpio.Edge) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.shutdown.Done():
			return
		case e := <-edges:
			switch e.Line {
			case gpio.ChargeChanged:
				o.HandleChargeChanged(ctx)
			case gpio.PowerButton:
				o.HandleButton(ctx, e)
			}
		}
	}
}

// Poll re-reads the gauge every interval until ctx is done or shutdown
// starts. Used as a fallback where the gauge interrupt is not wired.
func (o *Overlay) Poll(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.shutdown.Done():
			return
		case <-t.C:
			o.HandleChargeChanged(ctx)
		}
	}
}

// Teardown kills every sprite and notification, releases the GPIO lines and
// persists visibility. Only the first call does anything.
func (o *Overlay) Teardown() error {
	o.teardownOnce.Do(func() {
		var errs []error
		o.flasher.Stop()

		o.drawMu.Lock()
		o.closed = true
		sprites := o.registry.HideAll()
		o.drawMu.Unlock()
		notes := o.notes.Clear()

		if o.deps.Source != nil {
			if err := o.deps.Source.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close gpio: %w", err))
			}
		}
		if o.cfg.StatePath != "" {
			if err := state.SaveVisibility(o.cfg.StatePath, o.Visible()); err != nil {
				errs = append(errs, err)
			}
		}
		o.logger.Info("overlay torn down", "sprites", sprites, "notifications", notes)
		o.teardownErr = errors.Join(errs...)
	})
	return o.teardownErr
}

// Snapshot returns the current status.
func (o *Overlay) Snapshot() Status {
	o.mu.Lock()
	s := Status{
		Visible:       o.visible,
		Mode:          string(o.cfg.Mode),
		StateOfCharge: o.reading.StateOfCharge,
		Charging:      o.reading.Charging(),
		LastReading:   o.reading.Time,
		Screen:        o.screen,
	}
	o.mu.Unlock()

	s.Sprites = o.registry.Len()
	s.Notifications = o.notes.Active()
	s.ShuttingDown = o.shutdown.Triggered()
	return s
}

// Registry exposes the sprite registry for inspection.
func (o *Overlay) Registry() *sprite.Registry {
	return o.registry
}

// Plan lays out the HUD for a reading without drawing it.
func (o *Overlay) Plan(charge int, charging bool) (layout.Plan, error) {
	return o.engine.Plan(o.Screen(), charge, charging)
}

func (o *Overlay) changed() {
	if o.deps.OnChange != nil {
		o.deps.OnChange(o.Snapshot())
	}
}
