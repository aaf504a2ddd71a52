// status-overlay draws a battery HUD over the Raspberry Pi display of a
// handheld build and handles its power button.
//
// It watches the fuel gauge interrupt and the power button through GPIO,
// redraws the HUD with pngview sprites, warns on low battery and powers
// the device off when the battery is critical or the button asks for it.
//
// Usage:
//
//	status-overlay [flags]
//
// Flags:
//
//	-config string      Path to configuration file (default: search path)
//	-verbose            Enable debug logging
//	-version            Print version and exit
//	-status             Print the running daemon's status and exit
//	-format string      Status format: pretty|json|yaml (default: pretty)
//	-send string        Send a control command to the daemon and exit
//	-migrate string     Convert a legacy JSON config to TOML and exit
//	-install-service    Install and start the systemd unit
//	-uninstall-service  Stop and remove the systemd unit
//	-preview string     Render the HUD to a PNG file and exit
//	-battery int        Charge used by -preview (default: 73)
//	-charging           Draw the charging artwork in -preview
//	-prepare-assets     Scale the artwork into the prepared dir and exit
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"gitlab.com/tinyland/lab/status-overlay/pkg/asset"
	"gitlab.com/tinyland/lab/status-overlay/pkg/config"
	"gitlab.com/tinyland/lab/status-overlay/pkg/daemon"
	"gitlab.com/tinyland/lab/status-overlay/pkg/migrate"
	"gitlab.com/tinyland/lab/status-overlay/pkg/platform"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath       = flag.String("config", "", "Path to configuration file")
		verbose          = flag.Bool("verbose", false, "Enable debug logging")
		showVersion      = flag.Bool("version", false, "Print version and exit")
		showStatus       = flag.Bool("status", false, "Print the running daemon's status and exit")
		format           = flag.String("format", "pretty", "Status format (pretty|json|yaml)")
		send             = flag.String("send", "", "Send a control command ("+strings.Join(daemon.Commands, "|")+")")
		migratePath      = flag.String("migrate", "", "Convert the legacy JSON config at this path to TOML")
		installService   = flag.Bool("install-service", false, "Install and start the systemd unit")
		uninstallService = flag.Bool("uninstall-service", false, "Stop and remove the systemd unit")
		previewOut       = flag.String("preview", "", "Render the HUD to this PNG file")
		previewCharge    = flag.Int("battery", 73, "Charge used by -preview")
		previewCharging  = flag.Bool("charging", false, "Draw the charging artwork in -preview")
		prepareAssets    = flag.Bool("prepare-assets", false, "Scale the artwork into the prepared dir")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("status-overlay %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *showStatus:
		if err := printStatus(os.Stdout, cfg, *format); err != nil {
			fmt.Fprintf(os.Stderr, "status: %v\n", err)
			os.Exit(1)
		}

	case *send != "":
		resp, err := daemon.NewIPCClient(cfg.General.Socket).SendCommand(*send, flag.Args()...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", strings.ToUpper(*send), err)
			os.Exit(1)
		}
		fmt.Println(resp)

	case *migratePath != "":
		if err := runMigrate(os.Stdout, *migratePath, *configPath); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}

	case *installService:
		bin, err := os.Executable()
		if err != nil {
			fmt.Fprintf(os.Stderr, "locate binary: %v\n", err)
			os.Exit(1)
		}
		svc := platform.ServiceConfig{BinaryPath: bin, ConfigPath: *configPath}
		if err := platform.InstallService(svc); err != nil {
			fmt.Fprintf(os.Stderr, "install service: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("installed %s\n", platform.SystemdUnitPath())

	case *uninstallService:
		if err := platform.UninstallService(); err != nil {
			fmt.Fprintf(os.Stderr, "uninstall service: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("removed %s\n", platform.SystemdUnitPath())

	case *previewOut != "":
		if err := runPreview(cfg, *previewOut, *previewCharge, *previewCharging); err != nil {
			fmt.Fprintf(os.Stderr, "preview: %v\n", err)
			os.Exit(1)
		}

	case *prepareAssets:
		logger, closeLog := newLogger(cfg, *verbose, "")
		defer closeLog()
		if _, err := asset.Prepare(cfg.Display.AssetDir, cfg.Display.PreparedDir, cfg.Display.AssetScale, logger); err != nil {
			logger.Error("asset preparation failed", "err", err)
			os.Exit(1)
		}

	default:
		runID := uuid.NewString()
		logger, closeLog := newLogger(cfg, *verbose, runID)
		code := runDaemon(cfg, logger, runID)
		closeLog()
		os.Exit(code)
	}
}

// loadConfig loads the config from path or the search path and makes its
// relative paths absolute against the binary's directory.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if bin, err := os.Executable(); err == nil {
		cfg.Resolve(filepath.Dir(bin))
	}
	return cfg, nil
}

// newLogger writes to stderr and the configured log file. Text output on a
// terminal, JSON otherwise so journald keeps the attributes.
func newLogger(cfg *config.Config, verbose bool, runID string) (*slog.Logger, func()) {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.General.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.General.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		} else if f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		} else {
			w = io.MultiWriter(os.Stderr, f)
			closeFn = func() { f.Close() }
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	logger := slog.New(h)
	if runID != "" {
		logger = logger.With("run_id", runID)
	}
	slog.SetDefault(logger)
	return logger, closeFn
}

func runMigrate(w io.Writer, legacyPath, configPath string) error {
	if configPath == "" {
		home, _ := os.UserHomeDir()
		configPath = filepath.Join(home, ".config", "status-overlay", "config.toml")
	}
	result, err := migrate.Migrate(legacyPath, configPath)
	if err != nil {
		return err
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	for _, c := range result.Changes {
		fmt.Fprintf(w, "%-28s %s -> %s  (%s)\n", c.Field, c.OldValue, c.NewValue, c.LegacyKey)
	}
	if result.BackupPath != "" {
		fmt.Fprintf(w, "previous config saved to %s\n", result.BackupPath)
	}
	if result.ConfigPath != "" {
		fmt.Fprintf(w, "wrote %s\n", result.ConfigPath)
	}
	return nil
}
