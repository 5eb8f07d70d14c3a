// Package main provides the player entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicbox/internal/app/filter"
	"github.com/osa030/musicbox/internal/app/session"
	"github.com/osa030/musicbox/internal/domain/media"
	"github.com/osa030/musicbox/internal/infra/config"
	"github.com/osa030/musicbox/internal/infra/logger"
	"github.com/osa030/musicbox/internal/infra/mpv"
	"github.com/osa030/musicbox/internal/infra/picker"
	"github.com/osa030/musicbox/internal/ui/console"
)

var (
	app          = kingpin.New("musicbox", "Terminal playlist player")
	configPath   = app.Flag("config", "Path to config file").Default("config/musicbox.yaml").String()
	verbose      = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile      = app.Flag("logfile", "Path to log file (default: stderr)").String()
	playlistPath = app.Flag("playlist", "Playlist file to load and play at startup").Short('p').String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available load filters and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the player (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle list-filters command
	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stderr",
		Level:  "info",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	// Run player (defer ensures engines are released on every path)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads path, falling back to defaults when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		zlog.Info().Msgf("Config %s not found, using defaults", path)
	} else {
		zlog.Info().Msgf("Loading config from %s", path)
	}
	return config.LoadOrDefault(path)
}

// run executes the player. Using a separate function ensures defer statements
// are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the audio engine
	engine := mpv.New(mpv.Config{
		Name:           "player",
		Executable:     cfg.Engine.Executable,
		SocketPath:     cfg.Engine.SocketPath,
		StartTimeout:   cfg.StartTimeout(),
		CommandTimeout: cfg.CommandTimeout(),
		ExtraArgs:      cfg.Engine.ExtraArgs,
	})
	if err := engine.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start media engine")
	}

	// Create session manager
	sessionMgr, err := newSession(cfg, engine, startBackground(ctx, cfg),
		picker.New(cfg.Playlists.Directory, cfg.Playlists.AudioTypes))
	if err != nil {
		return err
	}
	defer sessionMgr.Close()

	sessionMgr.Notifications().Subscribe(console.NewPrinter(os.Stdout))

	if err := sessionMgr.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start session")
	}

	if *playlistPath != "" {
		if err := sessionMgr.LoadPlaylistFile(ctx, *playlistPath); err != nil {
			zlog.Error().Err(err).Msgf("Failed to load playlist %s", *playlistPath)
		} else if err := sessionMgr.Play(ctx); err != nil {
			zlog.Error().Err(err).Msg("Failed to start playback")
		}
	}

	executeHooks(cfg.Hooks.OnStarted, "on_started")

	// Run the command shell
	shellErrCh := make(chan error, 1)
	go func() {
		shellErrCh <- console.NewShell(sessionMgr, os.Stdin, os.Stdout).Run(ctx)
	}()

	// Wait for shutdown signal, quit, or session end
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-shellErrCh:
		if err != nil {
			zlog.Error().Err(err).Msg("Command shell failed")
		}
	case <-sessionMgr.Done():
		zlog.Info().Msg("Session ended, shutting down...")
	}

	cancel()
	sessionMgr.Close()
	zlog.Info().Msg("Player stopped")

	executeHooks(cfg.Hooks.OnStopped, "on_stopped")

	return nil
}

// newSession creates the session manager. The engines are closed when it
// cannot be created.
func newSession(cfg *config.Config, engine, background media.Engine, p session.Picker) (*session.Manager, error) {
	var opts []session.Option
	if background != nil {
		opts = append(opts, session.WithBackground(background))
	}

	sessionMgr, err := session.NewManager(cfg, engine, p, opts...)
	if err != nil {
		_ = engine.Close()
		if background != nil {
			_ = background.Close()
		}
		return nil, errors.Wrap(err, "failed to create session manager")
	}
	return sessionMgr, nil
}

// startBackground starts the looping background engine. It returns nil when no
// background is configured or it cannot be started.
func startBackground(ctx context.Context, cfg *config.Config) media.Engine {
	if cfg.Background.Source == "" {
		return nil
	}

	background := mpv.New(mpv.Config{
		Name:           "background",
		Executable:     cfg.Engine.Executable,
		StartTimeout:   cfg.StartTimeout(),
		CommandTimeout: cfg.CommandTimeout(),
		Loop:           true,
		Video:          true,
	})
	if err := background.Start(ctx); err != nil {
		zlog.Warn().Err(err).Msg("Background disabled")
		_ = background.Close()
		return nil
	}
	return background
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for _, factory := range filter.GetRegistered() {
		f := factory()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
