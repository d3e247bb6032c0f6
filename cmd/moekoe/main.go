// Package main is the entry point for the MoeKoe desktop shell.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/moekoe-music/moekoe-shell/internal/apibase"
	"github.com/moekoe-music/moekoe-shell/internal/domain/lyrics"
	"github.com/moekoe-music/moekoe-shell/internal/domain/session"
	"github.com/moekoe-music/moekoe-shell/internal/domain/settings"
	"github.com/moekoe-music/moekoe-shell/internal/infra/storage"
	"github.com/moekoe-music/moekoe-shell/internal/shell"
	"github.com/moekoe-music/moekoe-shell/internal/transport/socketio"
	"github.com/moekoe-music/moekoe-shell/internal/updater"
	"github.com/moekoe-music/moekoe-shell/internal/version"
)

// buildAPIURL is the build-time API base override (set via -ldflags).
var buildAPIURL = ""

func main() {
	// Command line flags
	port := flag.String("port", "6520", "HTTP server port")
	dataDir := flag.String("data-dir", "data", "Directory for persistent storage")
	dev := flag.Bool("dev", false, "Development build (API served by the local dev server)")
	apiURL := flag.String("api-url", buildAPIURL, "API base URL override baked into the build")
	desktopShell := flag.Bool("desktop-shell", true, "Running inside the desktop shell")
	pageProtocol := flag.String("page-protocol", "", "Protocol the UI page was loaded from (e.g. file:)")
	updateRepo := flag.String("update-repo", version.Repository, "GitHub owner/repo to check for releases")
	platform := flag.String("platform", runtime.GOOS, "Platform name (windows, darwin, linux)")
	checkUpdates := flag.Bool("check-updates", false, "Check for updates silently at startup")
	staticDir := flag.String("static", "", "Directory to serve the UI from (optional)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Desktop Shell")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	env := apibase.Environment{
		IsDev:          *dev,
		IsDesktopShell: apibase.DetectDesktopShell(*pageProtocol, *desktopShell),
		BuildOverride:  *apiURL,
	}
	log.Info().
		Str("port", *port).
		Str("data_dir", *dataDir).
		Str("platform", *platform).
		Bool("dev", env.IsDev).
		Bool("desktop_shell", env.IsDesktopShell).
		Str("api_override", env.BuildOverride).
		Msg("Configuration")

	// Open storage
	db := storage.NewDB(filepath.Join(*dataDir, "storage.db"))
	if err := db.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer db.Close()

	// Create services
	settingsService, err := settings.NewService(db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}

	sessionStore := session.NewStore(db)
	deviceID, err := sessionStore.EnsureDeviceID()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to persist device ID")
	}

	resolver := apibase.NewResolver(env, db)
	prober := apibase.NewProber()

	owner, repo, ok := version.ReleaseRepo(*updateRepo)
	if !ok {
		log.Warn().Str("repo", *updateRepo).Msg("Update repository is not owner/repo, update checks will fail")
	}
	updateService := updater.NewService(
		updater.NewChecker(owner, repo, updater.WithUserAgent(versionInfo.UserAgent())),
		settingsService,
		*platform,
		versionInfo.Version,
	)

	sh := shell.NewHeadless()

	router := socketio.NewRouter(sh, settingsService,
		socketio.WithStore(db),
		socketio.WithResolver(resolver),
		socketio.WithProber(prober),
		socketio.WithUpdater(updateService),
		socketio.WithSession(sessionStore),
		socketio.WithPlatform(*platform),
	)
	defer router.Close()

	// Status-bar lyrics need a text-capable menu bar
	if *platform == "darwin" {
		router.EnableStatusBar(lyrics.DefaultClearDelay)
	}
	router.ApplyStartupSettings()
	router.RestoreWindowState()

	socketServer, err := socketio.NewServer(router)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Probe the API base once so connectivity problems show up in the log early
	baseURL := resolver.BaseURL()
	log.Info().Str("base_url", baseURL).Str("default", resolver.Default()).Msg("API base resolved")
	go func() {
		result := prober.Probe(ctx, baseURL, apibase.ProbeOptions{})
		if result.OK {
			log.Info().Str("base_url", baseURL).Str("dfid", result.DFID).Msg("API base reachable")
			return
		}
		log.Warn().
			Str("base_url", baseURL).
			Int("status", result.Status).
			Str("status_text", result.StatusText).
			Str("error", result.Error).
			Msg("API base probe failed")
	}()

	if *checkUpdates {
		go func() {
			notice := updateService.CheckForUpdates(ctx, true)
			log.Info().Str("outcome", string(notice.Outcome)).Str("version", notice.Version).Msg("Startup update check")
		}()
	}

	// Setup HTTP server
	handlers := &apiHandlers{
		resolver: resolver,
		session:  sessionStore,
		clients:  socketServer,
		window:   sh,
		deviceID: deviceID,
	}
	mux := newMux(handlers, socketServer, *staticDir)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown on signal or when the UI asks to quit
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-sh.Done():
		}

		log.Info().Msg("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", ":"+*port).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}
