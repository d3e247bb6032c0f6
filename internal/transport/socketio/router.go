package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/moekoe-music/moekoe-shell/internal/apibase"
	"github.com/moekoe-music/moekoe-shell/internal/domain/lyrics"
	"github.com/moekoe-music/moekoe-shell/internal/domain/session"
	"github.com/moekoe-music/moekoe-shell/internal/domain/settings"
	"github.com/moekoe-music/moekoe-shell/internal/infra/storage"
	"github.com/moekoe-music/moekoe-shell/internal/shell"
	"github.com/moekoe-music/moekoe-shell/internal/updater"
)

// Storage keys for window state kept next to the settings blob.
const (
	KeyLyricsWindowPosition = "lyricsWindowPosition"
	KeyMaximize             = "maximize"
	KeyDisclaimerAccepted   = "disclaimerAccepted"
)

// TrayTitlePrefix is prepended to the track title in the tray.
const TrayTitlePrefix = "Now playing: "

// Notification shown when the overlay is closed from its own toolbar.
const (
	lyricsClosedTitle = "Desktop lyrics closed"
	lyricsClosedBody  = "Closed for this session only. Re-enable it from the player."
)

// Emitter delivers an event to the socket holding a role.
// Returns false when no socket holds the role.
type Emitter interface {
	EmitTo(role Role, event string, args ...any) bool
}

// Shell is the platform side the router drives.
type Shell interface {
	OpenLyricsWindow() error
	CloseLyricsWindow() error
	LyricsWindowOpen() bool
	SetLyricsIgnoreMouse(ignore bool)
	MoveLyricsWindow(pos shell.Position)

	SetTrayImage(img lyrics.StatusBarImage)
	ResetTrayImage()
	SetTrayTitle(title string)
	SetWindowTitle(title string)
	SetPlaybackState(playing bool, currentTime float64)

	CloseMainWindow()
	MinimizeMainWindow()
	ToggleMaximizeMainWindow() bool
	SetMaximized(maximized bool)

	OpenURL(url string) error
	SetLoginItem(enabled bool) error
	ClearSessionData() error
	Notify(title, body string)
	RegisterShortcuts(shortcuts map[string]string) error
	UnregisterShortcuts()

	StartPowerSaveBlocker() error
	StopPowerSaveBlocker()
	ApplyLaunchOptions(opts shell.LaunchOptions)
	Quit()
}

// KV is the key/value storage for window state.
type KV interface {
	GetItem(key string) (string, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
	Clear() error
}

// SessionStore holds the signed-in user and the remote config list.
type SessionStore interface {
	SetData(d session.Data) error
	ClearData() error
	Reset() error
	FetchConfig(key string) (any, bool)
	UserInfo() map[string]any
	IsAuthenticated() bool
}

// BaseURLSource resolves the API base URL.
type BaseURLSource interface {
	BaseURL() string
	Default() string
	PlayableAudioURL(raw string) string
}

// Prober tests connectivity to an API base URL.
type Prober interface {
	Probe(ctx context.Context, baseURL string, opts apibase.ProbeOptions) apibase.ProbeResult
}

// UpdateChecker runs update checks.
type UpdateChecker interface {
	CheckForUpdates(ctx context.Context, silent bool) updater.Notice
}

// RouterOption is a functional option for configuring the router.
type RouterOption func(*Router)

// WithStore sets the storage for window state.
func WithStore(store KV) RouterOption {
	return func(r *Router) {
		r.store = store
	}
}

// WithResolver sets the API base resolver.
func WithResolver(resolver BaseURLSource) RouterOption {
	return func(r *Router) {
		r.resolver = resolver
	}
}

// WithProber sets the API base prober.
func WithProber(prober Prober) RouterOption {
	return func(r *Router) {
		r.prober = prober
	}
}

// WithUpdater sets the update checker.
func WithUpdater(u UpdateChecker) RouterOption {
	return func(r *Router) {
		r.updates = u
	}
}

// WithSession sets the session store.
func WithSession(store SessionStore) RouterOption {
	return func(r *Router) {
		r.session = store
	}
}

// WithPlatform sets the platform name used for platform-only features.
func WithPlatform(platform string) RouterOption {
	return func(r *Router) {
		r.platform = platform
	}
}

// Router routes IPC events between the main UI, the lyrics overlay and the shell.
type Router struct {
	shell    Shell
	settings *settings.Service
	store    KV
	resolver BaseURLSource
	prober   Prober
	updates  UpdateChecker
	session  SessionStore
	platform string

	mu        sync.RWMutex
	emitter   Emitter
	statusBar *lyrics.StatusBar

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRouter creates a router.
func NewRouter(sh Shell, settingsSvc *settings.Service, opts ...RouterOption) *Router {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		shell:    sh,
		settings: settingsSvc,
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, opt := range opts {
		opt(r)
	}

	settingsSvc.OnChange(r.applyPowerSave)

	return r
}

// SetEmitter sets where outgoing events go. The socket server calls this on creation.
func (r *Router) SetEmitter(e Emitter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitter = e
}

// EnableStatusBar turns on status-bar lyrics. Only platforms with a text-capable
// tray call this.
func (r *Router) EnableStatusBar(clearDelay time.Duration) {
	bar := lyrics.NewStatusBar(clearDelay, r.settings.StatusBarLyricsEnabled, r)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statusBar != nil {
		r.statusBar.Stop()
	}
	r.statusBar = bar
}

// RenderStatusBar asks the main UI to draw text into a status-bar canvas.
func (r *Router) RenderStatusBar(text string) {
	r.emit(RoleMain, "generate-statusbar-image", text)
}

// ResetStatusBar restores the plain tray icon.
func (r *Router) ResetStatusBar() {
	r.shell.ResetTrayImage()
}

// RestoreWindowState applies the persisted window state to the shell.
func (r *Router) RestoreWindowState() {
	if r.store == nil {
		return
	}
	if v, err := r.store.GetItem(KeyMaximize); err == nil {
		r.shell.SetMaximized(v == "true")
	}
}

// ApplyStartupSettings applies the stored settings that only take effect at launch
// and registers the stored global shortcuts.
func (r *Router) ApplyStartupSettings() {
	s := r.settings.Get()

	// The UI labels the switch that turns acceleration off as gpuAcceleration.
	opts := shell.LaunchOptions{
		DisableHardwareAcceleration: settings.IsOn(s.GPUAcceleration),
		TouchBar:                    r.platform == "darwin" && settings.IsOn(s.TouchBar),
		APIService:                  settings.IsOn(s.APIMode),
	}
	if settings.IsOn(s.HighDPI) {
		opts.ScaleFactor = s.DPIScale
		if opts.ScaleFactor == "" {
			opts.ScaleFactor = "1"
		}
	}
	r.shell.ApplyLaunchOptions(opts)

	r.applyPowerSave(s)

	if err := r.shell.RegisterShortcuts(r.storedShortcuts()); err != nil {
		log.Error().Err(err).Msg("Failed to register shortcuts")
	}
}

func (r *Router) applyPowerSave(s settings.Settings) {
	if !settings.IsOn(s.PreventAppSuspension) {
		r.shell.StopPowerSaveBlocker()
		return
	}
	if err := r.shell.StartPowerSaveBlocker(); err != nil {
		log.Error().Err(err).Msg("Failed to start power save blocker")
	}
}

// DisclaimerAccepted reports whether the user accepted the disclaimer.
func (r *Router) DisclaimerAccepted() bool {
	if r.store == nil {
		return false
	}
	v, err := r.store.GetItem(KeyDisclaimerAccepted)
	return err == nil && v == "true"
}

// Wait blocks until background work started by Dispatch has finished.
func (r *Router) Wait() {
	r.wg.Wait()
}

// Close cancels background work and releases what the router holds in the shell.
func (r *Router) Close() {
	r.cancel()
	r.wg.Wait()

	r.shell.StopPowerSaveBlocker()
	r.shell.UnregisterShortcuts()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statusBar != nil {
		r.statusBar.Stop()
	}
}

// Events returns the event names Dispatch understands.
func (r *Router) Events() []string {
	return []string{
		"lyrics-data",
		"update-statusbar-image",
		"desktop-lyrics-action",
		"set-ignore-mouse-events",
		"window-drag",
		"play-pause-action",
		"set-tray-title",
		"open-url",
		"save-settings",
		"clear-settings",
		"window-control",
		"disclaimer-response",
		"custom-shortcut",
		"check-for-updates",
		"api-base:get",
		"api-base:validate",
		"api-base:test",
		"audio:playable",
		"session:get",
		"session:set",
		"session:clear",
		"session:config",
	}
}

// Dispatch handles one event sent by the socket holding role from.
func (r *Router) Dispatch(from Role, event string, args ...any) {
	log.Debug().Str("from", string(from)).Str("event", event).Msg("IPC event")

	switch event {
	case "lyrics-data":
		r.handleLyricsData(args)
	case "update-statusbar-image":
		r.handleStatusBarImage(args)
	case "desktop-lyrics-action":
		r.handleLyricsAction(argString(args, 0))
	case "set-ignore-mouse-events":
		if r.shell.LyricsWindowOpen() {
			r.shell.SetLyricsIgnoreMouse(argBool(args, 0))
		}
	case "window-drag":
		r.handleWindowDrag(argMap(args, 0))
	case "play-pause-action":
		playing := argBool(args, 0)
		r.emit(RoleLyrics, "playing-status", playing)
		r.shell.SetPlaybackState(playing, argFloat(args, 1))
	case "set-tray-title":
		r.handleTrayTitle(argString(args, 0))
	case "open-url":
		if err := r.shell.OpenURL(argString(args, 0)); err != nil {
			log.Warn().Err(err).Msg("Failed to open URL")
		}
	case "save-settings":
		r.handleSaveSettings(args)
	case "clear-settings":
		r.handleClearSettings()
	case "window-control":
		r.handleWindowControl(argString(args, 0))
	case "disclaimer-response":
		r.handleDisclaimer(argBool(args, 0))
	case "custom-shortcut":
		r.handleCustomShortcut(argMap(args, 0))
	case "check-for-updates":
		r.handleCheckForUpdates(from, argBool(args, 0))
	case "api-base:get":
		r.handleAPIBaseGet(from)
	case "api-base:validate":
		r.handleAPIBaseValidate(from, argString(args, 0))
	case "api-base:test":
		r.handleAPIBaseTest(from, argString(args, 0), argMap(args, 1))
	case "audio:playable":
		r.handleAudioPlayable(from, argString(args, 0))
	case "session:get":
		r.replySession(from)
	case "session:set":
		r.handleSessionSet(from, args)
	case "session:clear":
		r.handleSessionClear(from)
	case "session:config":
		r.handleSessionConfig(from, argString(args, 0))
	default:
		log.Warn().Str("from", string(from)).Str("event", event).Msg("Unknown IPC event")
	}
}

func (r *Router) emit(role Role, event string, args ...any) bool {
	r.mu.RLock()
	e := r.emitter
	r.mu.RUnlock()

	if e == nil {
		log.Debug().Str("role", string(role)).Str("event", event).Msg("No emitter, dropping event")
		return false
	}
	return e.EmitTo(role, event, args...)
}

func (r *Router) currentStatusBar() *lyrics.StatusBar {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statusBar
}

func (r *Router) handleLyricsData(args []any) {
	if len(args) > 0 {
		r.emit(RoleLyrics, "lyrics-data", args[0])
	}

	if bar := r.currentStatusBar(); bar != nil {
		bar.Update(getStringFromMap(argMap(args, 0), "currentLyric"))
	}
}

func (r *Router) handleStatusBarImage(args []any) {
	dataURL := argString(args, 0)
	if dataURL == "" {
		return
	}

	img, err := lyrics.DecodeStatusBarImage(dataURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to set tray image")
		return
	}
	r.shell.SetTrayImage(img)
}

func (r *Router) handleLyricsAction(action string) {
	switch action {
	case "previous-song":
		r.emit(RoleMain, "play-previous-track")
	case "next-song":
		r.emit(RoleMain, "play-next-track")
	case "toggle-play":
		r.emit(RoleMain, "toggle-play-pause")
	case "close-lyrics":
		if !r.shell.LyricsWindowOpen() {
			return
		}
		if err := r.shell.CloseLyricsWindow(); err != nil {
			log.Error().Err(err).Msg("Failed to close lyrics window")
			return
		}
		r.shell.Notify(lyricsClosedTitle, lyricsClosedBody)
	case "display-lyrics":
		if r.shell.LyricsWindowOpen() {
			return
		}
		if pos, ok := r.savedLyricsPosition(); ok {
			r.shell.MoveLyricsWindow(pos)
		}
		if err := r.shell.OpenLyricsWindow(); err != nil {
			log.Error().Err(err).Msg("Failed to open lyrics window")
		}
	default:
		log.Warn().Str("action", action).Msg("Unknown desktop lyrics action")
	}
}

func (r *Router) savedLyricsPosition() (shell.Position, bool) {
	if r.store == nil {
		return shell.Position{}, false
	}
	raw, err := r.store.GetItem(KeyLyricsWindowPosition)
	if err != nil {
		return shell.Position{}, false
	}
	var pos shell.Position
	if err := json.Unmarshal([]byte(raw), &pos); err != nil {
		log.Warn().Err(err).Msg("Stored lyrics window position is malformed")
		return shell.Position{}, false
	}
	return pos, true
}

func (r *Router) handleWindowDrag(m map[string]interface{}) {
	if !r.shell.LyricsWindowOpen() || m == nil {
		return
	}

	pos := shell.Position{
		X: getIntFromMap(m, "mouseX", 0),
		Y: getIntFromMap(m, "mouseY", 0),
	}
	r.shell.MoveLyricsWindow(pos)

	if r.store == nil {
		return
	}
	data, _ := json.Marshal(pos)
	if err := r.store.SetItem(KeyLyricsWindowPosition, string(data)); err != nil {
		log.Error().Err(err).Msg("Failed to persist lyrics window position")
	}
}

func (r *Router) handleTrayTitle(title string) {
	// The status bar shows lyric images instead of a title
	if r.settings.StatusBarLyricsEnabled() {
		return
	}
	r.shell.SetTrayTitle(TrayTitlePrefix + title)
	r.shell.SetWindowTitle(title)
}

func (r *Router) handleSaveSettings(args []any) {
	var next settings.Settings
	if err := decodeArg(args, 0, &next); err != nil {
		log.Warn().Err(err).Msg("Invalid settings payload")
		return
	}

	if err := r.settings.Save(next); err != nil {
		log.Error().Err(err).Msg("Failed to save settings")
		return
	}

	switch next.AutoStart {
	case settings.On, settings.Off:
		if err := r.shell.SetLoginItem(settings.IsOn(next.AutoStart)); err != nil {
			log.Error().Err(err).Msg("Failed to update login item")
		}
	}
}

// handleClearSettings wipes all stored state: settings, window state and the
// signed-in session. Only the device identity is written back.
func (r *Router) handleClearSettings() {
	if err := r.settings.Clear(); err != nil {
		log.Error().Err(err).Msg("Failed to clear settings")
	}

	if r.store != nil {
		if err := r.store.Clear(); err != nil {
			log.Error().Err(err).Msg("Failed to clear storage")
		}
	}

	if r.session != nil {
		if err := r.session.Reset(); err != nil {
			log.Error().Err(err).Msg("Failed to reset session")
		}
	}

	if err := r.shell.ClearSessionData(); err != nil {
		log.Error().Err(err).Msg("Failed to clear session data")
	}
}

func (r *Router) handleWindowControl(action string) {
	switch action {
	case "close":
		if r.settings.Get().MinimizeToTray == settings.Off {
			r.shell.Quit()
			return
		}
		r.shell.CloseMainWindow()
	case "minimize":
		r.shell.MinimizeMainWindow()
	case "maximize":
		maximized := r.shell.ToggleMaximizeMainWindow()
		if r.store != nil {
			if err := r.store.SetItem(KeyMaximize, strconv.FormatBool(maximized)); err != nil {
				log.Error().Err(err).Msg("Failed to persist maximize state")
			}
		}
	default:
		log.Warn().Str("action", action).Msg("Unknown window control")
	}
}

func (r *Router) handleDisclaimer(accepted bool) {
	if !accepted {
		log.Info().Msg("Disclaimer declined, quitting")
		r.shell.Quit()
		return
	}
	if r.store == nil {
		return
	}
	if err := r.store.SetItem(KeyDisclaimerAccepted, "true"); err != nil {
		log.Error().Err(err).Msg("Failed to persist disclaimer response")
	}
}

func (r *Router) handleCustomShortcut(m map[string]interface{}) {
	shortcuts := make(map[string]string)
	if m != nil {
		for action, v := range m {
			if accel, ok := v.(string); ok {
				shortcuts[action] = accel
			}
		}
	} else {
		shortcuts = r.storedShortcuts()
	}

	if err := r.shell.RegisterShortcuts(shortcuts); err != nil {
		log.Error().Err(err).Msg("Failed to register shortcuts")
	}
}

// storedShortcuts reads the shortcut map saved with the settings.
func (r *Router) storedShortcuts() map[string]string {
	shortcuts := make(map[string]string)
	raw, ok := r.settings.Get().Extra["shortcuts"]
	if !ok {
		return shortcuts
	}
	if err := json.Unmarshal(raw, &shortcuts); err != nil {
		log.Warn().Err(err).Msg("Stored shortcuts are malformed")
		return make(map[string]string)
	}
	return shortcuts
}

func (r *Router) handleCheckForUpdates(from Role, silent bool) {
	if r.updates == nil {
		log.Warn().Msg("Update checker not configured")
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		notice := r.updates.CheckForUpdates(r.ctx, silent)
		r.emit(from, "update-notice", notice)
	}()
}

func (r *Router) handleAPIBaseGet(from Role) {
	if r.resolver == nil {
		return
	}
	r.emit(from, "api-base", map[string]interface{}{
		"baseUrl":        r.resolver.BaseURL(),
		"defaultBaseUrl": r.resolver.Default(),
	})
}

func (r *Router) handleAPIBaseValidate(from Role, raw string) {
	v := apibase.Validate(raw)
	r.emit(from, "api-base:validation", map[string]interface{}{
		"input":   raw,
		"ok":      v.OK,
		"value":   v.Value,
		"message": v.Message(),
	})
}

func (r *Router) handleAPIBaseTest(from Role, baseURL string, opts map[string]interface{}) {
	if r.prober == nil {
		log.Warn().Msg("API base prober not configured")
		return
	}
	if baseURL == "" && r.resolver != nil {
		baseURL = r.resolver.BaseURL()
	}

	probeOpts := apibase.ProbeOptions{
		Path: getStringFromMap(opts, "path"),
	}
	// A zero or negative timeout cannot complete a request, so it means the default.
	if ms := getIntFromMap(opts, "timeoutMs", 0); ms > 0 {
		probeOpts.Timeout = time.Duration(ms) * time.Millisecond
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		result := r.prober.Probe(r.ctx, baseURL, probeOpts)
		log.Info().
			Str("baseUrl", baseURL).
			Bool("ok", result.OK).
			Int("status", result.Status).
			Str("error", result.Error).
			Msg("API base probe finished")
		r.emit(from, "api-base:test-result", result)
	}()
}

func (r *Router) handleAudioPlayable(from Role, raw string) {
	playable := raw
	if r.resolver != nil {
		playable = r.resolver.PlayableAudioURL(raw)
	}
	r.emit(from, "audio:playable-url", map[string]interface{}{
		"input": raw,
		"url":   playable,
	})
}

func (r *Router) replySession(from Role) {
	if r.session == nil {
		return
	}
	r.emit(from, "session", map[string]interface{}{
		"authenticated": r.session.IsAuthenticated(),
		"userInfo":      r.session.UserInfo(),
	})
}

func (r *Router) handleSessionSet(from Role, args []any) {
	if r.session == nil {
		return
	}
	var d session.Data
	if err := decodeArg(args, 0, &d); err != nil {
		log.Warn().Err(err).Msg("Invalid session payload")
		return
	}
	if err := r.session.SetData(d); err != nil {
		log.Error().Err(err).Msg("Failed to save session")
		return
	}
	r.replySession(from)
}

func (r *Router) handleSessionClear(from Role) {
	if r.session == nil {
		return
	}
	if err := r.session.ClearData(); err != nil {
		log.Error().Err(err).Msg("Failed to sign out")
		return
	}
	r.replySession(from)
}

func (r *Router) handleSessionConfig(from Role, key string) {
	if r.session == nil {
		return
	}
	value, found := r.session.FetchConfig(key)
	r.emit(from, "session:config", map[string]interface{}{
		"key":   key,
		"value": value,
		"found": found,
	})
}

// errNoSocket is logged when an event targets a role nobody holds.
var errNoSocket = errors.New("no socket registered for role")

var (
	_ lyrics.Sink = (*Router)(nil)
	_ Shell       = (*shell.Headless)(nil)
	_ KV          = (*storage.DB)(nil)

	_ SessionStore = (*session.Store)(nil)
)
