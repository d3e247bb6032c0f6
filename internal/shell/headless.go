// Package shell provides the platform shell the IPC router drives: windows, tray,
// notifications and login items.
package shell

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/moekoe-music/moekoe-shell/internal/domain/lyrics"
)

// ErrEmptyURL is returned by OpenURL for an empty address.
var ErrEmptyURL = errors.New("empty url")

// Position is a window position in screen points.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// LaunchOptions are the startup switches derived from the stored settings.
type LaunchOptions struct {
	DisableHardwareAcceleration bool   `json:"disableHardwareAcceleration"`
	ScaleFactor                 string `json:"scaleFactor,omitempty"`
	TouchBar                    bool   `json:"touchBar"`
	APIService                  bool   `json:"apiService"`
}

// State is a snapshot of everything the shell tracks.
type State struct {
	LyricsOpen         bool                   `json:"lyricsOpen"`
	LyricsPosition     Position               `json:"lyricsPosition"`
	LyricsIgnoresMouse bool                   `json:"lyricsIgnoresMouse"`
	Maximized          bool                   `json:"maximized"`
	Minimized          bool                   `json:"minimized"`
	Hidden             bool                   `json:"hidden"`
	TrayTitle          string                 `json:"trayTitle"`
	TrayImage          *lyrics.StatusBarImage `json:"-"`
	HasTrayImage       bool                   `json:"hasTrayImage"`
	WindowTitle        string                 `json:"windowTitle"`
	Playing            bool                   `json:"playing"`
	CurrentTime        float64                `json:"currentTime"`
	LoginItem          bool                   `json:"loginItem"`
	PowerSaveBlocking  bool                   `json:"powerSaveBlocking"`
	Launch             LaunchOptions          `json:"launch"`
	Shortcuts          map[string]string      `json:"shortcuts"`
}

// Headless implements the shell without a GUI toolkit. Every action is logged and the
// resulting window state is tracked so the UI can query it.
type Headless struct {
	mu sync.Mutex

	lyricsOpen     bool
	lyricsPosition Position
	ignoreMouse    bool
	maximized      bool
	minimized      bool
	hidden         bool
	trayTitle      string
	trayImage      *lyrics.StatusBarImage
	windowTitle    string
	playing        bool
	position       float64
	loginItem      bool
	powerSave      bool
	launch         LaunchOptions
	shortcuts      map[string]string
	quit           chan struct{}
	quitOnce       sync.Once
}

// NewHeadless creates a headless shell.
func NewHeadless() *Headless {
	return &Headless{
		shortcuts: make(map[string]string),
		quit:      make(chan struct{}),
	}
}

// OpenLyricsWindow opens the desktop lyrics overlay.
func (h *Headless) OpenLyricsWindow() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lyricsOpen = true
	log.Info().Int("x", h.lyricsPosition.X).Int("y", h.lyricsPosition.Y).Msg("Lyrics window opened")
	return nil
}

// CloseLyricsWindow closes the desktop lyrics overlay.
func (h *Headless) CloseLyricsWindow() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lyricsOpen = false
	log.Info().Msg("Lyrics window closed")
	return nil
}

// LyricsWindowOpen reports whether the overlay is open.
func (h *Headless) LyricsWindowOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lyricsOpen
}

// SetLyricsIgnoreMouse makes the overlay click-through.
func (h *Headless) SetLyricsIgnoreMouse(ignore bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ignoreMouse = ignore
	log.Debug().Bool("ignore", ignore).Msg("Lyrics window mouse events")
}

// MoveLyricsWindow moves the overlay.
func (h *Headless) MoveLyricsWindow(pos Position) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lyricsPosition = pos
	log.Debug().Int("x", pos.X).Int("y", pos.Y).Msg("Lyrics window moved")
}

// SetTrayImage installs a status-bar image and clears the tray title.
func (h *Headless) SetTrayImage(img lyrics.StatusBarImage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.trayImage = &img
	h.trayTitle = ""
	log.Debug().Int("bytes", len(img.PNG)).Msg("Tray image updated")
}

// ResetTrayImage restores the plain tray icon.
func (h *Headless) ResetTrayImage() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.trayImage = nil
	h.trayTitle = ""
	log.Debug().Msg("Tray image reset")
}

// SetTrayTitle sets the text next to the tray icon.
func (h *Headless) SetTrayTitle(title string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.trayTitle = title
	log.Debug().Str("title", title).Msg("Tray title")
}

// SetWindowTitle sets the main window title.
func (h *Headless) SetWindowTitle(title string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.windowTitle = title
}

// SetPlaybackState updates the taskbar buttons for the player state.
func (h *Headless) SetPlaybackState(playing bool, currentTime float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.playing = playing
	h.position = currentTime
	log.Debug().Bool("playing", playing).Float64("currentTime", currentTime).Msg("Playback state")
}

// OpenURL opens url in the system browser.
func (h *Headless) OpenURL(url string) error {
	if url == "" {
		return ErrEmptyURL
	}
	log.Info().Str("url", url).Msg("Open external URL")
	return nil
}

// SetLoginItem enables or disables launching at login.
func (h *Headless) SetLoginItem(enabled bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.loginItem = enabled
	log.Info().Bool("enabled", enabled).Msg("Login item updated")
	return nil
}

// ClearSessionData drops cached web data.
func (h *Headless) ClearSessionData() error {
	log.Info().Msg("Session cache and storage cleared")
	return nil
}

// Notify shows a desktop notification.
func (h *Headless) Notify(title, body string) {
	log.Info().Str("title", title).Str("body", body).Msg("Notification")
}

// CloseMainWindow hides the main window to the tray.
func (h *Headless) CloseMainWindow() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hidden = true
	log.Debug().Msg("Main window hidden")
}

// MinimizeMainWindow minimizes the main window.
func (h *Headless) MinimizeMainWindow() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.minimized = true
	log.Debug().Msg("Main window minimized")
}

// ToggleMaximizeMainWindow maximizes or restores the main window and returns the new state.
func (h *Headless) ToggleMaximizeMainWindow() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.maximized = !h.maximized
	log.Debug().Bool("maximized", h.maximized).Msg("Main window maximize toggled")
	return h.maximized
}

// SetMaximized restores a persisted maximize state.
func (h *Headless) SetMaximized(maximized bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maximized = maximized
}

// RegisterShortcuts replaces the global shortcuts.
func (h *Headless) RegisterShortcuts(shortcuts map[string]string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.shortcuts = make(map[string]string, len(shortcuts))
	for action, accel := range shortcuts {
		h.shortcuts[action] = accel
	}
	log.Info().Int("count", len(shortcuts)).Msg("Shortcuts registered")
	return nil
}

// UnregisterShortcuts drops every global shortcut.
func (h *Headless) UnregisterShortcuts() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.shortcuts = make(map[string]string)
	log.Info().Msg("Shortcuts unregistered")
}

// StartPowerSaveBlocker keeps the display from sleeping. Starting twice is a no-op.
func (h *Headless) StartPowerSaveBlocker() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.powerSave {
		return nil
	}
	h.powerSave = true
	log.Info().Msg("Power save blocker started")
	return nil
}

// StopPowerSaveBlocker releases the blocker if one is active.
func (h *Headless) StopPowerSaveBlocker() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.powerSave {
		return
	}
	h.powerSave = false
	log.Info().Msg("Power save blocker stopped")
}

// ApplyLaunchOptions records the startup switches.
func (h *Headless) ApplyLaunchOptions(opts LaunchOptions) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.launch = opts
	log.Info().
		Bool("disable_hw_accel", opts.DisableHardwareAcceleration).
		Str("scale_factor", opts.ScaleFactor).
		Bool("touch_bar", opts.TouchBar).
		Bool("api_service", opts.APIService).
		Msg("Launch options applied")
}

// State returns a snapshot of the tracked state.
func (h *Headless) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := State{
		LyricsOpen:         h.lyricsOpen,
		LyricsPosition:     h.lyricsPosition,
		LyricsIgnoresMouse: h.ignoreMouse,
		Maximized:          h.maximized,
		Minimized:          h.minimized,
		Hidden:             h.hidden,
		TrayTitle:          h.trayTitle,
		HasTrayImage:       h.trayImage != nil,
		WindowTitle:        h.windowTitle,
		Playing:            h.playing,
		CurrentTime:        h.position,
		LoginItem:          h.loginItem,
		PowerSaveBlocking:  h.powerSave,
		Launch:             h.launch,
		Shortcuts:          make(map[string]string, len(h.shortcuts)),
	}
	if h.trayImage != nil {
		img := *h.trayImage
		st.TrayImage = &img
	}
	for k, v := range h.shortcuts {
		st.Shortcuts[k] = v
	}
	return st
}

// Quit asks the application to exit. Safe to call more than once.
func (h *Headless) Quit() {
	h.quitOnce.Do(func() {
		log.Info().Msg("Quit requested")
		close(h.quit)
	})
}

// Done is closed once Quit has been called.
func (h *Headless) Done() <-chan struct{} {
	return h.quit
}
