// Package lyrics drives the macOS status-bar lyric: what to draw, when to clear it,
// and how to turn the rendered canvas into a tray image.
package lyrics

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultClearDelay is how long an empty lyric has to persist before the status bar
// is cleared. Short gaps between lines do not blank the tray.
const DefaultClearDelay = 2 * time.Second

// Sink performs the status-bar updates decided by StatusBar.
type Sink interface {
	// RenderStatusBar asks the UI to draw text; "" draws the placeholder.
	RenderStatusBar(text string)
	// ResetStatusBar restores the plain tray icon.
	ResetStatusBar()
}

// StatusBar debounces status-bar lyric updates.
type StatusBar struct {
	delay   time.Duration
	enabled func() bool
	sink    Sink

	mu      sync.Mutex
	last    string
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewStatusBar creates a status bar. enabled is consulted on every update and again
// when a delayed clear fires.
func NewStatusBar(delay time.Duration, enabled func() bool, sink Sink) *StatusBar {
	if delay <= 0 {
		delay = DefaultClearDelay
	}
	return &StatusBar{
		delay:   delay,
		enabled: enabled,
		sink:    sink,
	}
}

// Update handles the current lyric line reported by the player.
func (b *StatusBar) Update(current string) {
	b.mu.Lock()

	if b.stopped {
		b.mu.Unlock()
		return
	}

	if !b.enabled() {
		if b.last == "" {
			b.mu.Unlock()
			return
		}
		b.cancelClear()
		b.last = ""
		b.mu.Unlock()

		log.Debug().Msg("Status bar lyrics disabled, resetting tray")
		b.sink.ResetStatusBar()
		return
	}

	if current != "" {
		b.cancelClear()
		changed := current != b.last
		b.last = current
		b.mu.Unlock()

		if changed {
			b.sink.RenderStatusBar(current)
		}
		return
	}

	if b.timer == nil && b.last != "" {
		gen := b.gen
		b.timer = time.AfterFunc(b.delay, func() { b.clear(gen) })
	}
	b.mu.Unlock()
}

// Last returns the lyric currently shown in the status bar.
func (b *StatusBar) Last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Pending reports whether a delayed clear is scheduled.
func (b *StatusBar) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timer != nil
}

// clear runs when an empty lyric outlasted the delay. A clear scheduled before the
// latest cancel carries a stale generation and does nothing.
func (b *StatusBar) clear(gen uint64) {
	b.mu.Lock()
	if b.stopped || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	b.gen++
	if !b.enabled() {
		b.mu.Unlock()
		return
	}
	b.last = ""
	b.mu.Unlock()

	b.sink.RenderStatusBar("")
}

// cancelClear stops a pending clear. Callers hold the lock.
func (b *StatusBar) cancelClear() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
}

// Stop cancels any pending clear and ignores further updates.
func (b *StatusBar) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	b.cancelClear()
}
