package updater

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/moekoe-music/moekoe-shell/internal/domain/settings"
)

// Outcome is the result kind of an update check.
type Outcome string

const (
	OutcomeAvailable    Outcome = "update-available"
	OutcomeNotAvailable Outcome = "update-not-available"
	OutcomeUnsupported  Outcome = "update-unsupported"
	OutcomeError        Outcome = "update-error"
)

// SupportedPlatform is the only platform self-update is offered on.
const SupportedPlatform = "windows"

// Notice is what the UI is told after an update check.
type Notice struct {
	Outcome Outcome `json:"outcome"`
	Version string  `json:"version,omitempty"`
	Notes   string  `json:"notes,omitempty"`
	URL     string  `json:"url,omitempty"`
	// Quiet notices should not be shown to the user.
	Quiet   bool   `json:"quiet"`
	Error   string `json:"error,omitempty"`
	Timeout bool   `json:"timeout,omitempty"`
}

// ReleaseChecker is the release source used by Service.
type ReleaseChecker interface {
	Check(ctx context.Context, currentVersion string) (*Release, bool, error)
}

// SettingsUpdater persists the silent-check flag.
type SettingsUpdater interface {
	Update(fn func(*settings.Settings)) error
}

// Service runs update checks on behalf of the UI.
type Service struct {
	checker        ReleaseChecker
	settings       SettingsUpdater
	platform       string
	currentVersion string
}

// NewService creates an update service. settings may be nil.
func NewService(checker ReleaseChecker, settings SettingsUpdater, platform, currentVersion string) *Service {
	return &Service{
		checker:        checker,
		settings:       settings,
		platform:       platform,
		currentVersion: currentVersion,
	}
}

// CheckForUpdates checks for a newer release. It never fails; problems are reported
// in the returned notice.
func (s *Service) CheckForUpdates(ctx context.Context, silent bool) Notice {
	if s.platform != SupportedPlatform {
		log.Debug().Str("platform", s.platform).Msg("Self-update not supported on this platform")
		return Notice{Outcome: OutcomeUnsupported, Quiet: silent}
	}

	if s.settings != nil {
		if err := s.settings.Update(func(st *settings.Settings) { st.SilentCheck = silent }); err != nil {
			log.Warn().Err(err).Msg("Failed to persist silent update check flag")
		}
	}

	rel, newer, err := s.checker.Check(ctx, s.currentVersion)
	if err != nil {
		log.Error().Err(err).Msg("Update check failed")
		return Notice{
			Outcome: OutcomeError,
			Error:   err.Error(),
			Timeout: isTimeout(err),
		}
	}

	if !newer {
		log.Info().Str("current", s.currentVersion).Str("latest", rel.TagName).Msg("Already on the latest version")
		return Notice{Outcome: OutcomeNotAvailable, Version: rel.Version(), Quiet: silent}
	}

	log.Info().Str("current", s.currentVersion).Str("latest", rel.TagName).Msg("Update available")
	return Notice{
		Outcome: OutcomeAvailable,
		Version: rel.Version(),
		Notes:   rel.Notes(),
		URL:     rel.HTMLURL,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
