package main

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/moekoe-music/moekoe-shell/internal/apibase"
	"github.com/moekoe-music/moekoe-shell/internal/shell"
	"github.com/moekoe-music/moekoe-shell/internal/version"
)

// baseURLSource is what the REST handlers need from the resolver.
type baseURLSource interface {
	BaseURL() string
	Default() string
	PlayableAudioURL(raw string) string
}

// sessionInfo is what the session endpoint reports.
type sessionInfo interface {
	IsAuthenticated() bool
}

// clientCounter reports connected Socket.IO clients.
type clientCounter interface {
	ClientCount() int
}

// windowState reports what the shell tracks.
type windowState interface {
	State() shell.State
}

type apiHandlers struct {
	resolver baseURLSource
	session  sessionInfo
	clients  clientCounter
	window   windowState
	deviceID string
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *apiHandlers) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if h.clients != nil {
		resp["clients"] = h.clients.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *apiHandlers) versionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.GetInfo())
}

func (h *apiHandlers) apiBase(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"baseUrl":        h.resolver.BaseURL(),
		"defaultBaseUrl": h.resolver.Default(),
	})
}

func (h *apiHandlers) validateAPIBase(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	v := apibase.Validate(raw)

	status := http.StatusOK
	if !v.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]interface{}{
		"input":   raw,
		"ok":      v.OK,
		"value":   v.Value,
		"message": v.Message(),
	})
}

func (h *apiHandlers) playableAudio(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "url parameter required", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"input":   raw,
		"url":     h.resolver.PlayableAudioURL(raw),
		"proxied": apibase.ShouldProxyAudioURL(raw),
	})
}

func (h *apiHandlers) sessionStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"deviceId": h.deviceID}
	if h.session != nil {
		resp["authenticated"] = h.session.IsAuthenticated()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *apiHandlers) windowStatus(w http.ResponseWriter, r *http.Request) {
	if h.window == nil {
		http.Error(w, "no shell attached", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.window.State())
}

// spaHandler serves files from dir and falls back to index.html for client-side routes.
func spaHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.ServeFile(w, r, index)
			return
		}
		path := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			http.ServeFile(w, r, index)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

// newMux wires every HTTP route. socket and staticDir are optional.
func newMux(h *apiHandlers, socket http.Handler, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	if socket != nil {
		mux.Handle("/socket.io/", socket)
	}

	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/api/v1/version", h.versionInfo)
	mux.HandleFunc("/api/v1/api-base", h.apiBase)
	mux.HandleFunc("/api/v1/api-base/validate", h.validateAPIBase)
	mux.HandleFunc("/api/v1/audio/playable", h.playableAudio)
	mux.HandleFunc("/api/v1/session", h.sessionStatus)
	mux.HandleFunc("/api/v1/window", h.windowStatus)

	if staticDir != "" {
		log.Info().Str("dir", staticDir).Msg("Serving static files")
		mux.Handle("/", spaHandler(staticDir))
	}

	return mux
}
