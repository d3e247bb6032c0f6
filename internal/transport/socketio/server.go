// Package socketio provides the Socket.io server the main UI and the lyrics overlay
// use to talk to the shell.
package socketio

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
)

// Server handles Socket.io connections and forwards their events to the router.
type Server struct {
	io       *socket.Server
	router   *Router
	registry *RoleRegistry
	mu       sync.RWMutex
	clients  map[string]*socket.Socket
}

// NewServer creates a new Socket.io server and makes it the router's emitter.
func NewServer(router *Router) (*Server, error) {
	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	server := socket.NewServer(nil, opts)

	s := &Server{
		io:       server,
		router:   router,
		registry: NewRoleRegistry(),
		clients:  make(map[string]*socket.Socket),
	}

	router.SetEmitter(s)
	s.setupHandlers()

	return s, nil
}

// setupHandlers registers the connection handler and one handler per routed event.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())

		log.Info().Str("id", clientID).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}

			role, _ := s.registry.Remove(clientID)
			log.Info().Str("id", clientID).Str("role", string(role)).Str("reason", reason).Msg("Client disconnected")

			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		client.On("register", func(args ...any) {
			role, ok := ParseRole(argString(args, 0))
			if !ok {
				log.Warn().Str("id", clientID).Interface("data", args).Msg("Invalid role registration")
				return
			}

			if replaced := s.registry.Register(clientID, role); replaced != "" {
				log.Info().Str("role", string(role)).Str("old", replaced).Str("new", clientID).Msg("Role taken over by newer client")
			} else {
				log.Info().Str("id", clientID).Str("role", string(role)).Msg("Client registered")
			}
			client.Emit("registered", string(role))
		})

		for _, event := range s.router.Events() {
			client.On(event, func(args ...any) {
				role, ok := s.registry.RoleOf(clientID)
				if !ok {
					log.Warn().Str("id", clientID).Str("event", event).Msg("Event from unregistered client")
					return
				}
				s.router.Dispatch(role, event, args...)
			})
		}
	})
}

// EmitTo sends an event to the socket holding role.
func (s *Server) EmitTo(role Role, event string, args ...any) bool {
	clientID, ok := s.registry.Lookup(role)
	if !ok {
		log.Debug().Err(errNoSocket).Str("role", string(role)).Str("event", event).Msg("Event dropped")
		return false
	}

	s.mu.RLock()
	client, ok := s.clients[clientID]
	s.mu.RUnlock()
	if !ok {
		log.Debug().Err(errNoSocket).Str("role", string(role)).Str("event", event).Msg("Event dropped")
		return false
	}

	client.Emit(event, args...)
	return true
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close closes the Socket.io server.
func (s *Server) Close() error {
	s.io.Close(nil)
	return nil
}
