// Package socketio provides the Socket.io server UI clients use to discover,
// inspect, browse and control MusicCast devices.
package socketio

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/stellar-musiccast/internal/domain/browser"
	"github.com/edumarques81/stellar-musiccast/internal/domain/capability"
	"github.com/edumarques81/stellar-musiccast/internal/domain/control"
	"github.com/edumarques81/stellar-musiccast/internal/domain/registry"
	"github.com/edumarques81/stellar-musiccast/internal/infra/userdata"
)

const (
	// requestTimeout bounds the device calls made for one client event
	requestTimeout = 15 * time.Second

	// broadcastWindow collapses registry changes into one pushDevices
	broadcastWindow = 250 * time.Millisecond
)

// Settings persists user preferences.
type Settings interface {
	Theme() (userdata.Theme, error)
	SetTheme(userdata.Theme) error
}

// Deps are the components the server exposes to clients.
type Deps struct {
	Registry       *registry.Registry
	Cache          *capability.Cache
	Browsers       *browser.Manager
	Control        *control.Service
	Settings       Settings
	MaxConnections int // remote clients; 0 means unlimited
}

// Server handles Socket.io connections and events.
type Server struct {
	io        *socket.Server
	registry  *registry.Registry
	cache     *capability.Cache
	browsers  *browser.Manager
	control   *control.Service
	settings  Settings
	limiter   *ConnectionLimiter
	debouncer *BroadcastDebouncer

	// broadcast emits to every connected client.
	broadcast func(event string, payload any)

	mu      sync.RWMutex
	clients map[string]*socket.Socket
}

// NewServer creates a new Socket.io server.
func NewServer(deps Deps) (*Server, error) {
	if deps.Registry == nil || deps.Cache == nil || deps.Browsers == nil || deps.Control == nil || deps.Settings == nil {
		return nil, errors.New("socketio: missing dependency")
	}

	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	s := &Server{
		io:       socket.NewServer(nil, opts),
		registry: deps.Registry,
		cache:    deps.Cache,
		browsers: deps.Browsers,
		control:  deps.Control,
		settings: deps.Settings,
		limiter:  NewConnectionLimiter(deps.MaxConnections),
		clients:  make(map[string]*socket.Socket),
	}
	s.broadcast = func(event string, payload any) {
		s.io.Emit(event, payload)
	}
	s.debouncer = NewBroadcastDebouncer(broadcastWindow, map[string]func(){
		TopicDevices: s.BroadcastDevices,
		TopicTheme:   s.BroadcastTheme,
	})

	s.registry.OnChange(s.triggerDevices)
	s.setupHandlers()

	return s, nil
}

func (s *Server) triggerDevices() {
	s.debouncer.Trigger(TopicDevices)
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		remote := client.Handshake().Address

		log.Info().Str("id", clientID).Str("remote", remote).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		if evicted := s.limiter.Admit(clientID, remote); evicted != "" {
			s.evict(evicted)
		}

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		for _, event := range Events() {
			client.On(event, func(args ...any) {
				log.Debug().Str("id", clientID).Str("event", event).Interface("data", args).Msg("Client event")
				// Handlers block on device I/O; keep the socket's event loop free.
				go s.handle(client, event, args)
			})
		}

		emit(client, s.devicesReply())
		if theme, err := s.settings.Theme(); err == nil {
			emit(client, reply{event: "pushTheme", payload: themePayload{Theme: theme}})
		}
	})
}

// handle runs one client event and sends its reply or a pushError.
func (s *Server) handle(client *socket.Socket, event string, args []any) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	r, err := s.dispatch(ctx, event, args)
	if err != nil {
		code := errorCode(err)
		log.Warn().Err(err).Str("event", event).Str("code", code).Msg("Client event failed")
		client.Emit("pushError", errorPayload{Event: event, Error: err.Error(), Code: code})
		return
	}
	emit(client, r)
}

func emit(client *socket.Socket, r reply) {
	if r.event == "" {
		return
	}
	client.Emit(r.event, r.payload)
}

func (s *Server) evict(clientID string) {
	s.mu.Lock()
	client, ok := s.clients[clientID]
	delete(s.clients, clientID)
	s.mu.Unlock()

	if ok {
		log.Info().Str("id", clientID).Msg("Evicting oldest remote client")
		client.Disconnect(true)
	}
}

// BroadcastDevices sends the device list to all connected clients.
func (s *Server) BroadcastDevices() {
	devices := s.registry.Devices()
	s.broadcast("pushDevices", devices)

	s.mu.RLock()
	clientCount := len(s.clients)
	s.mu.RUnlock()
	log.Debug().Int("devices", len(devices)).Int("clients", clientCount).Msg("Broadcast devices")
}

// BroadcastTheme sends the stored theme to all connected clients.
func (s *Server) BroadcastTheme() {
	theme, err := s.settings.Theme()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read theme for broadcast")
		return
	}
	s.broadcast("pushTheme", themePayload{Theme: theme})
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

// Close stops pending broadcasts and closes the Socket.io server.
func (s *Server) Close() error {
	s.debouncer.Stop()
	s.io.Close(nil)
	return nil
}
