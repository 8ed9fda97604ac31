// Package devserver exposes the live event stream over a local WebSocket
// endpoint while the app runs in dev mode. The tail console is its client.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/oriel-shell/oriel/pkg/events"
)

// EventsPath is the WebSocket endpoint path.
const EventsPath = "/events"

// subscriberBuffer is the per-client event buffer. Clients that fall this
// far behind start losing events rather than stalling the bus.
const subscriberBuffer = 64

const writeTimeout = 5 * time.Second

// Server streams bus events to authenticated WebSocket clients.
type Server struct {
	bus   *events.Bus
	token string
	log   zerolog.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// New creates a dev server. token must match the ?token= query parameter
// of incoming connections.
func New(bus *events.Bus, token string, log zerolog.Logger) *Server {
	return &Server{
		bus:   bus,
		token: token,
		log:   log.With().Str("component", "devserver").Logger(),
		done:  make(chan struct{}),
	}
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when a port of 0 was requested.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("devserver: listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(EventsPath, s.handleEvents)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.srv = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("serve")
		}
	}()

	bound := ln.Addr().String()
	s.log.Info().Str("addr", bound).Msg("dev event stream listening")
	return bound, nil
}

// Addr returns the bound address, or empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down and disconnects all clients.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	select {
	case <-s.done:
	default:
		close(s.done)
	}
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("devserver: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Query().Get("token") != s.token {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rejected event stream client: bad token")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket accept")
		return
	}
	defer func() { _ = conn.CloseNow() }()

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("event stream client connected")

	sub := s.bus.Subscribe(subscriberBuffer)
	defer s.bus.Unsubscribe(sub)

	// The client never sends application frames; CloseRead keeps control
	// frames working and cancels the context when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			_ = conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		case ev, ok := <-sub.C:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "event bus closed")
				return
			}
			if err := s.writeEvent(ctx, conn, ev); err != nil {
				s.log.Debug().Err(err).Msg("event stream client dropped")
				return
			}
		}
	}
}

func (s *Server) writeEvent(ctx context.Context, conn *websocket.Conn, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
