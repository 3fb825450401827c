package presenter

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = time.Second
	// Maximum control message size allowed from peer.
	maxMessageSize = 512

	pingPeriod = 5 * time.Second
	// Pings to tolerate losing before concluding the peer is gone.
	pongWait = pingPeriod * 3
)

// Server publishes frames over websocket and accepts controls over HTTP
// and websocket text messages.
type Server struct {
	addr     string
	session  *Session
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[chan Frame]struct{}
}

func NewServer(addr string, session *Session, logger zerolog.Logger) *Server {
	return &Server{
		addr:    addr,
		session: session,
		logger:  logger,
		clients: make(map[chan Frame]struct{}),
	}
}

// Handler routes:
//
//	GET  /healthz
//	GET  /frame
//	POST /control/{name}
//	GET  /ws
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/frame", s.handleFrame).Methods(http.MethodGet)
	r.HandleFunc("/control/{name}", s.handleControl).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)
	return r
}

// Run serves HTTP and ticks the session until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("addr", s.addr).Msg("serving")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.session.Run(gctx, s.broadcast)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Frame())
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.session.Apply(name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("control", name).Str("via", "http").Msg("control applied")
	writeJSON(w, http.StatusOK, s.session.Frame())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.logger.Info().Str("remote", r.RemoteAddr).Msg("client connected")
	err = s.serveClient(r.Context(), conn)
	s.logger.Info().Str("remote", r.RemoteAddr).AnErr("reason", err).Msg("client disconnected")
}

func (s *Server) serveClient(ctx context.Context, conn *websocket.Conn) error {
	updates := s.subscribe()
	defer s.unsubscribe(updates)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return conn.Close()
	})
	g.Go(func() error {
		return s.readControls(conn)
	})
	g.Go(func() error {
		for range channerics.NewTicker(gctx.Done(), pingPeriod) {
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		if err := s.publish(conn, s.session.Frame()); err != nil {
			return err
		}
		for {
			select {
			case <-gctx.Done():
				return nil
			case f := <-updates:
				if err := s.publish(conn, f); err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}

func (s *Server) publish(conn *websocket.Conn, f Frame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(f)
}

// readControls applies text messages as control names. Unknown names are
// ignored. It returns when the connection fails or closes.
func (s *Server) readControls(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		name := string(msg)
		if err := s.session.Apply(name); err != nil {
			s.logger.Debug().Str("control", name).Msg("ignored control")
			continue
		}
		s.logger.Info().Str("control", name).Str("via", "websocket").Msg("control applied")
	}
}

func (s *Server) subscribe() chan Frame {
	ch := make(chan Frame, 1)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan Frame) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// broadcast hands f to every client, replacing any frame the client has
// not picked up yet.
func (s *Server) broadcast(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- f:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- f:
			default:
			}
		}
	}
}
