package relay

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"chat-relay/contract"
	"chat-relay/wire"
)

const readBufferSize = 4096

// Server accepts connections and runs one handler goroutine per session.
// Registry, directory and router are wired once at construction; behavior
// changes go through the command table, not through new handlers.
type Server struct {
	log      *slog.Logger
	registry *Registry
	rooms    *Directory
	router   *Router

	listener net.Listener
	mu       sync.Mutex
	closed   bool
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

func NewServer(log *slog.Logger, history contract.HistoryLog) *Server {
	rooms := NewDirectory(log)
	registry := NewRegistry(log, rooms)
	rooms.onEvict = registry.Unbind
	commands := NewCommands(log, registry, rooms, history)
	router := NewRouter(log, registry, rooms, commands, history)
	return &Server{
		log:      log,
		registry: registry,
		rooms:    rooms,
		router:   router,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Start binds addr and begins accepting. Non-blocking; use Stop to shut
// down.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.wg.Add(1)
	go s.acceptLoop()
	s.log.Info("relay listening", "addr", ln.Addr().String())
	return nil
}

// Addr reports the bound address, useful when starting on port 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Stop closes the listener and waits for the handler goroutines to finish
// their cleanup.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	s.log.Info("relay stopped")
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.log.Error("accept failed", "error", err)
			}
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn is the per-connection loop: blocking read, split coalesced
// frames, dispatch each in order. Terminal cleanup runs exactly once on
// every exit path.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()

	sess := NewSession(conn)
	s.log.Info("connection accepted", "addr", sess.RemoteAddr())
	defer func() {
		s.registry.Unbind(sess)
		sess.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.log.Info("connection closed", "addr", sess.RemoteAddr())
	}()

	buf := make([]byte, readBufferSize)
	var pending []byte
	for {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			return
		}
		pending = append(pending, buf[:n]...)

		frames, rest := wire.Split(pending)
		for _, frame := range frames {
			m, err := wire.Decode(frame)
			if err != nil {
				// Protocol error: drop the frame, keep the
				// connection.
				s.log.Warn("dropping malformed frame",
					"addr", sess.RemoteAddr(), "error", err)
				continue
			}
			s.router.Dispatch(sess, m)
		}
		pending = append(pending[:0:0], rest...)
	}
}
