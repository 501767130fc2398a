package monitor

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/edaniels/golog"
	"github.com/gorilla/websocket"

	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/drive"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // calibration tool on a local network
	},
}

// Server serves the diagnostic endpoints: the live event stream on /ws, the
// latest control snapshot on /state, prometheus metrics on /metrics.
type Server struct {
	hub        *Hub
	metrics    *Metrics
	pub        *drive.Publisher
	logger     golog.Logger
	addr       string
	httpServer *http.Server
}

func NewServer(hub *Hub, metrics *Metrics, pub *drive.Publisher, logger golog.Logger, addr string) *Server {
	return &Server{
		hub:     hub,
		metrics: metrics,
		pub:     pub,
		logger:  logger,
		addr:    addr,
	}
}

func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/state", s.handleState)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	s.logger.Infow("monitor listening", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// handleState returns the latest control snapshot, the same tuple the drive
// loop polls.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.pub.Latest()); err != nil {
		s.logger.Errorw("encoding state", "error", err)
	}
}
