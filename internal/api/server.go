package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atlas-desktop/owlqn-trainer/internal/checkpoint"
)

// Server exposes a training run's progress over HTTP and WebSocket: the
// latest accepted iteration, the newest checkpoint on disk, and a
// Prometheus metrics endpoint. It is generalized from the teacher's
// backtest-progress server to report optimizer state instead.
type Server struct {
	logger *zap.Logger
	addr   string

	checkpointDir  string
	statesFilebase string

	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	hub        *Hub
	stopHub    chan struct{}

	mu     sync.RWMutex
	latest IterationReport
	done   *TerminationReport

	iterationsTotal prometheus.Counter
	currentValue    prometheus.Gauge
}

// NewServer builds a Server bound to addr, reporting checkpoints found
// under checkpointDir/statesFilebase-NNNNN. reg may be nil to skip
// metric registration (e.g. when more than one Server is constructed in
// a test process).
func NewServer(logger *zap.Logger, addr, checkpointDir, statesFilebase string, reg prometheus.Registerer) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:         logger,
		addr:           addr,
		checkpointDir:  checkpointDir,
		statesFilebase: statesFilebase,
		router:         mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		hub:     NewHub(logger),
		stopHub: make(chan struct{}),
		iterationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "owlqn_iterations_total",
			Help: "Accepted outer iterations reported to the status server.",
		}),
		currentValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "owlqn_objective_value",
			Help: "Objective value at the most recently accepted iterate.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.iterationsTotal, s.currentValue)
	}
	s.setupRoutes()
	return s
}

// Router exposes the underlying mux.Router for use in httptest servers.
func (s *Server) Router() *mux.Router { return s.router }

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/v1/checkpoint/latest", s.handleLatestCheckpoint).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start begins serving and running the broadcast hub. It blocks until the
// server stops; call it in its own goroutine.
func (s *Server) Start() error {
	go s.hub.Run(s.stopHub)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.logger.Info("starting status server", zap.String("addr", s.addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the HTTP server and broadcast hub down.
func (s *Server) Stop(ctx context.Context) error {
	close(s.stopHub)
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ReportIteration records the latest accepted iteration and broadcasts it
// to connected clients and to Prometheus. Called by cmd/trainer after
// every engine call that advanced the iteration count.
func (s *Server) ReportIteration(r IterationReport) {
	s.mu.Lock()
	s.latest = r
	s.mu.Unlock()

	s.iterationsTotal.Inc()
	s.currentValue.Set(r.Value)
	s.hub.PublishIteration(r)
}

// ReportTermination records and broadcasts the terminal outcome.
func (s *Server) ReportTermination(reason string) {
	r := TerminationReport{Reason: reason}
	s.mu.Lock()
	s.done = &r
	s.mu.Unlock()
	s.hub.PublishTermination(r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest, done := s.latest, s.done
	s.mu.RUnlock()

	resp := map[string]interface{}{"latest": latest}
	if done != nil {
		resp["termination"] = done
	}
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleLatestCheckpoint(w http.ResponseWriter, r *http.Request) {
	path, seq, ok, err := checkpoint.Latest(s.checkpointDir, s.statesFilebase)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no checkpoint found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"path":     path,
		"sequence": seq,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{id: uuid.New().String(), conn: conn, send: make(chan []byte, 32)}
	s.hub.register <- c

	go c.writePump()
	go c.readPump(s.hub)
}
