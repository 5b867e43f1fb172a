// Package dashboard serves the status/result HTTP+WebSocket API described
// in SPEC_FULL.md 4.J, grounded on scheduler/server.go and
// scheduler/health.go's *http.Server lifecycle and on
// mahendrapaipuri-ceems's pkg/api/http/server.go for the gorilla/mux
// path-param routing and swaggo/http-swagger wiring the teacher's flat
// http.NewServeMux cannot express.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/devskill-org/plant-dispatch/solver"
)

// ScenarioResult is one completed scenario's headline result, kept in
// memory so /scenarios and /scenarios/{name}/result have something to
// serve without re-querying the history store on every request.
type ScenarioResult struct {
	Scenario  string              `json:"scenario"`
	Status    string              `json:"status"`
	Timestamp string              `json:"timestamp"`
	Costs     solver.CostBreakdown `json:"costs"`
	Metadata  solver.RunMetadata  `json:"metadata"`
}

// Server is the dashboard's HTTP+WebSocket front end. Results are
// registered via Publish as each scenario finishes solving; it never
// drives the solve itself.
type Server struct {
	logger *log.Logger
	server *http.Server

	mu      sync.RWMutex
	results map[string]ScenarioResult

	upgrader  websocket.Upgrader
	clients   sync.Map // *websocket.Conn -> struct{}
	broadcast chan []byte
	done      chan struct{}

	startTime time.Time

	metricSolveSeconds *prometheus.HistogramVec
	metricObjective    *prometheus.GaugeVec
	metricNodes        *prometheus.GaugeVec
	metricMIPGap       *prometheus.GaugeVec
}

// NewServer builds a dashboard server bound to addr (e.g. ":8090"). It
// does not start listening until Start is called.
func NewServer(addr string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		logger:    logger,
		results:   make(map[string]ScenarioResult),
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),

		metricSolveSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "plant_dispatch_solve_seconds",
			Help:    "Wall-clock seconds spent in branch-and-bound per scenario solve.",
			Buckets: prometheus.DefBuckets,
		}, []string{"scenario"}),
		metricObjective: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plant_dispatch_objective",
			Help: "Objective value of the most recent solve per scenario.",
		}, []string{"scenario"}),
		metricNodes: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plant_dispatch_nodes_explored",
			Help: "Branch-and-bound nodes explored in the most recent solve per scenario.",
		}, []string{"scenario"}),
		metricMIPGap: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plant_dispatch_mip_gap",
			Help: "Configured relative MIP gap per scenario's most recent solve.",
		}, []string{"scenario"}),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/ready", s.readyHandler).Methods(http.MethodGet)
	router.HandleFunc("/scenarios", s.scenariosHandler).Methods(http.MethodGet)
	router.HandleFunc("/scenarios/{name}/result", s.resultHandler).Methods(http.MethodGet)
	router.HandleFunc("/scenarios/{name}/stream", s.streamHandler)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/swagger.json", s.swaggerJSONHandler).Methods(http.MethodGet)
	router.PathPrefix("/docs/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DomID("swagger-ui"),
	))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start runs the HTTP server in a background goroutine.
func (s *Server) Start() {
	go s.handleBroadcasts()
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("dashboard: server error: %v", err)
		}
	}()
}

// Stop gracefully shuts the server down, closing every WebSocket client.
func (s *Server) Stop(ctx context.Context) error {
	close(s.done)
	s.clients.Range(func(key, _ any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close()
		}
		return true
	})
	return s.server.Shutdown(ctx)
}

// Publish records scenario's finished result, updates the Prometheus
// gauges, and broadcasts it to any subscribed WebSocket clients.
func (s *Server) Publish(result ScenarioResult, solveSeconds float64) {
	s.mu.Lock()
	s.results[result.Scenario] = result
	s.mu.Unlock()

	s.metricSolveSeconds.WithLabelValues(result.Scenario).Observe(solveSeconds)
	s.metricObjective.WithLabelValues(result.Scenario).Set(result.Costs.Objective)
	s.metricNodes.WithLabelValues(result.Scenario).Set(float64(result.Metadata.NodesExplored))
	s.metricMIPGap.WithLabelValues(result.Scenario).Set(result.Metadata.MIPGap)

	if msg, err := json.Marshal(result); err == nil {
		select {
		case s.broadcast <- msg:
		default:
			s.logger.Printf("dashboard: broadcast channel full, dropping update for %q", result.Scenario)
		}
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (s *Server) scenariosHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.results))
	for name := range s.results {
		names = append(names, name)
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": names})
}

func (s *Server) resultHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	s.mu.RLock()
	result, ok := s.results[name]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, fmt.Sprintf("no result for scenario %q", name), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("dashboard: websocket upgrade failed for %q: %v", name, err)
		return
	}
	s.clients.Store(conn, struct{}{})
	defer func() {
		s.clients.Delete(conn)
		conn.Close()
	}()

	s.mu.RLock()
	if result, ok := s.results[name]; ok {
		conn.WriteJSON(result)
	}
	s.mu.RUnlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) swaggerJSONHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, swaggerDoc)
}

func (s *Server) handleBroadcasts() {
	for {
		select {
		case msg := <-s.broadcast:
			s.clients.Range(func(key, _ any) bool {
				conn, ok := key.(*websocket.Conn)
				if !ok {
					return true
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					s.clients.Delete(conn)
				}
				return true
			})
		case <-s.done:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// swaggerDoc is a minimal hand-authored OpenAPI description of this
// server's own routes, served at /swagger.json for http-swagger's UI.
var swaggerDoc = map[string]any{
	"swagger": "2.0",
	"info":    map[string]any{"title": "plant-dispatch dashboard", "version": "1.0"},
	"paths": map[string]any{
		"/health":                       map[string]any{"get": map[string]any{"summary": "Liveness check"}},
		"/ready":                        map[string]any{"get": map[string]any{"summary": "Readiness check"}},
		"/scenarios":                    map[string]any{"get": map[string]any{"summary": "List scenarios with a recorded result"}},
		"/scenarios/{name}/result":      map[string]any{"get": map[string]any{"summary": "Fetch a scenario's last result"}},
		"/scenarios/{name}/stream":      map[string]any{"get": map[string]any{"summary": "WebSocket: the named scenario's last result, then every scenario's newly published results"}},
		"/metrics":                      map[string]any{"get": map[string]any{"summary": "Prometheus metrics"}},
	},
}
