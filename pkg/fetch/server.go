// Package fetch implements the dyad.fetch data plane: a small HTTP endpoint
// served by every producer rank, and the client consumers use to pull file
// contents from the owner rank identified through the KVS.
//
// The wire contract: POST /v1/dyad.fetch with a JSON body {"upath": "<path>"},
// answered with the raw file bytes. An empty 200 response distinguishes
// end-of-stream-before-data from a transport failure.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FetchPath is the URL path of the fetch endpoint.
const FetchPath = "/v1/dyad.fetch"

// Request is the JSON body of a fetch call. UPath is the user path relative
// to the producer's managed directory.
type Request struct {
	UPath string `json:"upath"`
}

// OpenFunc opens a file for reading. The server reads produced files through
// one of these so callers can route it through their real (un-hooked) open.
type OpenFunc func(name string) (*os.File, error)

// Pinger reports transport liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config configures a fetch server.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:0" for an ephemeral port.
	Addr string

	// Prefix is the producer-managed directory files are served from.
	Prefix string

	// Open reads produced files; defaults to os.Open.
	Open OpenFunc

	// Pinger backs the /healthz endpoint; may be nil.
	Pinger Pinger

	// Debug enables per-request logging.
	Debug bool
}

// Server answers dyad.fetch requests for one producer rank.
type Server struct {
	cfg    Config
	ln     net.Listener
	server *http.Server
}

// NewServer creates a fetch server. Start must be called before Addr.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Prefix == "" {
		return nil, fmt.Errorf("producer prefix cannot be empty")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	if cfg.Open == nil {
		cfg.Open = os.Open
	}
	return &Server{cfg: cfg}, nil
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %q: %w", s.cfg.Addr, err)
	}
	s.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc(FetchPath, s.fetchHandler)
	mux.HandleFunc("/healthz", s.healthCheckHandler)

	s.server = &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// No write timeout: a fetch response is as large as the file.
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] Fetch server error: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// URL returns the base URL consumers should be pointed at.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	return "http://" + addr
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// fetchHandler handles POST /v1/dyad.fetch requests.
func (s *Server) fetchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reqID := uuid.New().String()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[ERROR] Fetch %s: bad request body: %v", reqID, err)
		http.Error(w, "Bad request body", http.StatusBadRequest)
		return
	}

	upath, err := sanitizeUserPath(req.UPath)
	if err != nil {
		log.Printf("[ERROR] Fetch %s: rejected upath %q: %v", reqID, req.UPath, err)
		http.Error(w, "Bad user path", http.StatusBadRequest)
		return
	}

	path := filepath.Join(s.cfg.Prefix, upath)
	f, err := s.cfg.Open(path)
	if err != nil {
		log.Printf("[ERROR] Fetch %s: cannot open %q: %v", reqID, path, err)
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Dyad-Request-Id", reqID)
	n, err := io.Copy(w, f)
	if err != nil {
		// Headers are gone; all we can do is log.
		log.Printf("[ERROR] Fetch %s: failed streaming %q after %d bytes: %v", reqID, path, n, err)
		return
	}
	if s.cfg.Debug {
		log.Printf("[DEBUG] Fetch %s: served %q (%d bytes)", reqID, upath, n)
	}
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if the KVS transport is reachable, 503 otherwise.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{Status: "healthy"}

	if s.cfg.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.cfg.Pinger.Ping(ctx); err != nil {
			response.Status = "unhealthy"
			response.KVS = "disconnected"
			response.Error = err.Error()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(response)
			return
		}
		response.KVS = "connected"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	KVS    string `json:"kvs,omitempty"`
	Error  string `json:"error,omitempty"`
}

// sanitizeUserPath rejects user paths that would escape the managed prefix.
func sanitizeUserPath(upath string) (string, error) {
	if upath == "" {
		return "", fmt.Errorf("empty user path")
	}
	if filepath.IsAbs(upath) {
		return "", fmt.Errorf("user path must be relative")
	}
	clean := filepath.Clean(upath)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("user path escapes the managed directory")
	}
	return clean, nil
}
