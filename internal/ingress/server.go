// Package ingress exposes the event bus over HTTP.
//
//	GET  /health  liveness probe, answers "OK"
//	GET  /events  names of every event the bus has seen
//	POST /events  {"event": "...", "source": "...", "args": [...]}
//
// POST requests are validated against a JSON Schema and dispatched on the
// request goroutine; the 202 response is written after every callback has
// run. A request without a source is attributed to "http:<remote addr>".
package ingress

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/vk/eventhost/internal/ctxlog"
	"github.com/vk/eventhost/internal/eventbus"
)

// MaxBodyBytes bounds the size of a POST /events body.
const MaxBodyBytes = 1 << 20

//go:embed event.schema.json
var eventSchema []byte

// Request is the body of POST /events.
type Request struct {
	Event  string `json:"event"`
	Source string `json:"source,omitempty"`
	Args   []any  `json:"args,omitempty"`
}

// Response is the body of every JSON answer.
type Response struct {
	Status string   `json:"status,omitempty"`
	Event  string   `json:"event,omitempty"`
	Source string   `json:"source,omitempty"`
	Error  string   `json:"error,omitempty"`
	Events []string `json:"events,omitempty"`
}

// Server serves the ingress endpoints.
type Server struct {
	bus    *eventbus.Registry
	logger *slog.Logger
	schema *jsonschema.Schema
	srv    *http.Server
}

// New compiles the request schema and builds the handler. The logger is
// taken from ctx.
func New(ctx context.Context, bus *eventbus.Registry) (*Server, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(eventSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse event schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("event.schema.json", doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	sch, err := c.Compile("event.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile event schema: %w", err)
	}
	return &Server{bus: bus, logger: ctxlog.FromContext(ctx), schema: sch}, nil
}

// Handler returns the routed endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /events", s.listHandler)
	mux.HandleFunc("POST /events", s.dispatchHandler)
	return mux
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when the port is 0.
func (s *Server) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ingress listen on %s: %w", addr, err)
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.logger.Info("Ingress server starting", "address", "http://"+ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Ingress server failed unexpectedly", "error", err)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops the server, waiting for in-flight dispatches.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		s.logger.Debug("Ingress server was not running.")
		return nil
	}
	s.logger.Info("Shutting down ingress server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("Ingress server shutdown failed", "error", err)
		return err
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	events := s.bus.Names()
	if events == nil {
		events = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"events": events})
}

func (s *Server) dispatchHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		status := http.StatusBadRequest
		if errors.As(err, new(*http.MaxBytesError)) {
			status = http.StatusRequestEntityTooLarge
		}
		s.logger.Debug("Failed to read ingress request body.", "remote_addr", r.RemoteAddr, "error", err)
		writeJSON(w, status, Response{Error: err.Error()})
		return
	}

	req, err := s.decode(body)
	if err != nil {
		s.logger.Debug("Rejected ingress request.", "remote_addr", r.RemoteAddr, "error", err)
		writeJSON(w, http.StatusBadRequest, Response{Error: err.Error()})
		return
	}
	if req.Source == "" {
		req.Source = "http:" + r.RemoteAddr
	}

	ctx := ctxlog.WithLogger(r.Context(), s.logger.With("remote_addr", r.RemoteAddr))
	if err := s.bus.Dispatch(ctx, req.Event, req.Source, req.Args...); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, Response{Event: req.Event, Source: req.Source, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, Response{Status: "dispatched", Event: req.Event, Source: req.Source})
}

// decode validates body against the schema before decoding it.
func (s *Server) decode(body []byte) (*Request, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("invalid event request: %w", err)
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
