package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"

	"github.com/wireflow/wireflow/internal/components/videosink"
	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/metrics"
)

// Server is the HTTP control surface of spec.md §6: JSON endpoints for
// component/graph management, an SSE stream of metrics snapshots, an
// SSE stream of raw frame events, and a per-node WebSocket video feed.
type Server struct {
	api        *API
	metrics    *metrics.Engine
	addr       string
	maxConns   int
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer builds an HTTP control surface.
func NewServer(api *API, metricsEngine *metrics.Engine, addr string, maxConns int) *Server {
	return &Server{
		api:      api,
		metrics:  metricsEngine,
		addr:     addr,
		maxConns: maxConns,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Start binds the listener (wrapped in netutil.LimitListener to bound
// concurrent connections) and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/component", s.handleComponents)
	mux.HandleFunc("GET /graph/nodes", s.handleListNodes)
	mux.HandleFunc("POST /graph/nodes", s.handleAddNode)
	mux.HandleFunc("DELETE /graph/nodes/{id}", s.handleRemoveNode)
	mux.HandleFunc("GET /graph/edges", s.handleListEdges)
	mux.HandleFunc("POST /graph/edges", s.handleAddEdge)
	mux.HandleFunc("DELETE /graph/edges", s.handleRemoveEdge)
	mux.HandleFunc("/graph/start", s.handleStart)
	mux.HandleFunc("/graph/stop", s.handleStop)
	mux.HandleFunc("/metrics", s.handleMetricsSSE)
	mux.HandleFunc("/frames", s.handleFramesSSE)
	mux.HandleFunc("/video/ws/", s.handleVideoWS)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("control: listen %q: %w", s.addr, err)
	}
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}

	s.httpServer = &http.Server{Handler: mux}
	slog.Info("starting control surface", "addr", s.addr)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("control surface error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.api.ListComponents())
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.api.ListNodes())
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var p AddNodeParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, fmt.Errorf("%w: %v", core.ErrInvalidArgs, err))
		return
	}
	n, err := s.api.AddNode(p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	if err := s.api.RemoveNode(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleListEdges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.api.ListEdges())
}

func (s *Server) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	var p AddEdgeParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, fmt.Errorf("%w: %v", core.ErrInvalidArgs, err))
		return
	}
	e, err := s.api.AddEdge(p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// handleRemoveEdge implements DELETE /graph/edges: spec.md §6.1 has no
// synthetic edge id on the wire, so the request body carries the same
// four-tuple POST /graph/edges accepted.
func (s *Server) handleRemoveEdge(w http.ResponseWriter, r *http.Request) {
	var p AddEdgeParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, fmt.Errorf("%w: %v", core.ErrInvalidArgs, err))
		return
	}
	if err := s.api.RemoveEdge(p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.api.StartGraph(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.api.StopGraph(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// handleMetricsSSE streams every metrics.Snapshot as a server-sent
// event until the client disconnects.
func (s *Server) handleMetricsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan metrics.Snapshot, 8)
	unsub := s.metrics.Subscribe(func(snap metrics.Snapshot) {
		select {
		case ch <- snap:
		default:
			// slow client: drop this sample rather than block the engine
		}
	})
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-ch:
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleFramesSSE is a debug stream of raw channel publish events for
// a node's output slot, named via ?node=<id>&slot=<slot>.
func (s *Server) handleFramesSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	nodeID := r.URL.Query().Get("node")
	slot := r.URL.Query().Get("slot")
	ch, err := s.api.Runtime().Output(nodeID, slot)
	if err != nil {
		writeError(w, err)
		return
	}

	sub, err := ch.Subscribe(fmt.Sprintf("sse-frames-%p", r))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", core.ErrAlreadySubscribed, err))
		return
	}
	defer ch.Unsubscribe(sub.ID())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	done := r.Context().Done()
	for {
		type result struct {
			v  any
			ok bool
		}
		recv := make(chan result, 1)
		go func() {
			v, ok := sub.Receive()
			recv <- result{v, ok}
		}()

		select {
		case <-done:
			return
		case res := <-recv:
			if !res.ok {
				return
			}
			data, err := json.Marshal(res.v)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleVideoWS streams JPEG frames from a jpeg_frame_sink node's
// internal fan-out channel to a WebSocket client, one binary message
// per frame.
func (s *Server) handleVideoWS(w http.ResponseWriter, r *http.Request) {
	nodeID := r.URL.Path[len("/video/ws/"):]
	n, err := s.api.Graph().Node(nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	sink, ok := n.Instance.(*videosink.Node)
	if !ok {
		http.Error(w, "node is not a video sink", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("video websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	frames := sink.Frames()
	sub, err := frames.Subscribe(fmt.Sprintf("ws-video-%p", r))
	if err != nil {
		return
	}
	defer frames.Unsubscribe(sub.ID())

	for {
		v, ok := sub.Receive()
		if !ok {
			return
		}
		frame, ok := v.(videosink.Frame)
		if !ok {
			continue
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes spec.md §7's well-formed JSON error body
// `{error: <code>, detail: <message>}` with the status spec.md §6.1
// assigns that error kind.
func writeError(w http.ResponseWriter, err error) {
	code, status := ErrCode(err)
	writeJSON(w, status, map[string]string{"error": code, "detail": err.Error()})
}
