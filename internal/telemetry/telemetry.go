// Package telemetry exposes Prometheus metrics for the runtime on a
// dedicated HTTP server, independent of the spec's own SSE /metrics
// stream (see internal/metrics). Operators who already run a
// Prometheus scrape pipeline point it here; the SSE stream stays
// reserved for the control UI's live view.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors are the promauto-registered series the runtime updates as
// it samples channels and nodes.
var (
	ChannelMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wireflow_channel_messages_total",
			Help: "Total messages published on a channel",
		},
		[]string{"channel"},
	)

	ChannelBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wireflow_channel_bytes_total",
			Help: "Total bytes published on a channel",
		},
		[]string{"channel"},
	)

	ChannelBufferDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wireflow_channel_buffer_depth",
			Help: "Current max buffer depth across a channel's subscribers",
		},
		[]string{"channel"},
	)

	ChannelSubscriberLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wireflow_channel_subscriber_lag",
			Help: "Cumulative dropped messages for a subscriber",
		},
		[]string{"channel", "subscriber"},
	)

	NodeStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wireflow_node_status",
			Help: "Current status of a node (0=startup,1=running,2=stopped,3=error)",
		},
		[]string{"node", "status"},
	)
)

// StatusValue maps a core.Status to the numeric value NodeStatus expects.
func StatusValue(s string) float64 {
	switch s {
	case "startup":
		return 0
	case "running":
		return 1
	case "stopped":
		return 2
	case "error":
		return 3
	default:
		return -1
	}
}

// Server is the dedicated Prometheus scrape endpoint.
type Server struct {
	addr   string
	path   string
	server *http.Server
}

// NewServer builds a telemetry server. path defaults to "/metrics".
func NewServer(addr, path string) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{addr: addr, path: path}
}

// Start launches the server in the background. A non-nil error only
// indicates the listener itself could not be set up synchronously;
// runtime errors from Serve are logged, not returned.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("telemetry: listen %q: %w", s.addr, err)
	}

	slog.Info("starting telemetry server", "addr", s.addr, "path", s.path)

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("telemetry server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	slog.Info("stopping telemetry server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("telemetry server shutdown: %w", err)
	}
	return nil
}
