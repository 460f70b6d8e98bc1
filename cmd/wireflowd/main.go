// Command wireflowd runs the dataflow pipeline daemon: it loads
// configuration, builds the component registry, graph, and runtime,
// and serves the HTTP control surface, the Prometheus telemetry
// endpoint, and (if configured) the UDS local control plane until a
// shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wireflow/wireflow/internal/config"
	"github.com/wireflow/wireflow/internal/control"
	"github.com/wireflow/wireflow/internal/graph"
	"github.com/wireflow/wireflow/internal/localctl"
	"github.com/wireflow/wireflow/internal/metrics"
	"github.com/wireflow/wireflow/internal/obslog"
	"github.com/wireflow/wireflow/internal/registry"
	"github.com/wireflow/wireflow/internal/runtime"
	"github.com/wireflow/wireflow/internal/telemetry"

	// Blank-imported for their init()-time registration into
	// registry.Default, mirroring the teacher's plugin registration
	// via its own blank-imported plugins package.
	_ "github.com/wireflow/wireflow/internal/components/consolesink"
	_ "github.com/wireflow/wireflow/internal/components/countersink"
	_ "github.com/wireflow/wireflow/internal/components/dsp"
	_ "github.com/wireflow/wireflow/internal/components/netsource"
	_ "github.com/wireflow/wireflow/internal/components/passthrough"
	_ "github.com/wireflow/wireflow/internal/components/sipsource"
	_ "github.com/wireflow/wireflow/internal/components/timer"
	_ "github.com/wireflow/wireflow/internal/components/videosink"
)

func main() {
	configFile := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wireflowd: load config: %v\n", err)
		os.Exit(1)
	}

	if err := obslog.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "wireflowd: init logging: %v\n", err)
		os.Exit(1)
	}

	log := slog.Default().With("component", "wireflowd")
	log.Info("starting wireflowd", "listen_addr", cfg.Server.ListenAddr, "socket_path", cfg.Server.SocketPath)

	reg := registry.Default
	g := graph.New(reg)
	rt := runtime.New(g)
	metricsEngine := metrics.NewEngine(rt, cfg.Metrics.SampleInterval)
	api := control.New(reg, g, rt, cfg.Server.ShutdownTimeout)

	httpServer := control.NewServer(api, metricsEngine, cfg.Server.ListenAddr, cfg.Server.MaxConnections)

	var telemetryServer *telemetry.Server
	if cfg.Metrics.TelemetryAddr != "" {
		telemetryServer = telemetry.NewServer(cfg.Metrics.TelemetryAddr, cfg.Metrics.TelemetryPath)
	}

	var udsServer *localctl.Server
	if cfg.Server.SocketPath != "" {
		udsServer = localctl.NewServer(cfg.Server.SocketPath, api)
	}

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	go metricsEngine.Run(metricsCtx)

	if err := httpServer.Start(context.Background()); err != nil {
		log.Error("failed to start control surface", "error", err)
		os.Exit(1)
	}
	if telemetryServer != nil {
		if err := telemetryServer.Start(context.Background()); err != nil {
			log.Error("failed to start telemetry server", "error", err)
			os.Exit(1)
		}
	}

	var udsCtx context.Context
	var stopUDS context.CancelFunc
	if udsServer != nil {
		udsCtx, stopUDS = context.WithCancel(context.Background())
		go func() {
			if err := udsServer.Start(udsCtx); err != nil {
				log.Error("localctl server error", "error", err)
			}
		}()
	}

	log.Info("wireflowd started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if rt != nil {
			if err := rt.Stop(cfg.Server.ShutdownTimeout); err != nil && err != runtime.ErrNotRunning {
				log.Error("runtime stop error", "error", err)
			}
		}
		if stopUDS != nil {
			stopUDS()
		}
		stopMetrics()
		if err := httpServer.Stop(shutdownCtx); err != nil {
			log.Error("control surface stop error", "error", err)
		}
		if telemetryServer != nil {
			if err := telemetryServer.Stop(shutdownCtx); err != nil {
				log.Error("telemetry server stop error", "error", err)
			}
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("wireflowd stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after shutdown timeout")
		os.Exit(1)
	}
}
