// Command relayserver runs the two-player lockstep relay: it never
// simulates the game itself, only registers peers and fans out
// ClientWorld/ClientInputs traffic between whichever two addresses have
// been peered.
package main

import (
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/duelcore/netcode/internal/config"
	"github.com/duelcore/netcode/internal/logging"
	"github.com/duelcore/netcode/internal/session"
	"github.com/duelcore/netcode/internal/transport"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to server config JSON ("+config.EnvOverride+" env var also accepted)")
	flag.Parse()

	cfg := config.LoadServer(*configPath)
	transport.SetRetryPolicy(cfg.RetryTimeoutMs.Duration(), cfg.MaxRetries)

	log := logging.New(cfg.Log)
	defer log.Sync()
	log.Info("relayserver starting", zap.String("version", version), zap.String("listen_addr", cfg.ListenAddr))

	conn, err := net.ListenPacket("udp", cfg.ListenAddr)
	if err != nil {
		log.Fatal("listen failed", zap.Error(err))
	}
	defer conn.Close()

	relay := session.New(conn, log)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, log)
	}

	go retryLoop(relay, cfg.RetryTimeoutMs.Duration())

	errCh := make(chan error, 1)
	go func() { errCh <- readLoop(conn, relay) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal("relay read loop failed", zap.Error(err))
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}
}

func readLoop(conn net.PacketConn, relay *session.Relay) error {
	buf := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		datagram := append([]byte(nil), buf[:n]...)
		relay.HandleDatagram(addr, datagram)
	}
}

func retryLoop(relay *session.Relay, interval time.Duration) {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		relay.RetryTick()
	}
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info("metrics server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics server stopped", zap.Error(err))
	}
}
