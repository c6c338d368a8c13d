// Package service runs the auxiliary HTTP endpoints of a long running junction
// process.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ethereum-optimism/infra/op-junction/metrics"
	"github.com/ethereum/go-ethereum/log"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"
)

// Config selects which endpoints are served. An empty address disables the
// endpoint.
type Config struct {
	HealthzAddr string
	MetricsAddr string
	Log         log.Logger
}

// DefaultHealthzAddr is used by the CLI when no address is configured
func DefaultHealthzAddr() string {
	return net.JoinHostPort(HealthzHost, HealthzPort)
}

type Service struct {
	cfg     Config
	Healthz *HealthzServer
	Metrics *MetricsServer

	healthzAddr net.Addr
	metricsAddr net.Addr
}

func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Service{
		cfg:     cfg,
		Healthz: &HealthzServer{log: cfg.Log},
		Metrics: &MetricsServer{},
	}
}

// Start binds every configured endpoint. Serving happens in the background;
// a server that stops unexpectedly is logged and counted.
func (s *Service) Start() error {
	s.cfg.Log.Info("service starting")

	if s.cfg.HealthzAddr != "" {
		addr, errCh, err := s.Healthz.Listen(s.cfg.HealthzAddr)
		if err != nil {
			metrics.RecordErrorDetails("error starting healthz server", err)
			return fmt.Errorf("starting healthz server: %w", err)
		}
		s.healthzAddr = addr
		s.cfg.Log.Info("started healthz server", "addr", addr)
		go s.watch("healthz", errCh)
	}

	if s.cfg.MetricsAddr != "" {
		addr, errCh, err := s.Metrics.Listen(s.cfg.MetricsAddr)
		if err != nil {
			metrics.RecordErrorDetails("error starting metrics server", err)
			return fmt.Errorf("starting metrics server: %w", err)
		}
		s.metricsAddr = addr
		s.cfg.Log.Info("started metrics server", "addr", addr)
		go s.watch("metrics", errCh)
	}

	s.cfg.Log.Info("service started")
	return nil
}

func (s *Service) watch(name string, errCh <-chan error) {
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.cfg.Log.Error("server stopped", "server", name, "err", err)
		metrics.RecordErrorDetails("error serving "+name, err)
	}
}

// HealthzAddr returns the bound healthz address, or nil when not serving
func (s *Service) HealthzAddr() net.Addr {
	return s.healthzAddr
}

// MetricsAddr returns the bound metrics address, or nil when not serving
func (s *Service) MetricsAddr() net.Addr {
	return s.metricsAddr
}

func (s *Service) Shutdown(ctx context.Context) {
	s.cfg.Log.Info("service shutting down")

	_ = s.Healthz.Shutdown(ctx)
	s.cfg.Log.Info("healthz stopped")

	_ = s.Metrics.Shutdown(ctx)
	s.cfg.Log.Info("metrics stopped")

	s.cfg.Log.Info("service stopped")
}
