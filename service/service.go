package service

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ethereum-optimism/infra/op-canary/metrics"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"

	MetricsHost = "0.0.0.0"
	MetricsPort = "7300"
)

// Config holds the listen addresses of the service's servers.
type Config struct {
	HealthzAddr string
	MetricsAddr string
}

// DefaultConfig listens on the default healthz and metrics ports.
func DefaultConfig() Config {
	return Config{
		HealthzAddr: net.JoinHostPort(HealthzHost, HealthzPort),
		MetricsAddr: net.JoinHostPort(MetricsHost, MetricsPort),
	}
}

type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer

	group *errgroup.Group
}

func New(cfg Config) *Service {
	return &Service{
		Healthz: NewHealthzServer(cfg.HealthzAddr),
		Metrics: NewMetricsServer(cfg.MetricsAddr, nil),
	}
}

// Start binds both servers and serves them in the background.
func (s *Service) Start(ctx context.Context) error {
	log.Info("service starting")

	if err := s.Healthz.listen(); err != nil {
		metrics.RecordErrorDetails("error starting healthz server", err)
		return fmt.Errorf("failed to start healthz server: %w", err)
	}
	if err := s.Metrics.listen(); err != nil {
		_ = s.Healthz.listener.Close()
		metrics.RecordErrorDetails("error starting metrics server", err)
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.group, _ = errgroup.WithContext(ctx)
	s.group.Go(func() error {
		if err := s.Healthz.serve(); err != nil {
			log.Error("error serving healthz server", "err", err)
			metrics.RecordErrorDetails("error serving healthz server", err)
			return err
		}
		return nil
	})
	s.group.Go(func() error {
		if err := s.Metrics.serve(); err != nil {
			log.Error("error serving metrics server", "err", err)
			metrics.RecordErrorDetails("error serving metrics server", err)
			return err
		}
		return nil
	})

	log.Info("service started", "healthz", s.Healthz.Addr(), "metrics", s.Metrics.Addr())
	return nil
}

// Shutdown stops both servers and waits for them to return.
func (s *Service) Shutdown(ctx context.Context) error {
	log.Info("service shutting down")

	var errs []error
	if err := s.Healthz.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("healthz: %w", err))
	}
	log.Info("healthz stopped")

	if err := s.Metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	log.Info("metrics stopped")

	if s.group != nil {
		if err := s.group.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	log.Info("service stopped")
	return errors.Join(errs...)
}
