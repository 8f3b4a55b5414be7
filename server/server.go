package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/searchnet/chainreg/logging"
	"github.com/searchnet/chainreg/registry"
	"github.com/searchnet/chainreg/signing"
	"github.com/searchnet/chainreg/transport"
)

// Server is the host environment of the registry: it owns the data
// directory and wires the clock, signature scheme, reward ledger and
// event transport together. Commands are executed against it one at a
// time, mirroring the single-writer model of the surrounding ledger.
type Server struct {
	cfg Config

	reg    *registry.Registry
	ledger *accountLedger
	events transport.EventTransport
}

func New(ctx context.Context, cfg Config) (*Server, error) {
	if _, err := os.Stat(cfg.DataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, err
		}
	}

	if len(cfg.AttestorKey) == 0 {
		return nil, errors.New("an attestor public key is required")
	}
	verifier, err := signing.NewVerifier(signing.Scheme(cfg.Scheme), cfg.AttestorKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating %s verifier: %w", cfg.Scheme, err)
	}

	ledger, err := newAccountLedger(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return nil, fmt.Errorf("opening account ledger: %w", err)
	}

	events := transport.NewInMemory()
	reg, err := registry.New(filepath.Join(cfg.DataDir, "registry"), verifier, ledger, events)
	if err != nil {
		ledger.Close()
		return nil, fmt.Errorf("creating registry: %w", err)
	}

	logging.FromContext(ctx).Info("opened service registry",
		zap.String("datadir", cfg.DataDir),
		zap.String("scheme", cfg.Scheme),
	)

	return &Server{
		cfg:    cfg,
		reg:    reg,
		ledger: ledger,
		events: events,
	}, nil
}

func (s *Server) Close() error {
	var result *multierror.Error
	result = multierror.Append(result, s.reg.Close())
	result = multierror.Append(result, s.ledger.Close())
	return result.ErrorOrNil()
}

// Registry exposes the hosted registry for command dispatch.
func (s *Server) Registry() *registry.Registry {
	return s.reg
}

// Balance returns an account balance from the local reward ledger.
func (s *Server) Balance(account []byte) (uint64, error) {
	return s.ledger.Balance(account)
}

// Run consumes chain events and, when configured, serves metrics.
// It blocks until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("server")
	ctx = logging.NewContext(ctx, logger)
	eg, ctx := errgroup.WithContext(ctx)

	if s.cfg.MetricsPort != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", *s.cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: time.Second * 5,
		}
		eg.Go(func() error {
			logger.Sugar().Infof("metrics listening on %s", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case event := <-s.events.Events():
				if advanced, ok := event.(registry.ChainAdvanced); ok {
					logger.Info("chain advanced",
						zap.ByteString("service", advanced.Service),
						zap.Stringer("root", advanced.Root),
						zap.Int64("updated_at", advanced.UpdatedAt),
					)
				}
			}
		}
	})

	return eg.Wait()
}
