package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/careercounsel/cardroom/internal/platform/timeouts"
	gamegrpc "github.com/careercounsel/cardroom/internal/services/game/api/grpc/game"
	grpcmeta "github.com/careercounsel/cardroom/internal/services/game/api/grpc/metadata"
	httpapi "github.com/careercounsel/cardroom/internal/services/game/api/http"
	"github.com/careercounsel/cardroom/internal/services/game/auth"
	"github.com/careercounsel/cardroom/internal/services/game/broadcast"
	"github.com/careercounsel/cardroom/internal/services/game/domain/rules"
	"github.com/careercounsel/cardroom/internal/services/game/sessions"
	"github.com/careercounsel/cardroom/internal/services/game/storage/integrity"
	storagesqlite "github.com/careercounsel/cardroom/internal/services/game/storage/sqlite"
)

// DefaultDBPath is used when Config.DBPath is empty.
var DefaultDBPath = filepath.Join("data", "game.db")

// New creates a configured game server listening on cfg's addresses.
func New(cfg Config) (server *Server, err error) {
	closers := make([]func() error, 0, 3)
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}
	}()

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}
	closers = append(closers, httpListener.Close)

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on grpc addr %s: %w", cfg.GRPCAddr, err)
	}
	closers = append(closers, grpcListener.Close)

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	closers = append(closers, store.Close)

	grants, err := loadGrantVerifier()
	if err != nil {
		return nil, err
	}

	hub := broadcast.NewHub()
	service, err := sessions.NewService(store, rules.Default(), sessions.WithPublisher(hub))
	if err != nil {
		return nil, fmt.Errorf("build sessions service: %w", err)
	}

	handler, err := httpapi.NewHandler(httpapi.Options{Service: service, Hub: hub, Grants: grants})
	if err != nil {
		return nil, fmt.Errorf("build http handler: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcmeta.UnaryServerInterceptor(nil)),
	)
	healthServer := health.NewServer()
	gamegrpc.RegisterGameServiceServer(grpcServer, gamegrpc.NewService(service, gamegrpc.WithRoomGrants(grants)))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(gamegrpc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		httpListener: httpListener,
		grpcListener: grpcListener,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		grpcServer: grpcServer,
		health:     healthServer,
		hub:        hub,
		store:      store,
	}, nil
}

// HTTPAddr returns the HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the gRPC listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates and serves a game server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs both transports and blocks until one fails or the context
// ends, then shuts both down.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if err := s.store.Close(); err != nil {
			log.Printf("close game store: %v", err)
		}
	}()

	log.Printf("game http listening at %v", s.httpListener.Addr())
	log.Printf("game grpc listening at %v", s.grpcListener.Addr())

	httpErr := make(chan error, 1)
	grpcErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()
	go func() {
		grpcErr <- s.grpcServer.Serve(s.grpcListener)
	}()

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		httpErr <- err
	case err := <-grpcErr:
		grpcErr <- err
	}

	s.shutdown()
	return errors.Join(handleHTTPErr(<-httpErr), handleGRPCErr(<-grpcErr))
}

func (s *Server) shutdown() {
	if s.health != nil {
		s.health.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown game http: %v", err)
		_ = s.httpServer.Close()
	}
	s.hub.Close()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeouts.Shutdown):
		s.grpcServer.Stop()
	}
}

func handleHTTPErr(err error) error {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("serve http: %w", err)
}

func handleGRPCErr(err error) error {
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("serve gRPC: %w", err)
}

func openStore(path string) (*storagesqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultDBPath
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	keyring, err := integrity.KeyringFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load action signing keys: %w", err)
	}
	if keyring == nil {
		log.Printf("action history signing disabled: no HMAC key configured")
	}
	store, err := storagesqlite.Open(path, storagesqlite.WithKeyring(keyring))
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}

func loadGrantVerifier() (*auth.VerifierConfig, error) {
	cfg, configured, err := auth.LoadVerifierConfigFromEnv(time.Now)
	if err != nil {
		return nil, err
	}
	if !configured {
		log.Printf("room grant checks disabled: no verifier configured")
		return nil, nil
	}
	return &cfg, nil
}

// ensureDir creates parent paths for sqlite files so startup can create DB files.
func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	return nil
}
