// Package game parses game command flags and starts the game server.
package game

import (
	"context"
	"flag"
	"fmt"
	"net"
	"strings"

	entrypoint "github.com/careercounsel/cardroom/internal/platform/cmd"
	platformgrpc "github.com/careercounsel/cardroom/internal/platform/grpc"
	"github.com/careercounsel/cardroom/internal/platform/timeouts"
	gamegrpc "github.com/careercounsel/cardroom/internal/services/game/api/grpc/game"
	server "github.com/careercounsel/cardroom/internal/services/game/app"
)

// Config holds game command configuration.
type Config struct {
	HTTPAddr string `env:"CARDROOM_GAME_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"CARDROOM_GAME_GRPC_ADDR" envDefault:":8082"`
	DBPath   string `env:"CARDROOM_GAME_DB_PATH" envDefault:"data/game.db"`

	// HealthCheck probes a running server instead of starting one.
	HealthCheck bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.Load(&cfg, fs, args, bindFlags); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The game HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "The game gRPC listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The game SQLite database path")
	fs.BoolVar(&cfg.HealthCheck, "healthcheck", false, "Probe the gRPC health service and exit")
}

// Run starts the game service, or probes it when HealthCheck is set.
func Run(ctx context.Context, cfg Config) error {
	if cfg.HealthCheck {
		return Probe(ctx, cfg)
	}
	return entrypoint.Run(ctx, entrypoint.ServiceGame, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			HTTPAddr: cfg.HTTPAddr,
			GRPCAddr: cfg.GRPCAddr,
			DBPath:   cfg.DBPath,
		})
	})
}

// Probe checks that the game gRPC service reports SERVING.
func Probe(ctx context.Context, cfg Config) error {
	addr := dialAddr(cfg.GRPCAddr)
	if err := platformgrpc.Probe(ctx, addr, gamegrpc.ServiceName, timeouts.GRPCDial); err != nil {
		return fmt.Errorf("health check %s: %w", addr, err)
	}
	return nil
}

// dialAddr turns a listen address such as ":8082" into a dialable one.
func dialAddr(listen string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(listen))
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
