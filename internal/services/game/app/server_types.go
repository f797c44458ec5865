package server

import (
	"net"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/careercounsel/cardroom/internal/services/game/broadcast"
	storagesqlite "github.com/careercounsel/cardroom/internal/services/game/storage/sqlite"
)

// Config holds the listen addresses and database path of the game server.
type Config struct {
	HTTPAddr string
	GRPCAddr string
	DBPath   string
}

// Server hosts the game HTTP and gRPC transports over one store.
type Server struct {
	httpListener net.Listener
	grpcListener net.Listener
	httpServer   *http.Server
	grpcServer   *grpc.Server
	health       *health.Server
	hub          *broadcast.Hub
	store        *storagesqlite.Store
}
