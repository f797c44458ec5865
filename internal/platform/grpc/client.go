// Package grpc holds client-side helpers for reaching cardroom gRPC servers.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ErrNotServing reports a health answer other than SERVING.
var ErrNotServing = errors.New("service is not serving")

const (
	healthCallTimeout = time.Second
	minHealthPoll     = 100 * time.Millisecond
	maxHealthPoll     = time.Second
)

// ClientOptions returns plaintext dial options that propagate trace context,
// followed by extra.
func ClientOptions(extra ...gogrpc.DialOption) []gogrpc.DialOption {
	return append([]gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, extra...)
}

// CheckHealth asks conn once whether service is SERVING.
func CheckHealth(ctx context.Context, conn gogrpc.ClientConnInterface, service string) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, healthCallTimeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return err
	}
	if s := resp.GetStatus(); s != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", ErrNotServing, s)
	}
	return nil
}

// WaitForHealth polls CheckHealth until service is SERVING or ctx ends. The
// poll interval doubles up to one second. logf may be nil.
func WaitForHealth(ctx context.Context, conn gogrpc.ClientConnInterface, service string, logf func(string, ...any)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	wait := minHealthPoll
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", ctx.Err())
		case <-timer.C:
		}
		err := CheckHealth(ctx, conn, service)
		if err == nil {
			return nil
		}
		if logf != nil {
			logf("waiting for gRPC health %q: %v", service, err)
		}
		timer.Reset(wait)
		wait = min(wait*2, maxHealthPoll)
	}
}

// Probe dials addr and checks service once. timeout bounds the whole probe
// when positive.
func Probe(ctx context.Context, addr, service string, timeout time.Duration) error {
	conn, err := gogrpc.NewClient(addr, ClientOptions()...)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return CheckHealth(ctx, conn, service)
}
