package metadata

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"

	"github.com/careercounsel/cardroom/internal/platform/requestctx"
)

func TestIncomingSkipsUnusableValues(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.MD{
		RequestIDHeader: {"\n", strings.Repeat("x", maxRequestIDLen+1), "req-1"},
	})
	if got := incoming(ctx, RequestIDHeader); got != "req-1" {
		t.Fatalf("incoming = %q, want req-1", got)
	}
	if got := incoming(context.Background(), RequestIDHeader); got != "" {
		t.Fatalf("expected empty value without metadata, got %q", got)
	}
}

func TestAuthorizationFromContext(t *testing.T) {
	long := "Bearer " + strings.Repeat("a", 2*maxRequestIDLen)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(AuthorizationHeader, long))
	if got := AuthorizationFromContext(ctx); got != long {
		t.Fatalf("authorization = %q, want the full token", got)
	}
	if got := AuthorizationFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty authorization without metadata, got %q", got)
	}
}

func TestLocaleFromContext(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(LocaleHeader, "zh-TW,zh;q=0.9"))
	if got := LocaleFromContext(ctx); got != "zh-TW" {
		t.Fatalf("locale = %q, want zh-TW", got)
	}
	if got := LocaleFromContext(requestctx.WithLocale(ctx, "en-US")); got != "en-US" {
		t.Fatalf("stored locale = %q, want en-US", got)
	}
	if got := LocaleFromContext(context.Background()); got != "en-US" {
		t.Fatalf("default locale = %q, want en-US", got)
	}
}

func TestUnaryServerInterceptorRequiresIDs(t *testing.T) {
	interceptor := UnaryServerInterceptor(func() (string, error) {
		return "", errors.New("boom")
	})
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, func(context.Context, any) (any, error) {
		t.Fatal("handler should not run")
		return nil, nil
	})
	if err == nil {
		t.Fatal("expected id generation error")
	}
}

func TestServerFault(t *testing.T) {
	for code, want := range map[codes.Code]bool{
		codes.OK:                 false,
		codes.InvalidArgument:    false,
		codes.FailedPrecondition: false,
		codes.Unauthenticated:    false,
		codes.Unknown:            true,
		codes.Internal:           true,
		codes.Unavailable:        true,
	} {
		if got := serverFault(code); got != want {
			t.Errorf("serverFault(%s) = %v, want %v", code, got, want)
		}
	}
}
