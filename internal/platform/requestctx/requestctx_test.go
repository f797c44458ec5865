package requestctx

import (
	"context"
	"testing"
)

func TestPlayerIDFromContextRoundTrip(t *testing.T) {
	ctx := WithPlayerID(context.Background(), "counselor-1")
	if got := PlayerIDFromContext(ctx); got != "counselor-1" {
		t.Fatalf("PlayerIDFromContext = %q, want %q", got, "counselor-1")
	}
}

func TestLocaleFromContextRoundTrip(t *testing.T) {
	ctx := WithLocale(WithPlayerID(nil, "p"), "zh-TW")
	if got := LocaleFromContext(ctx); got != "zh-TW" {
		t.Fatalf("LocaleFromContext = %q, want zh-TW", got)
	}
	if got := PlayerIDFromContext(ctx); got != "p" {
		t.Fatalf("PlayerIDFromContext = %q, want p", got)
	}
}

func TestFromContextEmpty(t *testing.T) {
	if got := PlayerIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty player, got %q", got)
	}
	if got := LocaleFromContext(nil); got != "" {
		t.Fatalf("expected empty locale for nil context, got %q", got)
	}
}

func TestRequestIDFromContextRoundTrip(t *testing.T) {
	if got := RequestIDFromContext(nil); got != "" {
		t.Fatalf("expected empty request id for nil context, got %q", got)
	}
	ctx := WithRequestID(WithLocale(nil, "en-US"), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("RequestIDFromContext = %q, want req-1", got)
	}
	if got := LocaleFromContext(ctx); got != "en-US" {
		t.Fatalf("LocaleFromContext = %q, want en-US", got)
	}
}
