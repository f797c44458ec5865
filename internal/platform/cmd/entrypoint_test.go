package cmd

import (
	"context"
	"errors"
	"flag"
	"io"
	"testing"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"CMD_TEST_MODE" envDefault:"server"`
}

func bindTestFlags(fs *flag.FlagSet, cfg *testConfig) {
	fs.StringVar(&cfg.Address, "address", cfg.Address, "address")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "mode")
}

func TestLoadReadsEnvThenFlags(t *testing.T) {
	t.Setenv("CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("CMD_TEST_MODE", "env-mode")

	var cfg testConfig
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if err := Load(&cfg, fs, []string{"-address", "flag:9001"}, bindTestFlags); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != "flag:9001" {
		t.Fatalf("expected flag value for address, got %q", cfg.Address)
	}
	if cfg.Mode != "env-mode" {
		t.Fatalf("expected env mode, got %q", cfg.Mode)
	}
}

func TestLoadDefaults(t *testing.T) {
	var cfg testConfig
	if err := Load(&cfg, flag.NewFlagSet("test", flag.ContinueOnError), nil, nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != "127.0.0.1:8080" || cfg.Mode != "server" {
		t.Fatalf("expected env defaults, got %+v", cfg)
	}
}

func TestLoadRejectsMissingInputs(t *testing.T) {
	var cfg *testConfig
	if err := Load(cfg, flag.NewFlagSet("test", flag.ContinueOnError), nil, nil); err == nil {
		t.Fatal("expected nil target error")
	}
	if err := Load(&testConfig{}, nil, nil, nil); err == nil {
		t.Fatal("expected nil parser error")
	}
}

func TestLoadRejectsUnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := Load(&testConfig{}, fs, []string{"-nope"}, bindTestFlags); err == nil {
		t.Fatal("expected unknown flag error")
	}
}

func TestLogPrefix(t *testing.T) {
	if got := LogPrefix(ServiceGame); got != "[GAME] " {
		t.Fatalf("LogPrefix = %q", got)
	}
	if got := LogPrefix("  "); got != "" {
		t.Fatalf("expected empty prefix, got %q", got)
	}
}

func TestRunRejectsMissingInputs(t *testing.T) {
	if err := Run(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := Run(context.Background(), ServiceGame, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunReturnsRunError(t *testing.T) {
	t.Setenv("CARDROOM_OTEL_ENDPOINT", "")
	want := errors.New("boom")
	called := false
	err := Run(context.Background(), ServiceGame, func(ctx context.Context) error {
		called = true
		if ctx.Err() != nil {
			t.Fatalf("expected live context, got %v", ctx.Err())
		}
		return want
	})
	if !called {
		t.Fatal("expected run to be called")
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected run error, got %v", err)
	}
}
