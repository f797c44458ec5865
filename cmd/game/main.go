package main

import (
	"context"
	"flag"
	"log"
	"os"

	gamecmd "github.com/careercounsel/cardroom/internal/cmd/game"
	entrypoint "github.com/careercounsel/cardroom/internal/platform/cmd"
	"github.com/careercounsel/cardroom/internal/platform/config"
)

func main() {
	cfg, err := gamecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix(entrypoint.LogPrefix(entrypoint.ServiceGame))

	if err := gamecmd.Run(context.Background(), cfg); err != nil {
		if cfg.HealthCheck {
			log.Fatalf("unhealthy: %v", err)
		}
		log.Fatalf("failed to serve: %v", err)
	}
}
