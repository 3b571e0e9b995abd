// Package main provides the ledger verification and maintenance CLI.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/louisbranch/rivalry.club/internal/cmd/ledger"
	platformcmd "github.com/louisbranch/rivalry.club/internal/platform/cmd"
	"github.com/louisbranch/rivalry.club/internal/platform/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := ledger.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceLedger, func(ctx context.Context) error {
		return ledger.Run(ctx, cfg, os.Stdout, os.Stderr)
	})
	if err != nil {
		config.Exitf("Error: %v", err)
	}
}
