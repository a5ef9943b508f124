package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"docproc/internal/bootstrap"
	"docproc/internal/shared/config"
	"docproc/internal/shared/server"
	"docproc/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer app.Close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, server.Addr(cfg.Port), app.Router); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
