package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"indexticker/internal/bot"
	"indexticker/internal/config"
)

func main() {
	cfgPath := flag.String("config", config.DefaultConfigPath(), "path to config.json")
	flag.Parse()

	// Missing mandatory configuration is the only fatal condition; detected
	// before any network activity begins.
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	app, err := bot.New(cfg)
	if err != nil {
		log.Fatalf("init error: %v", err)
	}

	// Graceful stop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		app.Close()
		log.Fatalf("run error: %v", err)
	}
	app.Close()
}
