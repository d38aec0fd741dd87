package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toursync/internal/cache"
	"toursync/internal/config"
	"toursync/internal/listener"
	"toursync/internal/source"
	googlesource "toursync/internal/source/google"
	"toursync/internal/storage"
	"toursync/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	src, err := googlesource.NewSource(ctx, cfg)
	must(err)
	ttl := time.Duration(cfg.SheetsCacheTTLSec) * time.Second
	reader := source.NewCachedReader(src, cache.New(ttl))

	svc := listener.NewService(syncer.New(db, reader, cfg), cfg)
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
