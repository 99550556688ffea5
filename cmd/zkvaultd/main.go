package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zkvault/internal/server"
)

func main() {
	var cfg server.Config
	flag.StringVar(&cfg.Addr, "addr", envOr("ZKVAULT_ADDR", ":8080"), "listen address")
	flag.StringVar(&cfg.MongoURI, "mongo", os.Getenv("ZKVAULT_MONGO_URI"), "MongoDB URI")
	flag.StringVar(&cfg.MongoDB, "db", envOr("ZKVAULT_MONGO_DB", "zkvault"), "Mongo database name")
	flag.StringVar(&cfg.JWTIssuer, "issuer", "zkvault-server", "JWT issuer")
	flag.DurationVar(&cfg.TokenTTL, "token-ttl", 15*time.Minute, "API token lifetime")
	flag.BoolVar(&cfg.InMemory, "memory", false, "use the in-memory store (single node, dev only)")
	flag.Parse()

	logger := log.New(os.Stdout, "[zkvaultd] ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on %s", cfg.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}
	logger.Printf("shut down")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
