package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opencampus.org/internal/auth"
	"opencampus.org/internal/httpapi"
	"opencampus.org/internal/obs"
	"opencampus.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("OPENCAMPUS_COMMIT"))

	dsn := os.Getenv("OPENCAMPUS_PG_DSN")
	if dsn == "" {
		log.Fatal("missing OPENCAMPUS_PG_DSN")
	}
	secret := os.Getenv("OPENCAMPUS_AUTH_SECRET")
	if secret == "" {
		log.Fatal("missing OPENCAMPUS_AUTH_SECRET")
	}
	addr := os.Getenv("OPENCAMPUS_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	// Secure cookies stay on unless explicitly disabled for local work.
	cookieSecure := os.Getenv("OPENCAMPUS_COOKIE_SECURE") != "false"

	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	codec, err := auth.NewCodec([]byte(secret))
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	svc, err := auth.NewService(store, codec)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	// Seed the permission catalog so role and override rows always have a
	// registered key to reference.
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := svc.EnsureRegistry(bootCtx); err != nil {
		bootCancel()
		log.Fatalf("seed permission registry: %v", err)
	}
	bootCancel()

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, svc, version, cookieSecure)

	handler := httpapi.RequestID(api.Handler())
	handler = httpapi.Logging(handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.CORS(handler)
	handler = httpapi.RateLimit(handler, 50, 25)
	handler = httpapi.MaxBodyBytes(handler, 1<<20)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting opencampus-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
