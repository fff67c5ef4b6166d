package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mpesa_backend/internal/bootstrap"
	"mpesa_backend/internal/config"
	httpd "mpesa_backend/internal/delivery/http"
	"mpesa_backend/internal/events"
	"mpesa_backend/internal/gateway"
	"mpesa_backend/internal/usecase"

	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"
)

func main() {
	// .env never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[warn] load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx := context.Background()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	recorder, closeRecorder, err := bootstrap.NewRecorder(ctx, cfg)
	if err != nil {
		log.Fatalf("audit recorder: %v", err)
	}
	defer closeRecorder()

	dispatcher := events.NewAsyncDispatcher(
		events.NewDispatcher(recorder, bootstrap.NewPublisher(cfg)), events.DefaultQueueSize)

	gw := gateway.NewClient(cfg.Mpesa, nil)
	stk := usecase.NewSTKUsecase(gw, store)
	reconciler := usecase.NewCallbackReconciler(store, cfg.Mpesa.Location())

	h := httpd.NewHandler(stk, reconciler, dispatcher)
	router := h.Routes(httpd.RouteOptions{
		Sig: httpd.SigConfig{
			Secret:        cfg.HMACSecret,
			MaxAgeSeconds: cfg.SigMaxAgeSeconds,
		},
		AllowedOrigins: cfg.AllowedOrigins,
	})

	addr := ":" + cfg.AppPort
	server := &http.Server{
		Addr:              addr,
		Handler:           handlers.CombinedLoggingHandler(os.Stdout, router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// push and query wait on the gateway for up to MPESA_HTTP_TIMEOUT per call
		WriteTimeout: 2*cfg.Mpesa.HTTPTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s (gateway %s, store %s)", addr, cfg.Mpesa.Endpoint(), cfg.DBDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := dispatcher.Close(); err != nil {
		log.Printf("close event publisher: %v", err)
	}

	log.Println("Server exited")
}
