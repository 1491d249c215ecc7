// Command votingd serves the mock voting API that voteview talks to. It
// keeps real per-user tallies in memory and can inject latency and random
// failures so the client's rollback paths can be demonstrated end to end.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codyrutscher/voting-app/internal/mockapi"
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional; flags and real env still apply without one.
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("VOTINGD_ADDR", "127.0.0.1:7411"), "listen address")
	latencyMS := flag.Int("latency", envOrInt("VOTINGD_LATENCY_MS", 150), "max artificial latency in milliseconds")
	failureRate := flag.Float64("failure-rate", envOrFloat("VOTINGD_FAILURE_RATE", 0.1), "chance in [0,1] that a vote fails")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	server := mockapi.NewServer(mockapi.Options{
		MinLatency:  time.Duration(*latencyMS/3) * time.Millisecond,
		MaxLatency:  time.Duration(*latencyMS) * time.Millisecond,
		FailureRate: *failureRate,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("votingd listening", "addr", *addr, "failure_rate", *failureRate)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
		logger.Info("votingd stopped")
		return 0
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return 1
		}
		return 0
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
