// Command legis-proxy serves the legislation API through the caching client.
// Responses are cached in Redis, the upstream rate limit is respected, and
// /metrics exposes the client metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/legis-client/pkg/client"
	"github.com/Sternrassler/legis-client/pkg/config"
	"github.com/Sternrassler/legis-client/pkg/logging"
	"github.com/Sternrassler/legis-client/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// apiPrefix is the path prefix forwarded upstream.
const apiPrefix = "/api/v1"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(logging.FromConfig(cfg, "legis-proxy"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Proxy failed")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := logging.NewLogger("proxy")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")

	apiClient, err := client.New(client.FromConfig(cfg, redisClient))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer apiClient.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           logRequests(logger, newHandler(redisClient, apiClient, cfg.HTTPTimeout)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("upstream", cfg.BaseURL()).
			Str("user_agent", cfg.UserAgent).
			Msg("Starting legislation proxy")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHandler wires the proxy routes.
func newHandler(redisClient *redis.Client, apiClient *client.Client, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(redisClient))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET "+apiPrefix+"/", proxyHandler(apiClient, timeout))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports ready while Redis answers.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// hopHeaders are not forwarded.
var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// proxyHandler forwards /api/v1/... to the upstream API through the client.
func proxyHandler(apiClient *client.Client, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upstream := apiClient.BaseURL()
		upstream.Path += strings.TrimPrefix(r.URL.Path, apiPrefix)
		upstream.RawQuery = r.URL.RawQuery

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream.String(), nil)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		if id := r.Header.Get(client.RequestIDHeader); id != "" {
			req.Header.Set(client.RequestIDHeader, id)
		}

		resp, err := apiClient.Do(req)
		if err != nil {
			writeError(w, err)
			return
		}
		defer resp.Body.Close()

		for key, values := range resp.Header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		for _, h := range hopHeaders {
			w.Header().Del(h)
		}
		w.WriteHeader(resp.StatusCode)

		if _, err := io.Copy(w, resp.Body); err != nil {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to copy response body")
		}
	}
}

// writeError maps a client error to a status with a FastAPI-style body.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(apiErr.RetryAfter.Round(time.Second).Seconds())))
		}
		status := apiErr.StatusCode
		if errors.Is(err, client.ErrRetryExhausted) || status == 0 {
			status = http.StatusBadGateway
		}
		writeDetail(w, status, apiErr.Message)
	case errors.Is(err, client.ErrCircuitOpen):
		writeDetail(w, http.StatusServiceUnavailable, "upstream unavailable")
	case errors.Is(err, client.ErrContextCancelled):
		writeDetail(w, http.StatusGatewayTimeout, "upstream timeout")
	default:
		writeDetail(w, http.StatusBadGateway, err.Error())
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// statusRecorder captures the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs one line per request.
func logRequests(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		event := logger.Debug()
		if rec.status >= 500 {
			event = logger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status_code", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}
