package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/hpungsan/keepsake/internal/config"
	"github.com/hpungsan/keepsake/internal/metrics"
	"github.com/hpungsan/keepsake/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// NewHandler builds the API router for st. Metrics are registered on reg and
// served at /metrics.
func NewHandler(st *store.Store, cfg *config.Config, reg *prometheus.Registry, logger zerolog.Logger, version string) http.Handler {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create template sub-FS")
	}

	h := &Handlers{
		st:       st,
		cfg:      cfg,
		metrics:  metrics.New(reg, st),
		renderer: NewRenderer(templateSub, version),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /contributors", h.HandleCreateContributor)
	mux.HandleFunc("GET /contributors", h.HandleListContributors)
	mux.HandleFunc("GET /contributors/{id}", h.HandleGetContributor)
	mux.HandleFunc("PATCH /contributors/{id}", h.HandleUpdateContributor)
	mux.HandleFunc("DELETE /contributors/{id}", h.HandleDeleteContributor)

	mux.HandleFunc("POST /capsules", h.HandleCreateCapsule)
	mux.HandleFunc("GET /capsules", h.HandleListCapsules)
	mux.HandleFunc("GET /capsules/{id}", h.HandleGetCapsule)
	mux.HandleFunc("GET /capsules/{id}/preview", h.HandlePreview)
	mux.HandleFunc("PATCH /capsules/{id}", h.HandlePatchCapsule)
	mux.HandleFunc("DELETE /capsules/{id}", h.HandleDeleteCapsule)

	mux.HandleFunc("GET /capsules/{id}/items", h.HandleListCapsuleItems)
	mux.HandleFunc("POST /capsules/{id}/items", h.HandleAddItem)
	mux.HandleFunc("GET /capsules/{id}/items/{item_id}", h.HandleGetCapsuleItem)
	mux.HandleFunc("PATCH /capsules/{id}/items/{item_id}", h.HandlePatchItem)
	mux.HandleFunc("DELETE /capsules/{id}/items/{item_id}", h.HandleDeleteItem)

	mux.HandleFunc("GET /items", h.HandleListItems)
	mux.HandleFunc("GET /items/{id}", h.HandleGetItem)

	mux.HandleFunc("POST /merges/{id1}/{id2}", h.HandleMerge)
	mux.HandleFunc("GET /merges", h.HandleListMerges)

	mux.Handle("GET /metrics", metrics.Handler(reg))

	return requestContext(logger, securityHeaders(mux))
}

// NewServer wraps handler in an http.Server listening on bind:port.
func NewServer(handler http.Handler, bind string, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'none'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the HTTP status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) getStatus() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// requestContext attaches a request-scoped logger carrying the request id to
// the request context, echoes the id in the response, and logs completion.
// A caller-supplied X-Request-ID is kept.
func requestContext(base zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		logger := base.With().Str("request_id", id).Logger()
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context())))

		status := rec.getStatus()
		event := logger.Debug()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM
// or when ctx is cancelled.
func Run(ctx context.Context, srv *http.Server, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info().Str("addr", srv.Addr).Msg("keepsake API listening")

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn().Msg("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
