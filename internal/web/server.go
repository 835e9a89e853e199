package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	qerrors "github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/logfields"
	"github.com/hpungsan/quire/internal/ops"
)

// Options configures the HTTP server.
type Options struct {
	Version string
	Bind    string
	Port    int
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

// NewServer creates the HTTP server for the Quire file API.
func NewServer(deps *ops.Deps, opts Options) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Bind, opts.Port),
		Handler:           NewHandler(deps, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the routed handler with middleware applied.
func NewHandler(deps *ops.Deps, opts Options) http.Handler {
	h := &Handlers{deps: deps, version: opts.Version}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.HandleIndex)
	mux.HandleFunc("GET /healthz", h.HandleHealth)

	mux.HandleFunc("POST /files/compress-files", h.HandleCompress)
	mux.HandleFunc("POST /files/convert-to-pdf", h.HandleConvertToPDF)
	mux.HandleFunc("POST /files/split-pdf", h.HandleSplit)
	mux.HandleFunc("POST /files/merge-pdfs", h.HandleMerge)
	mux.HandleFunc("POST /files/convert-to-word", h.HandleConvertToWord)
	mux.HandleFunc("POST /files/pdf-preview", h.HandlePDFPreview)
	mux.HandleFunc("POST /excel/upload", h.HandleExcelExpand)
	mux.HandleFunc("POST /excel/duplicate-row", h.HandleDuplicateRow)
	mux.HandleFunc("POST /excel/preview", h.HandleExcelPreview)
	mux.HandleFunc("GET /pages/parse", h.HandleParsePages)

	mux.HandleFunc("GET /jobs", h.HandleListJobs)
	mux.HandleFunc("GET /jobs/{id}", h.HandleFetchJob)
	mux.HandleFunc("POST /jobs/purge", h.HandlePurgeJobs)

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	return securityHeaders(logRequests(recoverPanics(mux)))
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// recoverPanics turns a handler panic into a 500 JSON error instead of a
// dropped connection.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}
			slog.Error("HTTP handler panic",
				slog.Any("panic", p),
				logfields.Method(r.Method),
				logfields.Path(r.URL.Path))
			renderError(w, qerrors.NewInternal(fmt.Errorf("internal server error")))
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("HTTP request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.Status(rec.status),
			logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	})
}

// Run serves srv until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	slog.Info("Quire API listening", slog.String("addr", "http://"+srv.Addr))
	if strings.HasPrefix(srv.Addr, "0.0.0.0:") || strings.HasPrefix(srv.Addr, "[::]:") || strings.HasPrefix(srv.Addr, ":") {
		slog.Warn("Server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
