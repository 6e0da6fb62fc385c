package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"trustlab/internal/bootstrap/logging"
)

// NewRouter mounts the lab validation API under /api/v1.
func NewRouter(svc Service) http.Handler {
	h := &handler{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/validations", h.listValidations)

		r.Route("/validation", func(r chi.Router) {
			r.Post("/request", h.createRequest)
			r.Post("/assign", h.assign)
			r.Post("/simulate", h.simulate)
			r.Get("/marketplace/{id}", h.marketplace)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/upload-report", h.uploadReport)
				r.Get("/status", h.status)
				r.Get("/verify-report", h.verifyReport)
				r.Post("/trust-score", h.recalculateTrustScore)
				r.Post("/expire", h.expire)
			})
		})

		r.Route("/products/{id}", func(r chi.Router) {
			r.Get("/trust-score", h.latestTrustScore)
			r.Get("/trust-scores", h.trustScoreHistory)
		})

		r.Route("/labs", func(r chi.Router) {
			r.Get("/", h.listLabs)
			r.Patch("/{id}/status", h.setLabStatus)
		})
	})

	return r
}

// requestLogger carries the request id into the context logger and logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := logging.WithRequestID(
			logging.WithAttrs(r.Context(), slog.String("component", "transport.httpapi")),
			middleware.GetReqID(r.Context()),
		)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.Debug(
			ctx,
			"http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("elapsed", time.Since(started)),
		)
	})
}
