package router

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/internal/auth"
	"github.com/ovaphlow/pitchfork/service-registry/internal/emergency"
	"github.com/ovaphlow/pitchfork/service-registry/internal/httpx"
	"github.com/ovaphlow/pitchfork/service-registry/internal/identity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/justice"
	"github.com/ovaphlow/pitchfork/service-registry/internal/license"
	"github.com/ovaphlow/pitchfork/service-registry/internal/payment"
	"github.com/ovaphlow/pitchfork/service-registry/internal/property"
	"github.com/ovaphlow/pitchfork/service-registry/internal/vehicle"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
)

// statusRecorder captures the status and size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.size += n
	return n, err
}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware tags each request with an id (kept from the caller when
// present) and logs it when done. Server errors log at warn, the rest at debug.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			log := logger.Debugw
			if rec.status >= http.StatusInternalServerError {
				log = logger.Warnw
			}
			log("http request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", rec.status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", rec.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets the response headers for a JSON-only API.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			if r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Deps are the services mounted by RegisterRoutes.
type Deps struct {
	Logger    *zap.SugaredLogger
	DB        *database.Manager
	Gatherer  prometheus.Gatherer
	Authority *auth.Authority

	Identities  *identity.Service
	Licenses    *license.Service
	Codes       *payment.Service
	Vehicles    *vehicle.Service
	Properties  *property.Service
	Justice     *justice.Service
	Emergencies *emergency.Service
}

// RegisterRoutes mounts the operator API on a standard library ServeMux.
// Health and metrics are public; every lookup requires an operator token.
func RegisterRoutes(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /registry/health", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.Ping(r.Context()); err != nil {
			httpx.WriteError(w, logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	guard := d.Authority.Middleware(logger)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, guard(fn))
	}

	identities := identity.NewHandler(d.Identities, logger)
	licenses := license.NewHandler(d.Licenses, logger)
	codes := payment.NewHandler(d.Codes, logger)
	vehicles := vehicle.NewHandler(d.Vehicles, logger)
	properties := property.NewHandler(d.Properties, logger)
	records := justice.NewHandler(d.Justice, logger)
	emergencies := emergency.NewHandler(d.Emergencies, logger)

	handle("GET /registry/citizens/{key}", identities.Get)
	handle("GET /registry/citizens/{key}/licenses", licenses.List)
	handle("GET /registry/citizens/{key}/vehicles", vehicles.List)
	handle("GET /registry/citizens/{key}/properties", properties.List)
	handle("GET /registry/citizens/{key}/records", records.List)
	handle("GET /registry/citizens/{key}/codes", codes.List)
	handle("GET /registry/vehicles/{plate}", vehicles.Get)
	handle("GET /registry/properties/{address}", properties.Get)
	handle("GET /registry/codes/{code}", codes.Get)
	handle("GET /registry/license-classes", licenses.Classes)
	handle("GET /registry/emergencies", emergencies.Recent)

	return LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
}
