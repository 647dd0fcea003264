package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ventas.io/internal/apperr"
	"ventas.io/internal/auth"
	"ventas.io/internal/obs"
	"ventas.io/internal/sales"
)

const serviceName = "ventas-api"

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks readiness; a nil DB is always ready.
type ReadyProbe struct {
	DB Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.Ping(ctx)
}

// SessionResolver turns a session token into the caller's security context.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (auth.SecurityContext, error)
}

// API is the HTTP layer.
type API struct {
	router     chi.Router
	readyProbe ReadyProbe
	version    string
	resolver   SessionResolver
	sales      *sales.Service

	cookieName  string
	corsOrigins []string
	rateBurst   int
	ratePerSec  float64
	maxBody     int64
	streamTTL   time.Duration
}

// Option customises the API.
type Option func(*API)

// WithCookieName sets the cookie that carries the session token.
func WithCookieName(name string) Option {
	return func(a *API) {
		if strings.TrimSpace(name) != "" {
			a.cookieName = name
		}
	}
}

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) Option {
	return func(a *API) { a.corsOrigins = origins }
}

// WithRateLimit sets the per-IP token bucket. A zero rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		a.ratePerSec = perSecond
		a.rateBurst = burst
	}
}

// WithStreamLifetime caps how long one event stream stays open.
func WithStreamLifetime(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.streamTTL = d
		}
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBody = n
		}
	}
}

func New(rp ReadyProbe, version string, resolver SessionResolver, svc *sales.Service, opts ...Option) (*API, error) {
	if resolver == nil {
		return nil, errors.New("httpapi: resolver is required")
	}
	if svc == nil {
		return nil, errors.New("httpapi: sales service is required")
	}
	a := &API{
		readyProbe: rp,
		version:    version,
		resolver:   resolver,
		sales:      svc,
		cookieName: "session",
		rateBurst:  40,
		ratePerSec: 20,
		maxBody:    1 << 20,
		streamTTL:  15 * time.Minute,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.router = a.routes()
	return a, nil
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(LoggingJSON)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(CORS(a.corsOrigins))
	if a.ratePerSec > 0 {
		burst, perSec := a.rateBurst, a.ratePerSec
		r.Use(func(next http.Handler) http.Handler { return RateLimit(next, burst, perSec) })
	}
	maxBody := a.maxBody
	r.Use(func(next http.Handler) http.Handler { return MaxBodyBytes(next, maxBody) })

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, apperr.KindNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/health", a.Health)
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())

	r.Get("/me", a.secured(a.me))

	r.Route("/clientes", func(r chi.Router) {
		r.Get("/", a.guarded(auth.ActionRead, auth.ResourceClients, a.listClients))
		r.Post("/", a.guarded(auth.ActionCreate, auth.ResourceClients, a.createClient))
		r.Get("/{id}", a.guarded(auth.ActionRead, auth.ResourceClients, a.getClient))
		r.Patch("/{id}", a.guarded(auth.ActionUpdate, auth.ResourceClients, a.updateClient))
		r.Delete("/{id}", a.guarded(auth.ActionDelete, auth.ResourceClients, a.deleteClient))
	})
	r.Route("/monedas", func(r chi.Router) {
		r.Get("/", a.guarded(auth.ActionRead, auth.ResourceCurrencies, a.listCurrencies))
		r.Post("/", a.guarded(auth.ActionCreate, auth.ResourceCurrencies, a.createCurrency))
		r.Get("/{id}", a.guarded(auth.ActionRead, auth.ResourceCurrencies, a.getCurrency))
		r.Patch("/{id}", a.guarded(auth.ActionUpdate, auth.ResourceCurrencies, a.updateCurrency))
		r.Delete("/{id}", a.guarded(auth.ActionDelete, auth.ResourceCurrencies, a.deleteCurrency))
	})
	r.Route("/ventas", func(r chi.Router) {
		r.Get("/", a.guarded(auth.ActionRead, auth.ResourceSales, a.listSales))
		r.Post("/", a.guarded(auth.ActionCreate, auth.ResourceSales, a.createSale))
		r.Get("/eventos", a.guarded(auth.ActionRead, auth.ResourceSales, a.streamSales))
		r.Get("/{id}", a.guarded(auth.ActionRead, auth.ResourceSales, a.getSale))
		r.Patch("/{id}", a.guarded(auth.ActionUpdate, auth.ResourceSales, a.updateSale))
		r.Delete("/{id}", a.guarded(auth.ActionDelete, auth.ResourceSales, a.deleteSale))
	})
	return r
}

// Handler returns the instrumented router.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

// --- Handlers ---

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writePayload(w http.ResponseWriter, r *http.Request, code int, payload map[string]any) {
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, kind, msg string) {
	writePayload(w, r, code, map[string]any{
		"error": msg,
		"kind":  kind,
	})
}

// decodeJSON reads exactly one JSON value. Unknown fields and trailing data
// are rejected as validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("request body is required")
		}
		return apperr.Invalid("invalid JSON body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Invalid("unexpected data after JSON body")
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Invalid("id must be a positive integer")
	}
	return id, nil
}

func parseIntParam(name, raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid("%s must be an integer", name)
	}
	if val < min || val > max {
		return 0, apperr.Invalid("%s must be between %d and %d", name, min, max)
	}
	return val, nil
}
