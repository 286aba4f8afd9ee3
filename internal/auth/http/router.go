package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nimbusvault/authcore/internal/auth/metrics"
	"github.com/nimbusvault/authcore/internal/auth/service"
	"github.com/nimbusvault/authcore/internal/auth/store"
	"github.com/nimbusvault/authcore/pkg/httpx"
	"github.com/nimbusvault/authcore/pkg/jwtx"
	"github.com/nimbusvault/authcore/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/nimbusvault/authcore/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Pinger is a backend readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	AuthService *service.AuthService
	Signer      jwtx.Signer

	// Cache is probed by /readyz when a redis backend is configured.
	Cache Pinger

	// Metrics and Gatherer are optional; /metrics is only served with a
	// Gatherer.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Cookies     CookieConfig
	TrustProxy  bool
	PublicLimit httpx.ThrottleConfig
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if keys == nil {
		keys = jwtx.NewKeySet()
	}
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		PublicLimit:  httpx.PublicLimit,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerWellKnown()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Authcore Authentication API
//	@version		0.1.0
//	@description	Password login, refresh and logout for session tokens. Access tokens are JWTs signed with EdDSA, ES256 or RS256
//	@description	and can be verified offline using the JWKS endpoint.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) throttle() httpx.Middleware {
	return httpx.Throttle(r.PublicLimit, httpx.ClientAddr(r.TrustProxy))
}

func (r *Router) registerAuth() {
	clientKey := httpx.ClientAddr(r.TrustProxy)

	// Login attempts are limited per client inside the service, before the
	// credential lookup. The throttle only caps raw request volume.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(&LoginHandler{AuthService: r.AuthService, Cookies: r.Cookies, ClientKey: clientKey},
			r.throttle(),
		),
	)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(&RefreshHandler{AuthService: r.AuthService, Cookies: r.Cookies},
			r.throttle(),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(&LogoutHandler{AuthService: r.AuthService, Cookies: r.Cookies},
			r.throttle(),
		),
	)

	gateOpts := []httpx.GateOption{httpx.WithRequired()}
	if r.Metrics != nil {
		gateOpts = append(gateOpts, httpx.WithRejectHook(func(_ *http.Request, err error) {
			r.Metrics.ObserveGateReject(httpx.RejectReason(err))
		}))
	}
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(MeHandler),
			r.throttle(),
			httpx.AuthGate(r.verifier, gateOpts...),
		),
	)
}

func (r *Router) registerWellKnown() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			r.throttle(),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			r.throttle(),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Signer, r.Cache),
			r.throttle(),
		),
	)
	if r.Gatherer != nil {
		r.Mux.Handle("GET /metrics", promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{}))
	}
}
