package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/firekit/internal/emulator/service"
	"github.com/aussiebroadwan/firekit/internal/emulator/store"
	"github.com/aussiebroadwan/firekit/pkg/cryptox"
	"github.com/aussiebroadwan/firekit/pkg/httpx"
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
	"github.com/aussiebroadwan/firekit/pkg/slogx"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "github.com/aussiebroadwan/firekit/api/emulator" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// DefaultKeyMaxAge is how long clients may cache the published keys.
const DefaultKeyMaxAge = time.Hour

var (
	DefaultSignInLimit = httpx.RateLimitConfig{Requests: 100, Window: time.Minute, Burst: 20}
	DefaultAdminLimit  = httpx.RateLimitConfig{Requests: 1000, Window: time.Minute, Burst: 100}
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	idKeys       *jwtx.KeyManager
	sessionKeys  *jwtx.KeyManager
	buildVersion string
	clock        clockwork.Clock
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	TokenService   *service.TokenService
	AccountService *service.AccountService

	// KeyMaxAge goes out in the Cache-Control of the key documents.
	KeyMaxAge time.Duration

	// AdminToken is the bearer token admin endpoints want. Empty accepts
	// any token, as the platform's own emulator does.
	AdminToken string

	SignInLimit httpx.RateLimitConfig
	AdminLimit  httpx.RateLimitConfig
}

func NewRouter(
	idKeys, sessionKeys *jwtx.KeyManager,
	buildVersion string,
	st store.Store,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Router {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		idKeys:       idKeys,
		sessionKeys:  sessionKeys,
		buildVersion: buildVersion,
		clock:        clock,
		startTime:    clock.Now(),
		logger:       logger,
		store:        st,
		KeyMaxAge:    DefaultKeyMaxAge,
		SignInLimit:  DefaultSignInLimit,
		AdminLimit:   DefaultAdminLimit,
	}

	// Chain runs these outermost first, so the span exists before the
	// request logger goes looking for its trace id
	r.middlewares = []httpx.Middleware{
		func(next http.Handler) http.Handler { return otelhttp.NewHandler(next, "auth-emulator") },
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerKeys()
	r.registerSignIn()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			firekit Identity Platform Emulator
//	@version		0.1.0
//	@description	Local stand-in for the identity platform: exchanges custom tokens for ID tokens, manages accounts and session cookies,
//	@description	and publishes the keys everything is signed with so the admin SDK can verify against it.
//	@description
//	@description				Point the SDK at it with FIREBASE_AUTH_EMULATOR_HOST.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/firekit
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:9099
//	@BasePath					/
//
//	@schemes					http
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Any OAuth2 access token unless the emulator was started with EMULATOR_ADMIN_TOKEN. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerKeys() {
	r.Mux.Handle("GET /service_accounts/v1/jwk/securetoken@system.gserviceaccount.com",
		JWKSHandler(r.idKeys.KeySet, r.KeyMaxAge))
	r.Mux.Handle("GET /robot/v1/metadata/x509/securetoken@system.gserviceaccount.com",
		X509Handler(r.idKeys.KeySet, r.KeyMaxAge))
	r.Mux.Handle("GET /v1/sessionCookiePublicKeys",
		JWKSHandler(r.sessionKeys.KeySet, r.KeyMaxAge))
}

func (r *Router) registerSignIn() {
	// Public, so limited per client address
	limiter := httpx.NewLimiter(r.SignInLimit, r.clock)

	r.Mux.Handle("POST /v1/accounts:signInWithCustomToken",
		httpx.Chain(&SignInHandler{TokenService: r.TokenService},
			httpx.RateLimit(limiter, httpx.ClientIP),
		),
	)
}

func (r *Router) registerAdmin() {
	var accept func(string) bool
	if r.AdminToken != "" {
		accept = func(tok string) bool { return tok == r.AdminToken }
	}
	limiter := httpx.NewLimiter(r.AdminLimit, r.clock)

	secured := func(h http.Handler) http.Handler {
		return httpx.Chain(h,
			httpx.RequireBearer(accept),
			httpx.RateLimit(limiter, bearerFingerprint),
		)
	}

	accounts := &AccountsHandler{AccountService: r.AccountService}
	project := &ProjectHandler{TokenService: r.TokenService}

	r.Mux.Handle("POST /v1/projects/{project}/accounts:lookup", secured(http.HandlerFunc(accounts.HandleLookup)))
	r.Mux.Handle("POST /v1/projects/{project}/accounts:update", secured(http.HandlerFunc(accounts.HandleUpdate)))
	r.Mux.Handle("POST /v1/projects/{project}/accounts:delete", secured(http.HandlerFunc(accounts.HandleDelete)))
	r.Mux.Handle("POST /v1/projects/{target}", secured(project))
}

// bearerFingerprint keys the admin budget by token without keeping, or
// logging, the token itself.
func bearerFingerprint(req *http.Request) string {
	tok := httpx.BearerToken(req)
	if tok == "" {
		return ""
	}
	return cryptox.FingerprintToken(tok)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.clock, r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.clock, r.startTime, r.buildVersion, r.store, r.idKeys, r.sessionKeys))
}
