package internal

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kazz187/keeperd/internal/approval"
	"github.com/kazz187/keeperd/internal/config"
	"github.com/kazz187/keeperd/internal/eventbus"
	"github.com/kazz187/keeperd/internal/identity"
	"github.com/kazz187/keeperd/internal/injector"
	"github.com/kazz187/keeperd/internal/locker"
	"github.com/kazz187/keeperd/internal/pushsubscription"
	"github.com/kazz187/keeperd/internal/request"
	"github.com/kazz187/keeperd/pkg/cerr"
	"github.com/kazz187/keeperd/pkg/clog"
	"github.com/kazz187/keeperd/pkg/codec"
)

type Server struct {
	server           *http.Server
	env              *config.Env
	lockerService    *locker.Service
	approvalService  *approval.Service
	identityService  *identity.Service
	requestManager   *request.Manager
	pushSubscription *pushsubscription.Service
	injectorServer   *injector.Server
	eventServer      *eventbus.Server
}

func NewServer(
	env *config.Env,
	lockerService *locker.Service,
	approvalService *approval.Service,
	identityService *identity.Service,
	requestManager *request.Manager,
	pushSubscription *pushsubscription.Service,
	injectorServer *injector.Server,
	eventServer *eventbus.Server,
) *Server {
	return &Server{
		env:              env,
		lockerService:    lockerService,
		approvalService:  approvalService,
		identityService:  identityService,
		requestManager:   requestManager,
		pushSubscription: pushSubscription,
		injectorServer:   injectorServer,
		eventServer:      eventServer,
	}
}

// Handler assembles the JSON API for the approval UI, the Connect services
// and the health endpoints behind CORS and the API key check.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(),
			cerr.NewJSONResponseChiMiddleware(),
		)
		s.lockerService.RegisterRoutes(r)
		s.requestManager.RegisterRoutes(r)
		s.approvalService.RegisterRoutes(r)
		s.identityService.RegisterRoutes(r)
		s.pushSubscription.RegisterRoutes(r, s.env.VAPIDPublicKey)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()

	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)
	mux.Handle(grpchealth.NewHandler(grpchealth.NewStaticChecker(
		injector.InjectorServiceName,
		eventbus.EventServiceName,
	)))

	handlerOpts := append(codec.ConnectHandlerOptions(), connect.WithInterceptors(s.interceptors()...))

	mux.Handle(injector.NewInjectorServiceHandler(s.injectorServer, handlerOpts...))
	mux.Handle(eventbus.NewEventServiceHandler(s.eventServer, handlerOpts...))

	return h2c.NewHandler(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.apiKeyMiddleware(mux)), &http2.Server{})
}

// ListenAndServe starts the HTTP server. ctx becomes the base context of
// every request so that cancelling it ends open event streams.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) interceptors() []connect.Interceptor {
	return []connect.Interceptor{
		clog.NewSlogConnectInterceptor(),
		cerr.NewConvertConnectErrorInterceptor(),
	}
}

// apiKeyMiddleware guards everything but health checks and the injector,
// which dApps reach from the browser and which is gated per origin instead.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" ||
			r.URL.Path == "/grpc.health.v1.Health/Check" ||
			strings.HasPrefix(r.URL.Path, "/"+injector.InjectorServiceName+"/") {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.env.APIKey)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
