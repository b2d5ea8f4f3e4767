package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/2beens/blogsite/internal/auth"
	"github.com/2beens/blogsite/internal/blog"
	"github.com/2beens/blogsite/internal/cache"
	"github.com/2beens/blogsite/internal/config"
	"github.com/2beens/blogsite/internal/db"
	"github.com/2beens/blogsite/internal/middleware"
	"github.com/2beens/blogsite/internal/misc"
	"github.com/2beens/blogsite/internal/telemetry/metrics"
	"github.com/2beens/blogsite/internal/telemetry/tracing"
	"github.com/2beens/blogsite/internal/users"
	"github.com/2beens/blogsite/internal/web"
)

const (
	sessionsCleanupInterval = 8 * time.Hour
	postsCacheTTL           = 10 * time.Minute
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config *config.Config
	dbPool *pgxpool.Pool

	redisClient *redis.Client
	authService *auth.Service

	renderer     *web.Renderer
	cookieSigner *web.CookieSigner
	postsCache   cache.Cache

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config      *config.Config
	VersionInfo string
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config
	secrets := cfg.Secrets

	// creates the schema on first start
	if err := db.Migrate(ctx, secrets.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		ConnString:     secrets.DatabaseURL,
		TracingEnabled: secrets.HoneycombEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": "blogsite"},
	)
	promRegistry := metrics.SetupPrometheus(params.VersionInfo, pgxpoolCollector)
	metricsManager := metrics.NewManager("blogsite", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: secrets.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(secrets.HoneycombEnabled, "blogsite", rdb)
	if err != nil {
		return nil, err
	}

	authService := auth.NewService(auth.DefaultTTL, rdb)
	go authService.RunCleaner(ctx, sessionsCleanupInterval)

	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("new renderer: %w", err)
	}

	var postsCache cache.Cache = cache.Noop{}
	if cfg.PostsCacheSizeMB > 0 {
		postsCache = cache.NewFreecache(cfg.PostsCacheSizeMB)
	}

	return &Server{
		config:      cfg,
		versionInfo: params.VersionInfo,
		dbPool:      dbPool,

		redisClient: rdb,
		authService: authService,

		renderer:     renderer,
		cookieSigner: web.NewCookieSigner(secrets.SecretKey, cfg.SecureCookies),
		postsCache:   postsCache,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	if s.renderer == nil || s.cookieSigner == nil {
		return nil, errors.New("renderer and cookie signer must be set")
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.renderer.Error(w, req, http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.renderer.Error(w, req, http.StatusMethodNotAllowed)
	})

	usersRepo := users.NewRepo(s.dbPool)
	requireLogin := middleware.RequireLogin(s.renderer)
	adminOnly := middleware.AdminOnly(s.renderer)

	// rate limit the credential posting endpoints to prevent abuse
	authRateLimit := middleware.RateLimit(
		redis_rate.NewLimiter(s.redisClient),
		s.renderer,
		s.metricsManager,
		"auth",
		s.config.LoginRateLimitAllowedPerMin,
	)

	authHandler := auth.NewHandler(usersRepo, s.authService, s.cookieSigner, s.renderer, s.metricsManager)
	authHandler.SetupRoutes(r, authRateLimit, requireLogin)

	blogHandler := blog.NewHandler(
		blog.NewCachedPostsRepo(blog.NewPostsRepo(s.dbPool), s.postsCache, postsCacheTTL),
		blog.NewCommentsRepo(s.dbPool),
		s.renderer,
		s.metricsManager,
	)
	blogHandler.SetupRoutes(r, adminOnly)

	miscHandler := misc.NewHandler(s.renderer, s.versionInfo)
	miscHandler.SetupRoutes(r)

	r.Use(middleware.PanicRecovery(s.renderer, s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(otelmux.Middleware("blogsite-router"))
	r.Use(web.WithFlashes(s.cookieSigner))
	r.Use(middleware.Session(s.authService, usersRepo, s.cookieSigner))
	r.Use(middleware.CSRF(s.renderer, s.config.SecureCookies))
	r.Use(middleware.DrainAndCloseRequest())

	return r, nil
}

func (s *Server) Serve(host string, port int) {
	router, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeOpenConnections.Inc()
	case http.StateClosed:
		s.metricsManager.GaugeOpenConnections.Dec()
	default:
		// do nothing
	}
}
