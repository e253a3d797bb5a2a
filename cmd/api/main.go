package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toss-checkout/internal/app"
	"github.com/noah-isme/toss-checkout/internal/catalog"
	"github.com/noah-isme/toss-checkout/internal/checkout"
	"github.com/noah-isme/toss-checkout/internal/config"
	"github.com/noah-isme/toss-checkout/internal/health"
	"github.com/noah-isme/toss-checkout/internal/obs"
	"github.com/noah-isme/toss-checkout/internal/order"
	"github.com/noah-isme/toss-checkout/internal/payment"
	"github.com/noah-isme/toss-checkout/internal/ratelimit"
	"github.com/noah-isme/toss-checkout/internal/result"
	"github.com/noah-isme/toss-checkout/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "checkout")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", false)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "toss-checkout-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	redisClient, err := app.NewRedis(startCtx, cfg, metricsEnabled, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	} else {
		logger.Warn().Msg("REDIS_URL not set; catalog uses the in-memory store")
	}

	store, err := app.NewCatalogStore(startCtx, cfg, redisClient, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog store")
	}

	bus, closeBus, err := app.NewEventBus(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise event bus")
	}
	defer func() {
		if err := closeBus(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	toss := app.NewTossClient(cfg, &logger)
	paymentService := &payment.Service{Provider: toss, Events: bus, Logger: &logger}

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Store: store, Events: bus, Logger: &logger})
	orderHandler := &order.Handler{Products: store}
	checkoutHandler := &checkout.Handler{
		Products:  store,
		Loader:    payment.HostedWidget{Creator: toss, Method: cfg.TossPaymentMethod},
		ClientKey: cfg.TossClientKey,
		Origin:    cfg.PublicBaseURL,
		Logger:    &logger,
	}
	paymentHandler := &payment.Handler{Svc: paymentService}
	resultHandler := &result.Handler{Confirmer: paymentService, Logger: &logger}

	checkoutLimiter, err := app.NewCheckoutLimiter(redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise checkout rate limiter")
	}
	limitErr := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	confirmLimit := ratelimit.Handler{
		Limiter: app.NewConfirmLimiter(redisClient),
		Rule:    ratelimit.Rule{Name: "confirm", Window: cfg.RateLimitConfirmWindow, Max: cfg.RateLimitConfirmMax},
		OnError: limitErr,
	}
	checkoutLimit := ratelimit.Handler{
		Limiter: checkoutLimiter,
		Rule:    ratelimit.Rule{Name: "checkout", Window: cfg.RateLimitCheckoutWindow, Max: cfg.RateLimitCheckoutMax},
		OnError: limitErr,
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: cfg.SecurityHeadersEnable, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), envOrDefault("OBS_PPROF_USER", ""), envOrDefault("OBS_PPROF_PASS", "")))
	}

	healthHandler := health.Handler{
		Checker:      health.Probe{Store: store, Redis: redisClient},
		StoreTimeout: envDurationMillis("OBS_HEALTH_STORE_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("OBS_HEALTH_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Get("/products", catalogHandler.Browse)
	r.Get("/order", orderHandler.Page)
	r.Get("/checkout", checkoutHandler.Page)
	r.Get("/success", resultHandler.Success)
	r.Get("/fail", resultHandler.Fail)

	r.Route("/api", func(api chi.Router) {
		api.Route("/products", func(p chi.Router) {
			p.Get("/", catalogHandler.List)
			p.Post("/", catalogHandler.Create)
			p.Put("/", catalogHandler.Update)
			p.Delete("/", catalogHandler.Delete)
			p.Get("/{id}", catalogHandler.Get)
			p.Put("/{id}", catalogHandler.Update)
			p.Delete("/{id}", catalogHandler.Delete)
		})
		api.Post("/orders", orderHandler.Submit)
		api.With(checkoutLimit.Middleware).Post("/checkout", checkoutHandler.Checkout)
		api.With(confirmLimit.Middleware).Post("/confirm-payment", paymentHandler.Confirm)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	shutdownGracefully(srv, logger)
}

func shutdownGracefully(srv *http.Server, logger zerolog.Logger) {
	health.SetReady(false)
	drain := envDurationMillis("SHUTDOWN_DRAIN_MS", 0)
	if drain > 0 {
		time.Sleep(drain)
	}
	ctx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 10000))
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
		return
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	ms := fallback
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			ms = parsed
		}
	}
	return time.Duration(ms) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
