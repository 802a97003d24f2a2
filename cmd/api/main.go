package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/PabloPavan/userdesk/internal"
	"github.com/PabloPavan/userdesk/internal/db"
	"github.com/PabloPavan/userdesk/internal/httpapi"
	"github.com/PabloPavan/userdesk/internal/kvstore"
	"github.com/PabloPavan/userdesk/internal/ratelimit"
	"github.com/PabloPavan/userdesk/internal/session"
	"github.com/PabloPavan/userdesk/internal/telemetry"
	"github.com/PabloPavan/userdesk/internal/users"
	"github.com/redis/go-redis/v9"

	_ "github.com/PabloPavan/userdesk/docs"
)

const serviceName = "userdesk-api"

func main() {
	port := internal.Env("APP_PORT", "8080")
	driver := kvstore.Driver(internal.EnvOneOf("STORE_DRIVER", string(kvstore.DriverMemory),
		string(kvstore.DriverMemory),
		string(kvstore.DriverRedis),
		string(kvstore.DriverPostgres),
		string(kvstore.DriverSQLite),
		string(kvstore.DriverS3),
	))
	prefix := internal.Env("STORE_PREFIX", "userdesk:")
	redisURL := internal.Env("REDIS_URL", "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := telemetry.InitTracer(serviceName)
	defer shutdown(context.Background())
	shutdownMetrics := telemetry.InitMetrics(serviceName)
	defer shutdownMetrics(context.Background())
	shutdownLogger := telemetry.InitLogger(serviceName)
	defer shutdownLogger(context.Background())
	db.InitTelemetry(serviceName)

	var redisClient *redis.Client
	if redisURL != "" || driver == kvstore.DriverRedis {
		if redisURL == "" {
			redisURL = internal.MustEnv("REDIS_URL")
		}
		redisOpt, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		redisClient = redis.NewClient(redisOpt)
		defer redisClient.Close()
	}

	var pgBase *db.Base
	if driver == kvstore.DriverPostgres {
		d, err := db.New(ctx, internal.MustEnv("DATABASE_URL"), db.PoolOptions{
			MaxConns: int32(parseIntEnv("DATABASE_MAX_CONNS", 4)),
		})
		if err != nil {
			log.Fatalf("db connect error: %v", err)
		}
		defer d.Close()
		pgBase = db.NewBase(d.Pool, 3*time.Second)
	}

	backend, err := kvstore.Open(ctx, kvstore.Config{
		Driver:     driver,
		Prefix:     prefix,
		Redis:      redisClient,
		Postgres:   pgBase,
		SQLitePath: internal.Env("SQLITE_PATH", "userdesk.db"),
		S3: kvstore.S3Config{
			Bucket:          internal.Env("S3_BUCKET", ""),
			Region:          internal.Env("S3_REGION", ""),
			Endpoint:        internal.Env("S3_ENDPOINT", ""),
			PathStyle:       parseBoolEnv("S3_PATH_STYLE", false),
			AccessKeyID:     internal.Env("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: internal.Env("AWS_SECRET_ACCESS_KEY", ""),
		},
	})
	if err != nil {
		log.Fatalf("store open error: %v", err)
	}
	if closer, ok := backend.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	metrics := telemetry.NewUsersMetrics()
	svc, err := users.NewService(users.ServiceConfig{
		Source: users.NewHTTPSource(
			internal.Env("USERS_API_URL", users.DefaultRemoteURL),
			parseDurationEnv("USERS_API_TIMEOUT", users.DefaultRemoteTimeout),
		),
		Storage:       users.NewStorage(backend),
		Metrics:       metrics,
		ListCacheSize: parseIntEnv("LIST_CACHE_SIZE", users.DefaultListCacheSize),
	})
	if err != nil {
		log.Fatalf("users service error: %v", err)
	}

	var sessionStore session.Store = session.NewMemoryStore()
	if redisClient != nil {
		sessionStore = session.NewRedisStore(redisClient, internal.Env("SESSION_REDIS_PREFIX", prefix+"session:"))
	}
	sessionManager := &session.Manager{
		Store:         sessionStore,
		TTL:           parseDurationEnv("SESSION_TTL", session.DefaultTTL),
		RefreshBefore: parseDurationEnv("SESSION_REFRESH_BEFORE", time.Hour),
	}
	cookie := session.CookieConfig{
		Name:     internal.Env("SESSION_COOKIE_NAME", session.DefaultCookieName),
		Path:     internal.Env("SESSION_COOKIE_PATH", "/"),
		Domain:   internal.Env("SESSION_COOKIE_DOMAIN", ""),
		Secure:   parseBoolEnv("SESSION_COOKIE_SECURE", false),
		SameSite: parseSameSiteEnv("SESSION_COOKIE_SAMESITE", http.SameSiteLaxMode),
	}

	reloadLimit := parseIntEnv("RELOAD_RATE_LIMIT", ratelimit.DefaultLimit)
	reloadWindow := parseDurationEnv("RELOAD_RATE_WINDOW", ratelimit.DefaultWindow)
	var limiter httpapi.RateLimiter = ratelimit.NewLocal(reloadLimit, reloadWindow)
	if redisClient != nil {
		limiter = &ratelimit.Limiter{
			Client: redisClient,
			Prefix: prefix + "ratelimit:",
			Limit:  reloadLimit,
			Window: reloadWindow,
		}
	}

	res, err := svc.Load(ctx)
	switch {
	case err != nil:
		telemetry.LogError(ctx, "initial load failed",
			telemetry.LogString("event", "startup.load.failed"),
			telemetry.LogErr(err),
		)
	case res.Offline:
		log.Printf("users api unreachable, serving %d stored users", res.Count)
	default:
		log.Printf("loaded %d users", res.Count)
	}

	perPage := parseIntEnv("USERS_ITEMS_PER_PAGE", users.DefaultItemsPerPage)
	app := &httpapi.App{
		ServiceName: serviceName,
		Health: &httpapi.HealthHandler{
			Store:   backend,
			Driver:  string(backend.Driver()),
			Loading: svc.Loading,
		},
		Users: &httpapi.UsersHandler{Service: svc, Limiter: limiter, PerPage: perPage, Sessions: sessionManager},
		View: &httpapi.ViewHandler{
			Service:   svc,
			Selection: svc.Selection,
			Sessions:  sessionManager,
			PerPage:   perPage,
		},
		Storage: &httpapi.StorageHandler{
			Service:  svc,
			Limiter:  limiter,
			Sessions: sessionManager,
			Cookie:   cookie,
		},
		Session: session.Middleware(sessionManager, cookie),
		Metrics: metrics.Handler(),
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("api listening on :%s (store=%s)", port, backend.Driver())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func parseDurationEnv(key string, def time.Duration) time.Duration {
	val := strings.TrimSpace(internal.Env(key, ""))
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("invalid %s: %q, using default", key, val)
		return def
	}
	return d
}

func parseIntEnv(key string, def int) int {
	val := strings.TrimSpace(internal.Env(key, ""))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("invalid %s: %q, using default", key, val)
		return def
	}
	return n
}

func parseBoolEnv(key string, def bool) bool {
	val := strings.TrimSpace(internal.Env(key, ""))
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		log.Printf("invalid %s: %q, using default", key, val)
		return def
	}
	return b
}

func parseSameSiteEnv(key string, def http.SameSite) http.SameSite {
	val := strings.ToLower(strings.TrimSpace(internal.Env(key, "")))
	switch val {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	case "":
		return def
	default:
		log.Printf("invalid %s: %q, using default", key, val)
		return def
	}
}
