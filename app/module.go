package app

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"streetlight-watch/config"
	"streetlight-watch/controllers"
	"streetlight-watch/geocode"
	"streetlight-watch/media"
	"streetlight-watch/middlewares"
	"streetlight-watch/repository"
	"streetlight-watch/routes"
	"streetlight-watch/services"
	authUtils "streetlight-watch/utils"
)

// Module combines all application modules
func Module() fx.Option {
	return fx.Options(
		// Configuration
		fx.Provide(config.LoadConfig),
		fx.Provide(newLogger),

		// Infrastructure
		fx.Provide(
			newStore,
			newRedis,
			newLimiter,
			newTokenService,
			newMediaStore,
			newGeocoder,
			newQualityAssessor,
		),

		// Services
		fx.Provide(newAuthService, newReportService),

		// HTTP
		fx.Provide(
			newAuthController,
			controllers.NewUserController,
			newReportController,
			newHealthController,
			newRouter,
			newHTTPServer,
		),

		fx.Invoke(registerHooks),
	)
}

func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	return config.NewLogger(cfg.Server.Env)
}

func newStore(lc fx.Lifecycle, cfg *config.AppConfig, log *zap.Logger) (repository.Store, error) {
	if cfg.Store.Driver == "memory" {
		log.Warn("using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	ctx := context.Background()
	client, err := config.ConnectDB(ctx, cfg.Mongo, log)
	if err != nil {
		return nil, err
	}
	store := repository.NewMongoStore(client.Database(cfg.Mongo.Database), cfg.Mongo.Timeout)
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing MongoDB connection")
			return client.Disconnect(ctx)
		},
	})
	return store, nil
}

// newRedis returns nil when Redis is disabled.
func newRedis(lc fx.Lifecycle, cfg *config.AppConfig, log *zap.Logger) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		log.Info("redis disabled; rate limiting and geocode caching are off")
		return nil, nil
	}
	client, err := config.ConnectRedis(context.Background(), cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newLimiter(client *redis.Client, cfg *config.AppConfig) middlewares.Limiter {
	if client == nil {
		return nil
	}
	return middlewares.NewRedisLimiter(client, cfg.RateLimit.KeyPrefix)
}

func newTokenService(cfg *config.AppConfig) (services.TokenService, error) {
	return authUtils.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
}

func newMediaStore(lc fx.Lifecycle, cfg *config.AppConfig, log *zap.Logger) (services.MediaStore, error) {
	if cfg.Media.Driver == "none" {
		log.Warn("media storage disabled; uploaded images are discarded")
		return media.DisabledStore{}, nil
	}

	client, err := media.NewGCSClient(context.Background(), cfg.Media.CredentialsFile)
	if err != nil {
		return nil, err
	}
	store := media.NewGCSStore(client, media.GCSConfig{
		Bucket:          cfg.Media.Bucket,
		CredentialsFile: cfg.Media.CredentialsFile,
		BaseURL:         cfg.Media.BaseURL,
		Timeout:         cfg.Media.Timeout,
		MaxPixels:       cfg.Reports.MaxImagePixels,
	}, log)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

// newGeocoder returns a nil Geocoder when lookups are disabled.
func newGeocoder(cfg *config.AppConfig, client *redis.Client, log *zap.Logger) services.Geocoder {
	if !cfg.Geocode.Enabled {
		return nil
	}
	var cache geocode.Cache
	if client != nil {
		cache = geocode.NewRedisCache(client)
	}
	return geocode.NewNominatimClient(geocode.Config{
		BaseURL:   cfg.Geocode.BaseURL,
		UserAgent: cfg.Geocode.UserAgent,
		Timeout:   cfg.Geocode.Timeout,
		CacheTTL:  cfg.Geocode.CacheTTL,
	}, cache, log)
}

func newQualityAssessor(cfg *config.AppConfig) services.ImageAssessor {
	return media.NewQualityAssessor(cfg.Reports.MaxImagePixels)
}

func newAuthService(cfg *config.AppConfig, store repository.Store, tokens services.TokenService, log *zap.Logger) *services.AuthService {
	authCfg := services.DefaultAuthConfig()
	authCfg.MaxLoginAttempts = cfg.Auth.MaxLoginAttempts
	authCfg.LockDuration = cfg.Auth.LockDuration
	authCfg.ResetTokenTTL = cfg.Auth.ResetTokenTTL
	authCfg.BcryptCost = cfg.Auth.BcryptCost
	return services.NewAuthService(authCfg, store, tokens, log)
}

func newReportService(
	cfg *config.AppConfig,
	store repository.Store,
	mediaStore services.MediaStore,
	assessor services.ImageAssessor,
	geocoder services.Geocoder,
	log *zap.Logger,
) *services.ReportService {
	reportCfg := services.DefaultReportConfig()
	reportCfg.DuplicateRadiusMeters = cfg.Reports.DuplicateRadius
	reportCfg.DuplicateLimit = cfg.Reports.DuplicateLimit
	reportCfg.MaxImages = cfg.Reports.MaxImages
	reportCfg.MaxImageBytes = cfg.Reports.MaxImageBytes
	reportCfg.MaxImagePixels = cfg.Reports.MaxImagePixels
	reportCfg.GeocodeTimeout = cfg.Geocode.Timeout
	return services.NewReportService(reportCfg, store, store, mediaStore, assessor, geocoder, log)
}

func newAuthController(cfg *config.AppConfig, auth *services.AuthService, log *zap.Logger) *controllers.AuthController {
	return controllers.NewAuthController(auth, controllers.AuthControllerConfig{
		CookieDomain:     cfg.Auth.CookieDomain,
		CookieSecure:     cfg.IsProduction(),
		CookieMaxAge:     cfg.Auth.TokenTTL,
		ExposeResetToken: cfg.Server.Env == config.EnvDevelopment,
		AllowRoleSignup:  cfg.Auth.AllowRoleSignup,
	}, log)
}

func newReportController(cfg *config.AppConfig, reports *services.ReportService, log *zap.Logger) *controllers.ReportController {
	return controllers.NewReportController(reports, cfg.Reports.MaxImageBytes, log)
}

func newHealthController(store repository.Store) *controllers.HealthController {
	return controllers.NewHealthController(store)
}

type routerParams struct {
	fx.In

	Config  *config.AppConfig
	Auth    *services.AuthService
	Limiter middlewares.Limiter
	Log     *zap.Logger

	AuthController   *controllers.AuthController
	UserController   *controllers.UserController
	ReportController *controllers.ReportController
	HealthController *controllers.HealthController
}

func newRouter(p routerParams) *gin.Engine {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	rl := p.Config.RateLimit
	return routes.NewRouter(
		routes.Handlers{
			Auth:    p.AuthController,
			Users:   p.UserController,
			Reports: p.ReportController,
			Health:  p.HealthController,
		},
		p.Auth,
		p.Limiter,
		routes.RouterConfig{
			CORSOrigins:        p.Config.Server.CORSOrigins,
			MaxMultipartMemory: p.Config.Server.MaxMultipartMemory,
			LoginLimit: middlewares.RateLimitRule{
				Name:    "login",
				Limit:   rl.LoginLimit,
				Window:  rl.LoginWindow,
				Key:     middlewares.KeyByIP,
				Message: "Too many login attempts from this IP, please try again after 15 minutes",
			},
			ReportLimit: middlewares.RateLimitRule{
				Name:   "reports",
				Limit:  rl.ReportLimit,
				Window: rl.ReportWindow,
				Key:    middlewares.KeyByUser,
			},
		},
		p.Log,
	)
}

func newHTTPServer(cfg *config.AppConfig, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:         net.JoinHostPort("", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func registerHooks(
	lifecycle fx.Lifecycle,
	shutdowner fx.Shutdowner,
	srv *http.Server,
	cfg *config.AppConfig,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("starting HTTP server", zap.String("addr", srv.Addr), zap.String("env", cfg.Server.Env))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("failed to start server", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server...")
			ctx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
}
