package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/router-for-me/StationPortal/internal/access"
	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/config"
	"github.com/router-for-me/StationPortal/internal/db"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/http/api/admin"
	adminhandlers "github.com/router-for-me/StationPortal/internal/http/api/admin/handlers"
	"github.com/router-for-me/StationPortal/internal/http/api/external"
	"github.com/router-for-me/StationPortal/internal/http/api/front"
	"github.com/router-for-me/StationPortal/internal/logging"
	"github.com/router-for-me/StationPortal/internal/metrics"
	"github.com/router-for-me/StationPortal/internal/models"
	"github.com/router-for-me/StationPortal/internal/realtime"
	"github.com/router-for-me/StationPortal/internal/security"
	"github.com/router-for-me/StationPortal/internal/sessions"
	"github.com/router-for-me/StationPortal/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// ErrMissingJWTSecret is returned when the server would sign tokens with an empty key.
var ErrMissingJWTSecret = errors.New("app: jwt.secret is empty")

// CreateAdminParams holds inputs for bootstrap admin creation.
type CreateAdminParams struct {
	Username string
	Email    string
	Password string
}

// CreateAPIKeyParams holds inputs for API key creation.
type CreateAPIKeyParams struct {
	Name     string
	Scope    string
	Username string // Optional owning user.
}

// Services are the long-lived components the router is built from.
type Services struct {
	Base      context.Context
	Hub       *realtime.Hub
	Broker    *realtime.Broker
	Sessions  *sessions.Service
	Metrics   *metrics.Collectors
	APIKeys   portalhttp.APIKeyAuthenticator
	AppConfig config.Config
}

// loadConfig reads the config file and checks the settings every command needs.
func loadConfig(cfg config.AppConfig) (config.Config, error) {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	appCfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return config.Config{}, errLoad
	}
	if strings.TrimSpace(appCfg.Database.DSN) == "" {
		return config.Config{}, config.ErrMissingDSN
	}
	return appCfg, nil
}

func openMigrated(appCfg config.Config) (*gorm.DB, error) {
	conn, errOpen := db.Open(appCfg.Database)
	if errOpen != nil {
		return nil, errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		_ = db.Close(conn)
		return nil, errMigrate
	}
	if errSeed := db.Seed(conn); errSeed != nil {
		_ = db.Close(conn)
		return nil, errSeed
	}
	return conn, nil
}

// Migrate opens the database, runs migrations and seeds permissions and roles.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	appCfg, errLoad := loadConfig(cfg)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := openMigrated(appCfg)
	if errOpen != nil {
		return errOpen
	}
	defer func() { _ = db.Close(conn) }()
	log.Info("database migrated")
	return nil
}

// CreateAdmin creates an active user holding the admin role.
func CreateAdmin(ctx context.Context, cfg config.AppConfig, params CreateAdminParams) (*models.User, error) {
	appCfg, errLoad := loadConfig(cfg)
	if errLoad != nil {
		return nil, errLoad
	}
	conn, errOpen := openMigrated(appCfg)
	if errOpen != nil {
		return nil, errOpen
	}
	defer func() { _ = db.Close(conn) }()
	return CreateAdminUser(ctx, conn, params)
}

// CreateAdminUser inserts an admin account into an already migrated database.
func CreateAdminUser(ctx context.Context, conn *gorm.DB, params CreateAdminParams) (*models.User, error) {
	username := strings.TrimSpace(params.Username)
	email := strings.TrimSpace(params.Email)
	if len(username) < 3 {
		return nil, fmt.Errorf("app: username must be at least 3 characters")
	}
	if email == "" {
		email = username + "@localhost"
	}
	if errValidate := security.ValidatePassword(params.Password); errValidate != nil {
		return nil, errValidate
	}
	hash, errHash := security.HashPassword(params.Password)
	if errHash != nil {
		return nil, errHash
	}

	var role models.Role
	if errRole := conn.WithContext(ctx).Where("name = ?", authz.RoleAdmin).First(&role).Error; errRole != nil {
		return nil, fmt.Errorf("app: load admin role: %w", errRole)
	}
	var count int64
	if errCount := conn.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).Count(&count).Error; errCount != nil {
		return nil, fmt.Errorf("app: check user: %w", errCount)
	}
	if count > 0 {
		return nil, fmt.Errorf("app: username or email already registered")
	}
	user := models.User{
		Username:       username,
		Email:          email,
		HashedPassword: hash,
		IsActive:       true,
		RoleID:         &role.ID,
	}
	if errCreate := conn.WithContext(ctx).Create(&user).Error; errCreate != nil {
		return nil, fmt.Errorf("app: create admin: %w", errCreate)
	}
	log.WithField("username", username).Info("admin user created")
	return &user, nil
}

// CreateAPIKey issues an API key and returns the secret, which is not shown again.
func CreateAPIKey(ctx context.Context, cfg config.AppConfig, params CreateAPIKeyParams) (string, error) {
	scope := strings.TrimSpace(params.Scope)
	if !models.ValidScope(scope) {
		return "", fmt.Errorf("app: invalid scope %q (want one of %s)", scope, strings.Join(models.APIKeyScopes, ", "))
	}
	appCfg, errLoad := loadConfig(cfg)
	if errLoad != nil {
		return "", errLoad
	}
	conn, errOpen := openMigrated(appCfg)
	if errOpen != nil {
		return "", errOpen
	}
	defer func() { _ = db.Close(conn) }()

	id, secret, errGen := security.GenerateAPIKey()
	if errGen != nil {
		return "", errGen
	}
	key := models.APIKey{ID: id, Key: secret, Scope: scope, IsActive: true}
	if name := strings.TrimSpace(params.Name); name != "" {
		key.Name = &name
	}
	if username := strings.TrimSpace(params.Username); username != "" {
		var owner models.User
		if errFind := conn.WithContext(ctx).Where("username = ?", username).First(&owner).Error; errFind != nil {
			return "", fmt.Errorf("app: load key owner %s: %w", username, errFind)
		}
		key.UserID = &owner.ID
	}
	if errCreate := conn.WithContext(ctx).Create(&key).Error; errCreate != nil {
		return "", fmt.Errorf("app: create api key: %w", errCreate)
	}
	return secret, nil
}

// NewRouter builds the gin engine serving health, metrics and every API group.
func NewRouter(conn *gorm.DB, svc Services) *gin.Engine {
	appCfg := svc.AppConfig
	engine := gin.New()
	engine.Use(gin.Recovery(), portalhttp.CORSMiddleware(appCfg.Server.CORSOrigins), portalhttp.RequestLogMiddleware(svc.Metrics))

	var broker adminhandlers.Pinger
	if svc.Broker != nil && svc.Broker.Distributed() {
		broker = svc.Broker
	}
	engine.GET("/healthz", adminhandlers.NewHealthHandler(conn, broker).Healthz)
	if appCfg.Metrics.Enabled {
		engine.GET(appCfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	var publisher realtime.Publisher
	if svc.Broker != nil {
		publisher = svc.Broker
	}
	admin.RegisterAdminRoutes(engine, conn, appCfg.JWT, admin.Deps{Sessions: svc.Sessions, Publisher: publisher})
	front.RegisterFrontRoutes(engine, conn, appCfg.JWT, front.Deps{
		Base:     svc.Base,
		Sessions: svc.Sessions,
		Hub:      svc.Hub,
		Metrics:  svc.Metrics,
		Origins:  appCfg.Server.CORSOrigins,
	})
	apiKeys := svc.APIKeys
	if apiKeys == nil {
		apiKeys = access.NewDBAPIKeyProvider(conn)
	}
	external.RegisterExternalRoutes(engine, conn, apiKeys, svc.Metrics)

	engine.NoRoute(func(c *gin.Context) {
		portalhttp.Error(c, http.StatusNotFound, "Not Found")
	})
	return engine
}

// RunServer boots the dashboard API and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	appCfg, errLoad := loadConfig(cfg)
	if errLoad != nil {
		return errLoad
	}
	closer := logging.Setup(appCfg.Logging)
	defer func() { _ = closer.Close() }()
	if strings.TrimSpace(appCfg.JWT.Secret) == "" {
		return ErrMissingJWTSecret
	}
	if !log.IsLevelEnabled(log.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, errOpen := openMigrated(appCfg)
	if errOpen != nil {
		return errOpen
	}
	defer func() { _ = db.Close(conn) }()
	if errRefresh := settings.Refresh(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("load runtime settings failed")
	}

	var m *metrics.Collectors
	if appCfg.Metrics.Enabled {
		m = metrics.Global()
	}

	serverCtx, stop := context.WithCancel(ctx)
	defer stop()

	hub := realtime.NewHub(m)
	broker := realtime.NewBroker(realtime.NewRedisClient(appCfg.Redis), appCfg.Redis.Channel, hub, m)
	defer func() { _ = broker.Close() }()
	if broker.Distributed() {
		if errPing := broker.Ping(ctx); errPing != nil {
			return fmt.Errorf("app: redis %s: %w", appCfg.Redis.Addr, errPing)
		}
	}
	go func() {
		if errRun := broker.Run(serverCtx); errRun != nil {
			log.WithError(errRun).Error("force logout broker stopped")
		}
	}()

	cleaner := sessions.NewRetentionCleaner(conn, appCfg.Sessions, appCfg.JWT.Expiry(), m)
	if errStart := cleaner.Start(serverCtx); errStart != nil {
		return errStart
	}

	engine := NewRouter(conn, Services{
		Base:      serverCtx,
		Hub:       hub,
		Broker:    broker,
		Sessions:  sessions.NewService(conn),
		Metrics:   m,
		APIKeys:   access.NewDBAPIKeyProvider(conn),
		AppConfig: appCfg,
	})
	srv := &http.Server{
		Addr:              appCfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errServe := make(chan error, 1)
	go func() {
		log.Infof("station portal listening on %s (redis=%t)", appCfg.Server.Addr, broker.Distributed())
		if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			errServe <- errListen
		}
		close(errServe)
	}()

	select {
	case errListen, ok := <-errServe:
		if ok {
			return fmt.Errorf("app: listen: %w", errListen)
		}
		return nil
	case <-ctx.Done():
	}

	// Websockets are hijacked, so Shutdown does not wait for them; cancelling closes them.
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("app: shutdown: %w", errShutdown)
	}
	log.Info("station portal stopped")
	return nil
}
