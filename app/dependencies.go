package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/trailguard/cognito"
	"github.com/upb/trailguard/config"
	"github.com/upb/trailguard/internal/observability"
	"github.com/upb/trailguard/internal/queue"
	"github.com/upb/trailguard/middleware"
	"github.com/upb/trailguard/repositories"
	"github.com/upb/trailguard/repositories/dynamodb"
	"github.com/upb/trailguard/repositories/memory"
	"github.com/upb/trailguard/repositories/postgres"
	redisrepo "github.com/upb/trailguard/repositories/redis"
	"github.com/upb/trailguard/services/classifier"
	"github.com/upb/trailguard/services/incident"
	"github.com/upb/trailguard/services/ingest"
	"github.com/upb/trailguard/services/query"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB    // set for the postgres backend
	Redis  *goredis.Client // set for the redis backend or once the queue is used

	// Incident store
	Store repositories.IncidentRepository

	// Services
	Classifier *classifier.Classifier
	Writer     *incident.Writer
	Engine     *query.Engine

	// Observability
	Metrics    observability.Metrics
	Prometheus *observability.PrometheusMetrics // nil when metrics are disabled

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize incident store: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initMetrics(cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("store_backend", cfg.Store.Backend))
	return deps, nil
}

// initStore opens the configured incident store
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := postgres.NewDB(cfg.Database, d.Logger)
		if err != nil {
			return err
		}
		d.DB = db
		d.Store = postgres.NewIncidentRepository(db, d.Logger)

	case config.BackendDynamoDB:
		client, err := dynamodb.NewClient(ctx, cfg.DynamoDB)
		if err != nil {
			return err
		}
		d.Store = dynamodb.NewIncidentRepository(client, cfg.DynamoDB.Table, cfg.DynamoDB.SeverityIndex, d.Logger)
		d.Logger.Info("dynamodb incident store configured",
			zap.String("table", cfg.DynamoDB.Table),
			zap.String("index", cfg.DynamoDB.SeverityIndex))

	case config.BackendRedis:
		client, err := d.RedisClient()
		if err != nil {
			return err
		}
		d.Store = redisrepo.NewIncidentRepository(client, cfg.Redis.KeyPrefix, d.Logger)

	case config.BackendMemory:
		d.Logger.Warn("using in-memory incident store; data is lost on exit")
		d.Store = memory.NewIncidentRepository()

	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return nil
}

// initServices builds the classifier, writer and query engine
func (d *Dependencies) initServices(cfg *config.Config) error {
	table, err := classifier.LoadTable(cfg.Classification.TablePath)
	if err != nil {
		return err
	}
	d.Classifier = classifier.New(table)
	d.Writer = incident.NewWriter(d.Classifier, d.Store, d.Logger)
	d.Engine = query.NewEngine(d.Store, query.Options{
		DefaultLimit:    cfg.Query.DefaultLimit,
		MaxLimit:        cfg.Query.MaxLimit,
		ServerSideRange: cfg.Query.ServerSideRange,
	}, d.Logger)

	d.Logger.Info("services initialized",
		zap.Int("sensitive_actions", len(table)),
		zap.Bool("server_side_range", cfg.Query.ServerSideRange && d.Store.SupportsSortKeyRange()))
	return nil
}

func (d *Dependencies) initMetrics(cfg *config.Config) {
	if !cfg.Observability.MetricsEnabled {
		d.Metrics = observability.NopMetrics{}
		return
	}
	d.Prometheus = observability.NewPrometheusMetrics()
	d.Metrics = d.Prometheus
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.Disabled {
		d.Logger.Warn("authentication disabled, incident queries are open")
		d.AuthMiddleware = middleware.NewAuthMiddleware(nil, d.Logger, middleware.WithAuthDisabled())
		return
	}
	if !cfg.CognitoConfigured() {
		d.Logger.Warn("cognito not configured, protected routes will reject every request")
		d.AuthMiddleware = middleware.NewAuthMiddleware(middleware.RejectAllValidator{}, d.Logger)
		return
	}

	cognitoValidator := cognito.NewCognitoValidator(cognito.Config{
		Region:      cfg.Cognito.Region,
		UserPoolID:  cfg.Cognito.UserPoolID,
		ClientID:    cfg.Cognito.ClientID,
		CacheTTL:    time.Hour,
		HTTPTimeout: 10 * time.Second,
	})
	d.AuthMiddleware = middleware.NewAuthMiddleware(&cognitoTokenValidatorAdapter{validator: cognitoValidator}, d.Logger)
	d.Logger.Info("cognito token validation enabled",
		zap.String("issuer", cognito.Issuer(cfg.Cognito.Region, cfg.Cognito.UserPoolID)))
}

// RedisClient returns the shared Redis client, connecting on first use
func (d *Dependencies) RedisClient() (*goredis.Client, error) {
	if d.Redis != nil {
		return d.Redis, nil
	}
	client, err := redisrepo.NewClient(d.Config.Redis)
	if err != nil {
		return nil, err
	}
	d.Redis = client
	return client, nil
}

// NewIngestService builds the worker pool that feeds the incident writer.
// The caller starts and stops it.
func (d *Dependencies) NewIngestService() *ingest.Service {
	return ingest.NewService(d.Writer, d.Metrics, d.Logger, ingest.Config{
		BufferSize:   d.Config.Queue.BufferSize,
		WorkerCount:  d.Config.Queue.Workers,
		WriteTimeout: d.Config.Queue.WriteTimeout,
	})
}

// NewConsumer builds the Redis list consumer for the configured queue key
func (d *Dependencies) NewConsumer() (*queue.Consumer, error) {
	client, err := d.RedisClient()
	if err != nil {
		return nil, err
	}
	return queue.NewConsumer(client, queue.Config{
		Key:          d.Config.Queue.Key,
		BlockTimeout: d.Config.Queue.BlockTimeout,
	}, d.Metrics, d.Logger)
}

// cognitoTokenValidatorAdapter adapts cognito.CognitoValidator to middleware.TokenValidator
type cognitoTokenValidatorAdapter struct {
	validator *cognito.CognitoValidator
}

func (a *cognitoTokenValidatorAdapter) ValidateToken(ctx context.Context, token string) (*middleware.Claims, error) {
	parsed, err := a.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return toMiddlewareClaims(parsed), nil
}

func toMiddlewareClaims(parsed *cognito.ParsedClaims) *middleware.Claims {
	claims := &middleware.Claims{
		Sub:           parsed.Sub.String(),
		Email:         parsed.Email,
		EmailVerified: parsed.EmailVerified,
		Username:      parsed.Username,
		Groups:        parsed.Groups,
	}
	if !parsed.IssuedAt.IsZero() {
		claims.Iat = parsed.IssuedAt.Unix()
	}
	if !parsed.ExpiresAt.IsZero() {
		claims.Exp = parsed.ExpiresAt.Unix()
	}
	return claims
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
		d.DB = nil
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		} else {
			d.Logger.Info("redis connection closed")
		}
		d.Redis = nil
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
