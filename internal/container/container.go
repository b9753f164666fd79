package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	database "github.com/xco2/tripspot/app/db"
	"github.com/xco2/tripspot/config"
	"github.com/xco2/tripspot/internal/api/advisor"
	"github.com/xco2/tripspot/internal/api/amap"
	"github.com/xco2/tripspot/internal/api/duration"
	"github.com/xco2/tripspot/internal/api/extractor"
	generativeAI "github.com/xco2/tripspot/internal/api/generative_ai"
	"github.com/xco2/tripspot/internal/api/geocoder"
	"github.com/xco2/tripspot/internal/api/pipeline"
	"github.com/xco2/tripspot/internal/api/places"
	"github.com/xco2/tripspot/internal/api/route"
	"github.com/xco2/tripspot/internal/api/settings"
	"github.com/xco2/tripspot/internal/api/store"
	"github.com/xco2/tripspot/internal/types"
)

// Container holds all application dependencies
type Container struct {
	Config          *config.Config
	Logger          *slog.Logger
	Pool            *pgxpool.Pool
	Redis           *redis.Client
	Store           *store.ServiceImpl
	Pipeline        *pipeline.PipelineServiceImpl
	PlacesHandler   *places.PlacesHandler
	SettingsHandler *settings.SettingsHandler
	PipelineHandler *pipeline.PipelineHandler
}

// NewContainer opens the database pool and wires the services on top of it.
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	c := Build(cfg, store.NewPostgresRepository(pool, logger), logger)
	c.Pool = pool
	return c, nil
}

// Build wires every service on top of repo. It does not touch the network.
func Build(cfg *config.Config, repo store.Repository, logger *slog.Logger) *Container {
	c := &Container{Config: cfg, Logger: logger}

	st := store.NewService(repo, defaultSettings(cfg), logger)

	mapClient := amap.NewClient(cfg.Services.AMap.BaseURL, nil, cfg.Services.AMap.Timeout, logger)
	generators := generativeAI.NewClientFactory(nil, cfg.Services.LLM.Timeout)

	caches := duration.TieredCache{duration.NewMemoryCache(cfg.Services.Routing.CacheTTL)}
	if cfg.Repositories.Redis.Enabled {
		c.Redis = duration.OpenRedis(cfg.Repositories.Redis.Addr, cfg.Repositories.Redis.Password, cfg.Repositories.Redis.DB)
	}
	if c.Redis != nil {
		caches = append(caches, duration.NewRedisCache(c.Redis, cfg.Services.Routing.CacheTTL, logger))
	}
	durations := duration.NewService(mapClient, st, caches, cfg.Services.Routing.FallbackSpeedKmh, logger)

	extractorService := extractor.NewService(st, generators, cfg.Services.LLM.ExtractTemperature, logger)
	geocoderService := geocoder.NewService(mapClient, st, cfg.Services.AMap.GeocodeDelay, logger)
	advisorService := advisor.NewService(st, generators, cfg.Services.LLM.AdviceTemperature, cfg.Services.LLM.AdviceMaxTokens, logger)
	optimizer := route.NewOptimizer(durations, advisorService, cfg.Services.Routing.MaxConcurrency, logger)

	c.Store = st
	c.Pipeline = pipeline.NewPipelineService(st, extractorService, geocoderService, optimizer, logger)
	c.PlacesHandler = places.NewPlacesHandler(places.NewPlacesService(st, logger), logger)
	c.SettingsHandler = settings.NewSettingsHandler(settings.NewSettingsService(st, logger), logger)
	c.PipelineHandler = pipeline.NewPipelineHandler(c.Pipeline, st, logger)
	return c
}

func defaultSettings(cfg *config.Config) types.Settings {
	d := cfg.Defaults
	return types.Settings{
		AMapKey:          d.AMapKey,
		AMapSecurityCode: d.AMapSecurityCode,
		LLMAPIKey:        d.LLMAPIKey,
		LLMBaseURL:       d.LLMBaseURL,
		LLMModel:         d.LLMModel,
	}
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", slog.Any("error", err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	if c.Pool == nil {
		return true
	}
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// PingRedis checks the shared leg cache when it is enabled.
func (c *Container) PingRedis(ctx context.Context) error {
	if c.Redis == nil {
		return nil
	}
	if err := c.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", c.Config.Repositories.Redis.Addr, err)
	}
	return nil
}

// RunMigrations runs database migrations
func (c *Container) RunMigrations(connectionURL string) error {
	return database.RunMigrations(connectionURL, c.Logger)
}
