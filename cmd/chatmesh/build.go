package main

import (
	"context"
	"io"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/chatmesh"
	"github.com/hupe1980/chatmesh/config"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/engine"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/model/anthropic"
	"github.com/hupe1980/chatmesh/model/openai"
	"github.com/hupe1980/chatmesh/session"
	"github.com/hupe1980/chatmesh/session/redis"
	"github.com/hupe1980/chatmesh/session/sqlite"
)

func buildLogger(c config.LogConfig) (logging.Logger, func() error, error) {
	level := logging.ParseLevel(c.Level)
	if c.Format == "zap" {
		z, err := logging.NewZapLogger(level)
		if err != nil {
			return nil, nil, err
		}
		return z, z.Sync, nil
	}
	return logging.NewSlogLogger(level, c.Format, false), nil, nil
}

// buildStore opens the configured session store. A backend that cannot be
// reached leaves the service running without persistence.
func buildStore(ctx context.Context, c config.SessionConfig, logger logging.Logger) (core.SessionStore, io.Closer) {
	switch c.Backend {
	case config.BackendNone:
		logger.Info("Session persistence disabled")
		return nil, nil
	case config.BackendRedis:
		store, err := redis.NewFromURL(ctx, c.RedisURL, func(o *redis.Options) { o.TTL = c.TTL() })
		if err != nil {
			logger.Warn("Redis unavailable, continuing without session persistence", "error", err)
			return nil, nil
		}
		logger.Info("Connected to Redis session store")
		return store, store
	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, c.SQLitePath, func(o *sqlite.Options) { o.TTL = c.TTL() })
		if err != nil {
			logger.Warn("SQLite unavailable, continuing without session persistence", "path", c.SQLitePath, "error", err)
			return nil, nil
		}
		logger.Info("Opened SQLite session store", "path", c.SQLitePath)
		return store, store
	default:
		return session.NewInMemoryStore(func(o *session.InMemoryOptions) { o.TTL = c.TTL() }), nil
	}
}

func buildModel(c config.ModelConfig, provider, name string) (model.Model, error) {
	switch provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if name != "" {
				o.Model = name
			}
			o.Temperature = c.Temperature
			o.APIKey = c.APIKey
			o.BaseURL = c.BaseURL
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if name != "" {
				o.Model = anthropicsdk.Model(name)
			}
			o.Temperature = c.Temperature
			o.APIKey = c.APIKey
		}), nil
	default:
		return model.NewMockModel(name, "mock"), nil
	}
}

// buildRegistry registers the configured provider as the default and keeps
// the mock provider available for smoke tests.
func buildRegistry(c config.ModelConfig) (*model.Registry, error) {
	def, err := buildModel(c, c.Provider, c.Name)
	if err != nil {
		return nil, err
	}
	reg := model.NewRegistry(def)

	names := c.Models
	if len(names) == 0 {
		names = []string{c.Name}
	}
	reg.Register(c.Provider, func(name string) (model.Model, error) {
		if name == "" {
			name = c.Name
		}
		return buildModel(c, c.Provider, name)
	}, names...)

	if c.Provider != "mock" {
		reg.Register("mock", func(name string) (model.Model, error) {
			return model.NewMockModel(name, "mock"), nil
		}, "mock")
	}
	return reg, nil
}

func buildMesh(ctx context.Context) (*chatmesh.ChatMesh, io.Closer, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, closer := buildStore(connectCtx, cfg.Session, logger)
	reg, err := buildRegistry(cfg.Model)
	if err != nil {
		return nil, nil, err
	}

	mesh := chatmesh.New(func(o *chatmesh.Options) {
		o.EngineConfig = engine.Config{
			MaxConcurrentChats: cfg.Engine.MaxConcurrentChats,
			EventBufferSize:    cfg.Engine.EventBuffer,
		}
		o.SessionStore = store
		o.Models = reg
		o.Logger = logger
		o.Callbacks = buildCallbacks(cfg.Log, logger)
	})
	return mesh, closer, nil
}

// buildCallbacks traces pipeline phases when debug logging is on.
func buildCallbacks(c config.LogConfig, logger logging.Logger) []engine.Callback {
	if logging.ParseLevel(c.Level) != logging.LogLevelDebug {
		return nil
	}
	return engine.NewPhaseLoggers(logger)
}
