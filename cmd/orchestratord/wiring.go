package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lutendolukhele/intentorch/internal/catalog"
	"github.com/lutendolukhele/intentorch/internal/config"
	"github.com/lutendolukhele/intentorch/internal/coordinator"
	"github.com/lutendolukhele/intentorch/internal/entitycache"
	"github.com/lutendolukhele/intentorch/internal/executor"
	"github.com/lutendolukhele/intentorch/internal/llm"
	"github.com/lutendolukhele/intentorch/internal/orchestrator"
	"github.com/lutendolukhele/intentorch/internal/planner"
	"github.com/lutendolukhele/intentorch/internal/providergw"
	"github.com/lutendolukhele/intentorch/internal/sessionstore"
	"github.com/lutendolukhele/intentorch/internal/stream"
	"github.com/lutendolukhele/intentorch/internal/toolfilter"
)

// providerKeys used by the dev single-tenant connection resolver and
// registered on the gateway; a real deployment would read these from a
// connection store instead of a fixed list.
var providerKeys = []string{"gmail", "caldav", "crm"}

// app holds every long-lived component the HTTP layer needs.
type app struct {
	logger      *slog.Logger
	cfg         *config.Config
	cat         *catalog.Catalog
	filter      *toolfilter.Filter
	store       sessionstore.Store
	mux         *stream.Multiplexer
	coordinator *coordinator.Coordinator
}

// bootstrap constructs the full dependency graph from cfg, following the
// teacher's cmd/nexus pattern of one explicit wiring function instead of a
// DI container.
func bootstrap(cfg *config.Config, logger *slog.Logger) (*app, error) {
	cat, err := catalog.LoadFromYAML(cfg.Catalog.ToolDefinitionsPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: loading catalog: %w", err)
	}

	conns := &staticConnections{
		mail: providergw.MailConnectionConfig{
			IMAPAddr: cfg.Providers.Mail.IMAPAddr,
			SMTPAddr: cfg.Providers.Mail.SMTPAddr,
			Username: cfg.Providers.Mail.Username,
			Password: cfg.Providers.Mail.Password,
			From:     cfg.Providers.Mail.From,
		},
		calendar: providergw.CalConnectionConfig{
			BaseURL:      cfg.Providers.Calendar.BaseURL,
			Username:     cfg.Providers.Calendar.Username,
			Password:     cfg.Providers.Calendar.Password,
			CalendarPath: cfg.Providers.Calendar.CalendarPath,
		},
		keys: providerKeys,
	}

	gw := providergw.New(logger)
	gw.Register("gmail", providergw.NewMailAdapter(conns))
	gw.Register("caldav", providergw.NewCalendarAdapter(conns))
	gw.Register("crm", providergw.NewCRMAdapter(providergw.NewMemoryCRMStore()))

	cache, err := buildEntityCache(cfg.EntityCache)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: building entity cache: %w", err)
	}

	orch := orchestrator.New(cat, gw, cache, conns)

	store, err := buildSessionStore(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: building session store: %w", err)
	}

	provider, err := buildLLMProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: building llm provider: %w", err)
	}

	filter := toolfilter.New(cat, conns, cfg.Catalog.ProviderAliasGroups)
	mux := stream.New()
	pl := planner.New(provider, mux)
	exec := executor.New(orch, mux, executor.NewMetrics())
	coord := coordinator.New(store, filter, cat, provider, pl, exec, mux)

	return &app{logger: logger, cfg: cfg, cat: cat, filter: filter, store: store, mux: mux, coordinator: coord}, nil
}

func buildEntityCache(cfg config.EntityCacheConfig) (*entitycache.Cache, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return entitycache.New(entitycache.NewRedisStore(client)), nil
	case "memory", "":
		return entitycache.New(entitycache.NewMemoryStore()), nil
	default:
		return nil, fmt.Errorf("unknown entity_cache backend %q", cfg.Backend)
	}
}

func buildSessionStore(cfg config.SessionConfig) (sessionstore.Store, error) {
	switch cfg.Backend {
	case "postgres":
		return sessionstore.NewPostgresStore(sessionstore.PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			ConnectTimeout:  orDefault(cfg.Postgres.ConnectTimeout, 5*time.Second),
		})
	case "memory", "":
		return sessionstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

func buildLLMProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:       cfg.OpenAI.APIKey,
			BaseURL:      cfg.OpenAI.BaseURL,
			DefaultModel: cfg.OpenAI.DefaultModel,
		})
	case "anthropic", "":
		return llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey:       cfg.Anthropic.APIKey,
			BaseURL:      cfg.Anthropic.BaseURL,
			DefaultModel: cfg.Anthropic.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d == 0 {
		return fallback
	}
	return d
}
