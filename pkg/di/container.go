package di

import (
	"context"

	"matscigpt/backend/internal/providers"
	"matscigpt/backend/internal/service"
	"matscigpt/backend/pkg/cache"
	"matscigpt/backend/pkg/config"
	"matscigpt/backend/pkg/logger"
	"matscigpt/backend/pkg/secrets"
	"matscigpt/backend/shared/observability"
	"matscigpt/backend/shared/redis"
)

// Container holds all the dependencies for the application
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	OpenAI       providers.Provider
	Gemini       providers.Provider
	DeckCache    service.DeckCache
	Redis        *redis.Client
	Metrics      *observability.Metrics
	ChatService  *service.ChatService
	SlideService *service.SlideService
}

// New creates a new dependency injection container
func New(cfg *config.Config, log *logger.Logger) (*Container, error) {
	if cfg == nil {
		cfg = config.Get()
	}
	if log == nil {
		log = logger.GetGlobal()
	}

	// Provider API keys resolve through the secrets manager so a Vault
	// deployment works without code changes; env vars are the fallback.
	if err := secrets.Init(log); err != nil {
		log.LogError(err, "Failed to initialize secrets manager, using env config only")
	}
	ctx := context.Background()
	openAIKey := secrets.GetSecretWithDefault(ctx, "OPENAI_API_KEY", cfg.Providers.OpenAIKey)
	geminiKey := secrets.GetSecretWithDefault(ctx, "GEMINI_API_KEY", cfg.Providers.GeminiKey)

	openAI := providers.NewOpenAI(openAIKey, cfg.Providers.OpenAIModel, cfg.Providers.Timeout)
	gemini := providers.NewGemini(geminiKey, cfg.Providers.GeminiModel, cfg.Providers.Timeout)

	container := &Container{
		Config: cfg,
		Logger: log,
		OpenAI: openAI,
		Gemini: gemini,
	}

	// Deck cache: redis when configured, in-process otherwise
	if cfg.Cache.Enabled {
		if cfg.Cache.RedisURL != "" {
			container.Redis = redis.NewClient(cfg.Cache.RedisURL)
			container.DeckCache = service.NewRedisDeckCache(container.Redis, cfg.Cache.TTL)
		} else {
			container.DeckCache = service.NewMemoryDeckCache(cache.NewCache())
		}
	}

	container.Metrics = observability.NewMetrics()
	container.ChatService = service.NewChatService(openAI, gemini, log)
	container.SlideService = service.NewSlideService(gemini, openAI, container.DeckCache, log)

	return container, nil
}
