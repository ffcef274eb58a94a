package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"supportbot/internal/config"
	"supportbot/internal/corpus"
	"supportbot/internal/domain"
	"supportbot/internal/faq"
	"supportbot/internal/llm"
	"supportbot/internal/logging"
	"supportbot/internal/service"
	"supportbot/internal/store/memory"
	"supportbot/internal/store/redisstore"
	"supportbot/internal/store/sqlite"
)

func loadConfig(path string) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if path == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.AppConfig) zerolog.Logger {
	return logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
}

func corpusSource(cfg config.CorpusConfig) (domain.CorpusSource, error) {
	switch cfg.Type {
	case "embedded", "":
		return corpus.NewEmbedded(), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("corpus path missing")
		}
		return corpus.NewFile(cfg.Path), nil
	case "huggingface":
		hf := cfg.HuggingFace
		if hf == nil {
			hf = &config.HuggingFaceConfig{}
		}
		return corpus.NewHuggingFace(corpus.HuggingFaceConfig{
			BaseURL:  hf.BaseURL,
			Dataset:  hf.Dataset,
			Config:   hf.Config,
			Split:    hf.Split,
			TokenEnv: hf.TokenEnv,
			PageSize: hf.PageSize,
			Timeout:  time.Duration(hf.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown corpus source: %s", cfg.Type)
	}
}

// buildIndex loads the corpus and builds the FAQ index. Both must succeed before
// the service can answer anything.
func buildIndex(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (*faq.Index, error) {
	src, err := corpusSource(cfg.Corpus)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	entries, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus from %s: %w", src.Name(), err)
	}
	idx, err := faq.Build(entries, faq.Options{Stopwords: cfg.FAQ.Stopwords})
	if err != nil {
		return nil, fmt.Errorf("build faq index: %w", err)
	}
	log.Info().
		Str("source", src.Name()).
		Int("entries", idx.Len()).
		Int("vocabulary", idx.VocabularySize()).
		Dur("took", time.Since(start)).
		Msg("faq index ready")
	return idx, nil
}

func openStore(cfg config.StoreConfig) (domain.ConversationStore, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "sqlite":
		path := ""
		if cfg.SQLite != nil {
			path = cfg.SQLite.Path
		}
		st, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store init failed: %w", err)
		}
		return st, nil
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis config missing")
		}
		st, err := redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      time.Duration(cfg.Redis.TTLSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("redis store init failed: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store: %s", cfg.Type)
	}
}

// newCompleter returns the configured provider, or a completer that always fails
// when the provider cannot be initialised, so FAQ answers keep working.
func newCompleter(ctx context.Context, cfg config.LLMConfig, log zerolog.Logger) domain.Completer {
	c, err := llm.New(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.Provider).Msg("completion provider unavailable; FAQ misses will get the fallback reply")
		return llm.Unavailable{Reason: err.Error()}
	}
	return c
}

// components is everything a chat turn needs.
type components struct {
	index *faq.Index
	store domain.ConversationStore
	chat  *service.ChatService
}

func buildComponents(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (*components, error) {
	idx, err := buildIndex(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	completer := newCompleter(ctx, cfg.LLM, log)
	pipeline := service.NewReplyPipeline(idx, completer, service.PipelineOptions{
		Threshold:    cfg.FAQ.Threshold,
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		Timeout:      cfg.LLM.Timeout(),
		SystemPrompt: cfg.LLM.SystemPrompt,
	}, log)
	detector := service.NewEscalationDetector(cfg.Escalation.Phrases)
	return &components{
		index: idx,
		store: st,
		chat:  service.NewChatService(st, pipeline, detector, log),
	}, nil
}
