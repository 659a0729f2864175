package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"mathcanvas/api/internal/config"
	"mathcanvas/api/internal/llm/gemini"
	"mathcanvas/api/internal/llm/openai"
)

// FromConfig builds every engine that has credentials. The returned close
// func releases client resources and is never nil.
func FromConfig(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Engines, func(), error) {
	engs := &Engines{Default: cfg.DefaultLLM}
	closeFn := func() {}

	if cfg.GeminiAPIKey != "" {
		g, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.UpstreamTimeout)
		if err != nil {
			return nil, closeFn, err
		}
		engs.Gemini = g
		closeFn = func() {
			if err := g.Close(); err != nil {
				log.Warn("gemini close", zap.Error(err))
			}
		}
	}
	if cfg.OpenAIAPIKey != "" {
		engs.OpenAI = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.UpstreamTimeout)
	}

	if _, err := engs.GetEngine(""); err != nil {
		closeFn()
		return nil, func() {}, errors.Join(errors.New("default_llm is not usable"), err)
	}
	log.Info("engines ready", zap.Strings("engines", engs.Names()), zap.String("default", engs.Default))
	return engs, closeFn, nil
}
