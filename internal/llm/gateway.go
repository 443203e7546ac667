package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dietolog/internal/config"
)

// DefaultTimeout bounds one provider call when the configuration does
// not set provider_timeout_sec.
const DefaultTimeout = 90 * time.Second

func timeoutFromConfig(cfg *config.Config) time.Duration {
	if cfg.ProviderTimeoutSec > 0 {
		return time.Duration(cfg.ProviderTimeoutSec) * time.Second
	}
	return DefaultTimeout
}

// Gateway resolves agent names to provider clients and dispatches
// requests. The client table is built once at startup; the gateway
// never retries — repair policy belongs to the calling agent.
type Gateway struct {
	cfg     *config.Config
	clients map[config.Provider]Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewGateway builds the gateway from configuration. Both adapters are
// constructed eagerly so credential problems show up at startup.
func NewGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Gateway, error) {
	timeout := timeoutFromConfig(cfg)
	clients := map[config.Provider]Client{
		config.ProviderOpenAI: NewOpenAIClient(cfg.OpenAIAPIKey, timeout),
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		clients[config.ProviderGemini] = gemini
	}
	return &Gateway{
		cfg:     cfg,
		clients: clients,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// NewGatewayWithClients builds a gateway over explicit clients, used by
// tests to stub the providers.
func NewGatewayWithClients(cfg *config.Config, clients map[config.Provider]Client, logger *zap.Logger) *Gateway {
	return &Gateway{cfg: cfg, clients: clients, timeout: timeoutFromConfig(cfg), logger: logger}
}

// Invoke resolves agentName to its provider and model, sends the
// rendered prompt (plus optional image) and returns the raw text.
// Transport failures map to ErrProviderError, exceeded waits to
// ErrProviderTimeout.
func (g *Gateway) Invoke(ctx context.Context, agentName, prompt string, image []byte) (string, error) {
	provider, model := g.cfg.AgentLLM(agentName)
	client, ok := g.clients[provider]
	if !ok {
		return "", fmt.Errorf("%w: provider %q not configured", ErrProviderError, provider)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	g.logger.Debug("invoking LLM",
		zap.String("agent", agentName),
		zap.String("provider", string(provider)),
		zap.String("model", model),
		zap.Int("prompt_len", len(prompt)),
		zap.Bool("has_image", len(image) > 0))

	text, err := client.Complete(ctx, model, prompt, image)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.logger.Warn("LLM call timed out",
				zap.String("agent", agentName),
				zap.Duration("elapsed", time.Since(start)))
			return "", fmt.Errorf("%w: agent %s", ErrProviderTimeout, agentName)
		}
		g.logger.Warn("LLM call failed",
			zap.String("agent", agentName),
			zap.Error(err))
		if errors.Is(err, ErrProviderError) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrProviderError, err)
	}

	g.logger.Debug("LLM call completed",
		zap.String("agent", agentName),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_len", len(text)))
	return text, nil
}
