package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dietolog/internal/config"
)

type fakeClient struct {
	lastModel string
	reply     string
	err       error
}

func (f *fakeClient) Complete(_ context.Context, model, _ string, _ []byte) (string, error) {
	f.lastModel = model
	return f.reply, f.err
}

func TestGatewayRoutesByAgent(t *testing.T) {
	cfg := &config.Config{
		LLMProvider: config.ProviderOpenAI,
		Agents: map[string]config.AgentConfig{
			"contextual": {Model: "gpt-4o-mini"},
			"intake":     {Provider: config.ProviderGemini, Model: "gemini-1.5-pro"},
		},
	}
	openai := &fakeClient{reply: "from openai"}
	gemini := &fakeClient{reply: "from gemini"}
	gw := NewGatewayWithClients(cfg, map[config.Provider]Client{
		config.ProviderOpenAI: openai,
		config.ProviderGemini: gemini,
	}, zap.NewNop())

	text, err := gw.Invoke(context.Background(), "contextual", "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "from openai", text)
	assert.Equal(t, "gpt-4o-mini", openai.lastModel)

	text, err = gw.Invoke(context.Background(), "intake", "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "from gemini", text)
	assert.Equal(t, "gemini-1.5-pro", gemini.lastModel)

	// Unconfigured agents fall back to the default provider and model.
	_, err = gw.Invoke(context.Background(), "never_seen", "p", nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultOpenAIModel, openai.lastModel)
}

func TestGatewayUnconfiguredProvider(t *testing.T) {
	cfg := &config.Config{
		LLMProvider: config.ProviderGemini,
	}
	gw := NewGatewayWithClients(cfg, map[config.Provider]Client{
		config.ProviderOpenAI: &fakeClient{},
	}, zap.NewNop())

	_, err := gw.Invoke(context.Background(), "intake", "p", nil)
	require.ErrorIs(t, err, ErrProviderError)
	assert.Contains(t, err.Error(), "not configured")
}

func TestGatewayMapsTimeout(t *testing.T) {
	cfg := &config.Config{LLMProvider: config.ProviderOpenAI}
	gw := NewGatewayWithClients(cfg, map[config.Provider]Client{
		config.ProviderOpenAI: &fakeClient{err: context.DeadlineExceeded},
	}, zap.NewNop())

	_, err := gw.Invoke(context.Background(), "intake", "p", nil)
	assert.ErrorIs(t, err, ErrProviderTimeout)
}

func TestGatewayTimeoutFromConfig(t *testing.T) {
	gw := NewGatewayWithClients(&config.Config{ProviderTimeoutSec: 15}, nil, zap.NewNop())
	assert.Equal(t, 15*time.Second, gw.timeout)

	gw = NewGatewayWithClients(&config.Config{}, nil, zap.NewNop())
	assert.Equal(t, DefaultTimeout, gw.timeout)
}
