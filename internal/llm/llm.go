// Package llm routes agent requests to the configured LLM provider and
// model. Providers are capability-equivalent: text plus an optional
// image in, text out.
package llm

import (
	"context"
	"errors"
)

// Client is the minimal provider interface. Implementations must be
// safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, model, prompt string, image []byte) (string, error)
}

// ErrProviderError reports a transport-level provider failure (network,
// auth, rate limit).
var ErrProviderError = errors.New("llm provider error")

// ErrProviderTimeout reports that the provider exceeded the configured
// wait.
var ErrProviderTimeout = errors.New("llm provider timeout")
