// Package agent implements the conversational agents: each one renders
// a prompt, invokes the gateway, validates the response with a single
// bounded repair, and merges the result into the per-user store.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"dietolog/internal/archive"
	"dietolog/internal/config"
	"dietolog/internal/llm"
	"dietolog/internal/prompt"
	"dietolog/internal/store"
	"dietolog/internal/validate"
)

// DefaultLanguage is used when the transport supplies none.
const DefaultLanguage = "en"

// Service wires the agents to their collaborators. All fields are set
// at construction and read-only afterwards.
type Service struct {
	cfg      *config.Config
	gateway  *llm.Gateway
	registry *prompt.Registry
	store    *store.Store
	archive  archive.DB
	logger   *zap.Logger
}

// New builds the agent service.
func New(cfg *config.Config, gateway *llm.Gateway, registry *prompt.Registry, st *store.Store, arc archive.DB, logger *zap.Logger) *Service {
	return &Service{
		cfg:      cfg,
		gateway:  gateway,
		registry: registry,
		store:    st,
		archive:  arc,
		logger:   logger,
	}
}

// invokeText renders a template and returns the provider's raw text.
func (s *Service) invokeText(ctx context.Context, agentName, templateName string, vars map[string]any, image []byte) (string, error) {
	rendered, err := s.registry.Render(templateName, vars)
	if err != nil {
		return "", err
	}
	return s.gateway.Invoke(ctx, agentName, rendered, image)
}

// invokeJSON renders a template, invokes the provider and validates the
// response against sch. On a violation it re-asks exactly once with the
// repair diagnostic appended, then fails with ErrValidation. coerce, if
// non-nil, runs on the parsed object before each validation pass.
func (s *Service) invokeJSON(ctx context.Context, agentName, templateName string, vars map[string]any, image []byte, sch *validate.Schema, coerce func(map[string]any)) (map[string]any, error) {
	rendered, err := s.registry.Render(templateName, vars)
	if err != nil {
		return nil, err
	}

	raw, err := s.gateway.Invoke(ctx, agentName, rendered, image)
	if err != nil {
		return nil, err
	}

	obj, repair := s.checkResponse(raw, sch, coerce)
	if repair == nil {
		return obj, nil
	}

	s.logger.Info("response failed validation, repairing",
		zap.String("agent", agentName),
		zap.String("diagnostic", repair.Description()))

	repairPrompt := rendered + "\n\nYour previous reply could not be used: " +
		repair.Description() + "\nReturn ONLY a corrected JSON object."
	raw, err = s.gateway.Invoke(ctx, agentName, repairPrompt, image)
	if err != nil {
		return nil, err
	}
	obj, repair = s.checkResponse(raw, sch, coerce)
	if repair != nil {
		return nil, fmt.Errorf("%w: %s", validate.ErrValidation, repair.Description())
	}
	return obj, nil
}

// checkResponse parses raw text and validates it, producing either the
// object or the repair diagnostic. Re-checking a valid response always
// yields the same object and no diagnostic.
func (s *Service) checkResponse(raw string, sch *validate.Schema, coerce func(map[string]any)) (map[string]any, *validate.RepairRequest) {
	obj, err := validate.ParseJSONBlock(raw)
	if err != nil {
		return nil, &validate.RepairRequest{
			Schema:   sch.Name,
			Problems: []string{"the reply was not a JSON object"},
		}
	}
	if coerce != nil {
		coerce(obj)
	}
	return obj, sch.Validate(obj)
}

// mustJSON renders v as compact JSON for prompt interpolation.
func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// decode re-marshals a validated object into a typed struct.
func decode(obj any, v any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
