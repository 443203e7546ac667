package agent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dietolog/internal/logic"
	"dietolog/internal/schema"
	"dietolog/internal/store"
	"dietolog/internal/validate"
)

// loadProfile reads the user's profile document. A missing document is
// reported as store.ErrNotFound so callers can treat it as "no profile
// yet" without inventing one.
func (s *Service) loadProfile(userID string) (*schema.Profile, error) {
	var profile schema.Profile
	if err := s.store.Read(userID, store.DocProfile, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Norms returns the user's daily targets, computing and caching them in
// the profile when absent. Recompute forces a fresh computation.
func (s *Service) Norms(ctx context.Context, userID, language string, recompute bool) (*schema.Norms, error) {
	profile, err := s.loadProfile(userID)
	if err != nil {
		return nil, err
	}
	if profile.Norms != nil && !recompute {
		return profile.Norms, nil
	}

	norms, err := s.computeNorms(ctx, profile, language)
	if err != nil {
		return nil, err
	}

	var stored schema.Profile
	if err := s.store.Update(userID, store.DocProfile, &stored, func() error {
		stored.Norms = norms
		return nil
	}); err != nil {
		return nil, err
	}
	s.logger.Info("norms computed",
		zap.String("user", userID),
		zap.Int("target_kcal", norms.TargetKcal),
		zap.Bool("llm", s.cfg.UseLLMNorms))
	return norms, nil
}

// computeNorms picks the configured norms source. The LLM path falls
// back to the deterministic formulas when the provider cannot deliver a
// valid object.
func (s *Service) computeNorms(ctx context.Context, profile *schema.Profile, language string) (*schema.Norms, error) {
	if s.cfg.UseLLMNorms {
		norms, err := s.normsFromLLM(ctx, profile, language)
		if err == nil {
			return norms, nil
		}
		if errors.Is(err, logic.ErrIncompleteProfile) {
			return nil, err
		}
		s.logger.Warn("LLM norms failed, falling back to formulas", zap.Error(err))
	}
	return logic.ComputeNorms(profile, s.cfg.Thresholds.ProteinMinFactor)
}

// normsFromLLM asks the norms agent for targets and validates the shape.
func (s *Service) normsFromLLM(ctx context.Context, profile *schema.Profile, language string) (*schema.Norms, error) {
	if language == "" {
		language = DefaultLanguage
	}
	// The formulas gate on the same required fields; run them first so
	// an incomplete profile fails identically on both paths.
	if _, err := logic.ComputeNorms(profile, s.cfg.Thresholds.ProteinMinFactor); err != nil {
		return nil, err
	}
	obj, err := s.invokeJSON(ctx, "norms_ai", "ai_norms", map[string]any{
		"profile":  mustJSON(profile),
		"language": language,
	}, nil, validate.NormsSchema, normsCoerce)
	if err != nil {
		return nil, err
	}
	var norms schema.Norms
	if err := decode(obj, &norms); err != nil {
		return nil, fmt.Errorf("decoding norms: %w", err)
	}
	return &norms, nil
}

func normsCoerce(obj map[string]any) {
	validate.CoerceNumbers(obj, "BMR_kcal", "TDEE_kcal", "target_kcal", "fiber_min_g", "water_min_ml")
	if macros, ok := obj["macros"].(map[string]any); ok {
		validate.CoerceNumbers(macros, "protein_g", "fat_g", "carbs_g")
	}
}
