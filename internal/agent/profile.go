package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dietolog/internal/logic"
	"dietolog/internal/schema"
	"dietolog/internal/store"
	"dietolog/internal/validate"
)

// Profile returns the stored profile, or ErrNotFound when the user has
// never set one up.
func (s *Service) Profile(userID string) (*schema.Profile, error) {
	return s.loadProfile(userID)
}

// EditProfile applies a free-form change request to the profile via the
// profile editor agent, persists the result and recomputes the norms.
func (s *Service) EditProfile(ctx context.Context, userID, request, language string) (*schema.Profile, error) {
	if language == "" {
		language = DefaultLanguage
	}
	current, err := s.loadProfile(userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		current = &schema.Profile{}
	}
	// Norms are derived state; the editor must not be able to set them.
	withoutNorms := *current
	withoutNorms.Norms = nil

	obj, err := s.invokeJSON(ctx, "profile_editor", "profile_to_json", map[string]any{
		"profile":  mustJSON(&withoutNorms),
		"request":  request,
		"language": language,
	}, nil, validate.ProfileSchema, profileCoerce)
	if err != nil {
		return nil, err
	}

	var updated schema.Profile
	if err := decode(obj, &updated); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	updated.Norms = nil

	var stored schema.Profile
	if err := s.store.Update(userID, store.DocProfile, &stored, func() error {
		stored = updated
		return nil
	}); err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", zap.String("user", userID))

	if norms, err := s.Norms(ctx, userID, language, true); err == nil {
		updated.Norms = norms
	} else if !errors.Is(err, logic.ErrIncompleteProfile) {
		s.logger.Warn("norms recompute after profile edit failed",
			zap.String("user", userID), zap.Error(err))
	}
	return &updated, nil
}

func profileCoerce(obj map[string]any) {
	if personal, ok := obj["personal"].(map[string]any); ok {
		validate.CoerceNumbers(personal, "age", "height_cm", "weight_kg", "waist_cm", "bust_cm", "hips_cm")
	}
	if goals, ok := obj["goals"].(map[string]any); ok {
		validate.CoerceNumbers(goals, "timeframe_days")
	}
}

// BasicFields is the onboarding extraction result. Nil means the field
// was not mentioned.
type BasicFields struct {
	Gender   *string  `json:"gender"`
	Age      *int     `json:"age"`
	HeightCm *float64 `json:"height_cm"`
	WeightKg *float64 `json:"weight_kg"`
}

var basicSchema = &validate.Schema{
	Name: "basic fields",
	Fields: []validate.Field{
		{Name: "gender", Kind: validate.KindEnum, Enum: []string{"male", "female"}},
		{Name: "age", Kind: validate.KindNumber, NonNegative: true},
		{Name: "height_cm", Kind: validate.KindNumber, NonNegative: true},
		{Name: "weight_kg", Kind: validate.KindNumber, NonNegative: true},
	},
}

// ExtractBasic pulls gender, age, height and weight out of a free-form
// onboarding message.
func (s *Service) ExtractBasic(ctx context.Context, text, language string) (*BasicFields, error) {
	if language == "" {
		language = DefaultLanguage
	}
	obj, err := s.invokeJSON(ctx, "extractor", "extract_basic", map[string]any{
		"text":     text,
		"language": language,
	}, nil, basicSchema, func(o map[string]any) {
		validate.CoerceNumbers(o, "age", "height_cm", "weight_kg")
	})
	if err != nil {
		return nil, err
	}
	var out BasicFields
	if err := decode(obj, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OptionalFields are the free-text profile lists.
type OptionalFields struct {
	Restrictions []string `json:"restrictions"`
	Preferences  []string `json:"preferences"`
	Medical      []string `json:"medical"`
}

var optionalSchema = &validate.Schema{
	Name: "optional fields",
	Fields: []validate.Field{
		{Name: "restrictions", Kind: validate.KindList},
		{Name: "preferences", Kind: validate.KindList},
		{Name: "medical", Kind: validate.KindList},
	},
}

// ExtractOptional pulls restrictions, preferences and medical notes out
// of a free-form message.
func (s *Service) ExtractOptional(ctx context.Context, text, language string) (*OptionalFields, error) {
	if language == "" {
		language = DefaultLanguage
	}
	obj, err := s.invokeJSON(ctx, "extractor", "extract_optional", map[string]any{
		"text":     text,
		"language": language,
	}, nil, optionalSchema, nil)
	if err != nil {
		return nil, err
	}
	var out OptionalFields
	if err := decode(obj, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractNumericField extracts a single named numeric field (e.g.
// "weight_kg") from free text. It returns nil when the text does not
// mention it.
func (s *Service) ExtractNumericField(ctx context.Context, field, text, language string) (*float64, error) {
	if language == "" {
		language = DefaultLanguage
	}
	sch := &validate.Schema{
		Name:   field,
		Fields: []validate.Field{{Name: field, Kind: validate.KindNumber}},
	}
	obj, err := s.invokeJSON(ctx, "extractor", "extract_field_numeric", map[string]any{
		"field":    field,
		"text":     text,
		"language": language,
	}, nil, sch, func(o map[string]any) {
		validate.CoerceNumbers(o, field)
	})
	if err != nil {
		return nil, err
	}
	switch v := obj[field].(type) {
	case float64:
		return &v, nil
	case int:
		f := float64(v)
		return &f, nil
	default:
		return nil, nil
	}
}

var activitySchema = &validate.Schema{
	Name: "activity level",
	Fields: []validate.Field{
		{Name: "activity_level", Kind: validate.KindEnum, Enum: schema.ActivityLevels},
	},
}

// ExtractActivityLevel maps free text onto the closed activity set.
// Empty string means the text did not indicate a level.
func (s *Service) ExtractActivityLevel(ctx context.Context, text, language string) (string, error) {
	if language == "" {
		language = DefaultLanguage
	}
	obj, err := s.invokeJSON(ctx, "extractor", "extract_field_activity", map[string]any{
		"text":     text,
		"language": language,
	}, nil, activitySchema, nil)
	if err != nil {
		return "", err
	}
	level, _ := obj["activity_level"].(string)
	return level, nil
}

// Explain rephrases a terse system notice as a friendly chat message in
// the user's language. On provider failure the raw notice is returned
// so the user is never left without an answer.
func (s *Service) Explain(ctx context.Context, notice, language string) string {
	if language == "" {
		language = DefaultLanguage
	}
	text, err := s.invokeText(ctx, "explainer", "ai_explain", map[string]any{
		"prompt":   notice,
		"language": language,
	}, nil)
	if err != nil {
		s.logger.Warn("explain failed", zap.Error(err))
		return notice
	}
	return strings.TrimSpace(text)
}
