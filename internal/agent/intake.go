package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dietolog/internal/schema"
	"dietolog/internal/store"
	"dietolog/internal/validate"
)

// Intake recognizes a meal from the user's description (and optional
// photo) and appends it to today's log as a pending draft.
func (s *Service) Intake(ctx context.Context, userID, mealType, desc, language string, image []byte) (*schema.Meal, error) {
	if language == "" {
		language = DefaultLanguage
	}
	vars := map[string]any{
		"meal_type": mealType,
		"user_desc": desc,
		"language":  language,
	}
	obj, err := s.invokeJSON(ctx, "intake", "meal_json", vars, image, validate.MealSchema, nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Items         []schema.Item `json:"items"`
		Total         schema.Total  `json:"total"`
		Clarification string        `json:"clarification"`
	}
	if err := decode(obj, &parsed); err != nil {
		return nil, err
	}

	meal := schema.Meal{
		ID:            uuid.New().String(),
		Type:          mealType,
		Items:         parsed.Items,
		Total:         parsed.Total,
		Pending:       true,
		Timestamp:     time.Now().UTC(),
		PercentEaten:  100,
		UserDesc:      desc,
		Clarification: parsed.Clarification,
	}

	var today schema.Today
	err = s.store.Update(userID, store.DocToday, &today, func() error {
		// The first meal after a finished day reopens the log.
		today.DayClosed = false
		today.AppendMeal(meal)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("meal recognized",
		zap.String("user", userID),
		zap.String("meal", meal.ID),
		zap.String("type", mealType),
		zap.Int("items", len(meal.Items)),
		zap.Int("kcal", meal.Total.Kcal))
	return &meal, nil
}
