package agent

import (
	"context"

	"go.uber.org/zap"

	"dietolog/internal/schema"
	"dietolog/internal/store"
	"dietolog/internal/validate"
)

var nutritionKeys = []string{"kcal", "protein_g", "fat_g", "carbs_g", "sugar_g", "fiber_g", "weight_g"}

// coerceMealNumbers fixes up loosely typed numeric fields ("150 kcal")
// in a meal response before schema validation. It never fills missing
// keys.
func coerceMealNumbers(obj map[string]any) {
	if items, ok := obj["items"].([]any); ok {
		for _, elem := range items {
			if item, ok := elem.(map[string]any); ok {
				validate.CoerceNumbers(item, nutritionKeys...)
			}
		}
	}
	if total, ok := obj["total"].(map[string]any); ok {
		validate.CoerceNumbers(total, nutritionKeys...)
	}
}

// EditMeal refines an existing meal according to a user comment. The
// updated items and total replace the old ones; if the meal was already
// confirmed the day summary is shifted by the difference.
func (s *Service) EditMeal(ctx context.Context, userID, mealID, comment, language string) (*schema.Meal, error) {
	if language == "" {
		language = DefaultLanguage
	}

	var today schema.Today
	if err := s.store.Read(userID, store.DocToday, &today); err != nil {
		return nil, ErrNotFound
	}
	existing := today.Meal(mealID)
	if existing == nil {
		return nil, ErrNotFound
	}

	vars := map[string]any{
		"meal":      mustJSON(existing),
		"user_desc": existing.UserDesc,
		"comment":   comment,
		"language":  language,
	}
	obj, err := s.invokeJSON(ctx, "meal_editor", "update_meal_json", vars, nil, validate.MealSchema, coerceMealNumbers)
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

	if len(parsed.Items) != len(existing.Items) {
		s.logger.Info("meal item count changed",
			zap.String("user", userID),
			zap.String("meal", mealID),
			zap.Int("before", len(existing.Items)),
			zap.Int("after", len(parsed.Items)))
	}

	var updated *schema.Meal
	err = s.store.Update(userID, store.DocToday, &today, func() error {
		meal := today.Meal(mealID)
		if meal == nil {
			return ErrNotFound
		}
		oldTotal := meal.Total
		meal.Items = parsed.Items
		meal.Total = parsed.Total
		meal.Clarification = parsed.Clarification
		if meal.Comment != "" {
			meal.Comment += " "
		}
		meal.Comment += comment
		if !meal.Pending {
			today.Summary = today.Summary.Sub(oldTotal).Add(meal.Total)
		}
		updated = meal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetPercent rescales a meal to the share actually eaten. The items,
// the total and (for confirmed meals) the day summary all shift by the
// same factor.
func (s *Service) SetPercent(ctx context.Context, userID, mealID string, percent int) (*schema.Meal, error) {
	if percent < 1 || percent > 100 {
		return nil, ErrInvalidInput
	}
	var today schema.Today
	var updated *schema.Meal
	err := s.store.Update(userID, store.DocToday, &today, func() error {
		meal := today.Meal(mealID)
		if meal == nil {
			return ErrNotFound
		}
		factor := float64(percent) / float64(meal.PercentEaten)
		oldTotal := meal.Total
		for i := range meal.Items {
			meal.Items[i] = meal.Items[i].Scale(factor)
		}
		meal.Total = meal.Total.Scale(factor)
		meal.PercentEaten = percent
		if !meal.Pending {
			today.Summary = today.Summary.Sub(oldTotal).Add(meal.Total)
		}
		updated = meal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteMeal removes a meal from today's log, subtracting a confirmed
// meal's total from the summary.
func (s *Service) DeleteMeal(ctx context.Context, userID, mealID string) error {
	var today schema.Today
	return s.store.Update(userID, store.DocToday, &today, func() error {
		if !today.RemoveMeal(mealID) {
			return ErrNotFound
		}
		return nil
	})
}
