package agent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dietolog/internal/schema"
	"dietolog/internal/store"
	"dietolog/internal/validate"
)

// ConfirmResult is what the transport shows after a meal confirmation.
type ConfirmResult struct {
	Meal    schema.Meal
	Summary schema.Total
	Comment string
}

// Confirm marks a pending meal as eaten, folds its total into today's
// summary, and then asks the contextual agent for a comment on how the
// meal fits the day. The confirmation is persisted before the LLM call
// so a slow provider can never lose the meal.
func (s *Service) Confirm(ctx context.Context, userID, mealID, language string) (*ConfirmResult, error) {
	if language == "" {
		language = DefaultLanguage
	}

	var today schema.Today
	var confirmed *schema.Meal
	var previousSummary schema.Total
	err := s.store.Update(userID, store.DocToday, &today, func() error {
		previousSummary = today.Summary
		if !today.ConfirmMeal(mealID) {
			if today.Meal(mealID) == nil {
				return ErrNotFound
			}
			return ErrAlreadyConfirmed
		}
		confirmed = today.Meal(mealID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &ConfirmResult{Meal: *confirmed, Summary: today.Summary}

	comment, updated, err := s.analyzeContext(ctx, userID, previousSummary, confirmed.Total, language)
	if err != nil {
		// The meal is already confirmed and saved; a failed analysis
		// only costs the comment.
		s.logger.Warn("context analysis failed",
			zap.String("user", userID),
			zap.String("meal", mealID),
			zap.Error(err))
		result.Comment = s.thresholdWarnings(today.Summary)
		return result, nil
	}

	err = s.store.Update(userID, store.DocToday, &today, func() error {
		if meal := today.Meal(mealID); meal != nil && comment != "" {
			if meal.Comment != "" {
				meal.Comment += " "
			}
			meal.Comment += comment
		}
		// Merge rather than replace: a partial summary from the model
		// must never erase previously confirmed totals.
		if updated != nil {
			today.Summary = *updated
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Summary = today.Summary
	result.Comment = joinComments(comment, s.thresholdWarnings(today.Summary))
	if meal := today.Meal(mealID); meal != nil {
		result.Meal = *meal
	}
	return result, nil
}

// analyzeContext runs the contextual agent over the pre-meal summary
// and the newly confirmed meal. It returns the comment and, when the
// model supplied a complete summary, the updated day total.
func (s *Service) analyzeContext(ctx context.Context, userID string, daySummary, newMeal schema.Total, language string) (string, *schema.Total, error) {
	profile, err := s.loadProfile(userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", nil, err
	}
	normsJSON := "{}"
	if profile != nil && profile.Norms != nil {
		normsJSON = mustJSON(profile.Norms)
	}

	vars := map[string]any{
		"norms":       normsJSON,
		"day_summary": mustJSON(daySummary),
		"new_meal":    mustJSON(newMeal),
		"language":    language,
	}
	obj, err := s.invokeJSON(ctx, "contextual", "context_analysis", vars, nil, validate.ContextSchema, nil)
	if err != nil {
		return "", nil, err
	}

	var parsed struct {
		Summary        *schema.Total `json:"summary"`
		ContextComment string        `json:"context_comment"`
	}
	if err := decode(obj, &parsed); err != nil {
		return "", nil, err
	}
	return parsed.ContextComment, parsed.Summary, nil
}

// thresholdWarnings renders configured warning limits that the current
// summary exceeds.
func (s *Service) thresholdWarnings(summary schema.Total) string {
	var warnings string
	if summary.CarbsG > s.cfg.Thresholds.CarbsWarningG {
		warnings = fmt.Sprintf("Carbohydrates are over the %d g daily limit.", s.cfg.Thresholds.CarbsWarningG)
	}
	if summary.SugarG > s.cfg.Thresholds.SugarWarningG {
		warnings = joinComments(warnings, fmt.Sprintf("Sugar is over the %d g daily limit.", s.cfg.Thresholds.SugarWarningG))
	}
	return warnings
}

func joinComments(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
