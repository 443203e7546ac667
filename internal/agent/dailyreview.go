package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"dietolog/internal/schema"
	"dietolog/internal/store"
)

// ErrNoConfirmedMeals reports a day close with nothing to review.
var ErrNoConfirmedMeals = errors.New("no confirmed meals today")

// recentDaysContext is how many archived days feed the review prompt.
const recentDaysContext = 7

// DayReview is the end-of-day report returned to the transport.
type DayReview struct {
	Date    string
	Meals   []schema.MealBrief
	Summary schema.Total
	Comment string
	Stats   string
}

// DailyReview produces the review text for today's confirmed meals
// without closing the day.
func (s *Service) DailyReview(ctx context.Context, userID, language string) (*DayReview, error) {
	if language == "" {
		language = DefaultLanguage
	}
	var today schema.Today
	if err := s.store.Read(userID, store.DocToday, &today); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	confirmed := today.ConfirmedMeals()
	if len(confirmed) == 0 {
		return nil, ErrNoConfirmedMeals
	}

	briefs := make([]schema.MealBrief, 0, len(confirmed))
	for _, meal := range confirmed {
		name := meal.UserDesc
		if len(meal.Items) > 0 {
			names := make([]string, 0, len(meal.Items))
			for _, it := range meal.Items {
				names = append(names, it.Name)
			}
			name = strings.Join(names, ", ")
		}
		briefs = append(briefs, schema.BriefFromTotal(meal.Type, name, meal.Total))
	}

	profile, err := s.loadProfile(userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	normsJSON := "{}"
	var norms *schema.Norms
	if profile != nil && profile.Norms != nil {
		norms = profile.Norms
		normsJSON = mustJSON(norms)
	}

	review := &DayReview{
		Date:    time.Now().UTC().Format("2006-01-02"),
		Meals:   briefs,
		Summary: today.Summary,
		Stats:   FormatStats(norms, today.Summary),
	}

	recentJSON := "[]"
	if s.archive != nil {
		if recent, err := s.archive.RecentDays(ctx, userID, recentDaysContext); err != nil {
			s.logger.Warn("reading recent days failed", zap.String("user", userID), zap.Error(err))
		} else if len(recent) > 0 {
			recentJSON = mustJSON(recent)
		}
	}

	vars := map[string]any{
		"norms":       normsJSON,
		"summary":     mustJSON(today.Summary),
		"meals":       mustJSON(briefs),
		"recent_days": recentJSON,
		"language":    language,
	}
	comment, err := s.invokeText(ctx, "daily_review", "day_analysis", vars, nil)
	if err != nil {
		// The numbers still stand on their own; the day can close
		// without the comment.
		s.logger.Warn("day analysis failed", zap.String("user", userID), zap.Error(err))
	} else {
		review.Comment = strings.TrimSpace(comment)
	}
	return review, nil
}

// FinishDay runs the daily review, archives the day and resets today's
// log. Pending drafts are discarded with the closed day.
func (s *Service) FinishDay(ctx context.Context, userID, language string) (*DayReview, error) {
	review, err := s.DailyReview(ctx, userID, language)
	if err != nil {
		return nil, err
	}

	var today schema.Today
	if err := s.store.Read(userID, store.DocToday, &today); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	closed := schema.ClosedDay{
		Date:    review.Date,
		Summary: today.Summary,
		Meals:   today.ConfirmedMeals(),
	}
	entry := schema.HistoryMealEntry{
		Date:     review.Date,
		NumMeals: len(review.Meals),
		Meals:    review.Meals,
		Comment:  review.Comment,
	}

	var history schema.History
	if err := s.store.Update(userID, store.DocHistory, &history, func() error {
		history.AppendDay(closed)
		return nil
	}); err != nil {
		return nil, err
	}

	var historyMeal schema.HistoryMeal
	if err := s.store.Update(userID, store.DocHistoryMeal, &historyMeal, func() error {
		historyMeal.AppendDay(entry)
		return nil
	}); err != nil {
		return nil, err
	}

	var counters schema.Counters
	if err := s.store.Update(userID, store.DocCounters, &counters, func() error {
		counters.TotalDaysClosed++
		return nil
	}); err != nil {
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.SaveClosedDay(ctx, userID, entry, today.Summary); err != nil {
			s.logger.Warn("failed to archive closed day", zap.String("user", userID), zap.Error(err))
		}
	}

	if err := s.store.Update(userID, store.DocToday, &today, func() error {
		today.Meals = nil
		today.Summary = schema.Total{}
		today.DayClosed = true
		today.LastUpdated = nil
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("day closed",
		zap.String("user", userID),
		zap.String("date", review.Date),
		zap.Int("meals", entry.NumMeals),
		zap.Int("kcal", closed.Summary.Kcal))
	return review, nil
}

// RecentHistory returns up to limit recently closed days, preferring
// the archive database and falling back to the per-user history_meal
// document when no archive is configured.
func (s *Service) RecentHistory(ctx context.Context, userID string, limit int) ([]schema.HistoryMealEntry, error) {
	if limit <= 0 {
		limit = recentDaysContext
	}
	if s.archive != nil {
		records, err := s.archive.RecentDays(ctx, userID, limit)
		if err == nil {
			entries := make([]schema.HistoryMealEntry, 0, len(records))
			for _, rec := range records {
				entries = append(entries, schema.HistoryMealEntry{
					Date:     rec.Date,
					NumMeals: rec.NumMeals,
					Comment:  rec.Comment,
				})
			}
			return entries, nil
		}
		s.logger.Warn("archive lookup failed, using history document",
			zap.String("user", userID), zap.Error(err))
	}

	var history schema.HistoryMeal
	if err := s.store.Read(userID, store.DocHistoryMeal, &history); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	days := history.Days
	if len(days) > limit {
		days = days[len(days)-limit:]
	}
	// Newest first, matching the archive query.
	out := make([]schema.HistoryMealEntry, 0, len(days))
	for i := len(days) - 1; i >= 0; i-- {
		out = append(out, days[i])
	}
	return out, nil
}

// FormatStats renders the day's progress against the norms.
func FormatStats(norms *schema.Norms, summary schema.Total) string {
	line := func(label string, value, target int) string {
		if target > 0 {
			percent := int(float64(value)/float64(target)*100 + 0.5)
			return fmt.Sprintf("%s: %d / %d (%d%%)", label, value, target, percent)
		}
		return fmt.Sprintf("%s: %d", label, value)
	}
	var targetKcal, proteinG, fatG, carbsG int
	if norms != nil {
		targetKcal = norms.TargetKcal
		proteinG = norms.Macros["protein_g"]
		fatG = norms.Macros["fat_g"]
		carbsG = norms.Macros["carbs_g"]
	}
	return strings.Join([]string{
		"Day stats",
		line("Calories", summary.Kcal, targetKcal),
		line("Protein", summary.ProteinG, proteinG),
		line("Fat", summary.FatG, fatG),
		line("Carbs", summary.CarbsG, carbsG),
	}, "\n")
}
