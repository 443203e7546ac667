// Package logic holds the deterministic nutrition formulas. Everything
// here is a pure function of its inputs: the same profile always yields
// bit-for-bit identical norms.
package logic

import (
	"errors"
	"fmt"
	"math"

	"dietolog/internal/schema"
)

// ErrIncompleteProfile reports a profile missing a field the formulas
// need. The wrapped message names the field so the user can be asked
// for it.
var ErrIncompleteProfile = errors.New("incomplete profile")

// Energy density of body fat, kcal per kg. Used to spread the desired
// weight change over the timeframe.
const kcalPerKg = 7700

// Daily adjustment bounds, kcal. A plan steeper than this is unsafe,
// so the target is clamped rather than rejected.
const (
	maxDailyDeficit = 1000
	maxDailySurplus = 500
)

var activityFactors = map[string]float64{
	schema.ActivitySedentary: 1.2,
	schema.ActivityModerate:  1.45,
	schema.ActivityHigh:      1.7,
}

// ComputeBMR computes basal metabolic rate with the Mifflin-St Jeor
// equation.
func ComputeBMR(gender string, age int, heightCm, weightKg float64) (float64, error) {
	bmr := 10*weightKg + 6.25*heightCm - 5*float64(age)
	switch gender {
	case "male":
		bmr += 5
	case "female":
		bmr -= 161
	default:
		return 0, fmt.Errorf("%w: gender", ErrIncompleteProfile)
	}
	return bmr, nil
}

// ActivityFactor returns the TDEE multiplier for an activity level.
func ActivityFactor(level string) (float64, error) {
	factor, ok := activityFactors[level]
	if !ok {
		return 0, fmt.Errorf("%w: activity_level", ErrIncompleteProfile)
	}
	return factor, nil
}

// targetCalories adjusts TDEE toward the goal. When the goal carries a
// target change (or target weight) and a timeframe, the adjustment
// spreads the change over the timeframe at 7700 kcal/kg; otherwise
// fixed goal-type offsets apply (-500 to lose, +300 to gain).
func targetCalories(tdee, weightKg float64, goals schema.Goals) float64 {
	change := goals.TargetChangeKg
	if change == nil && goals.TargetWeightKg != nil {
		diff := *goals.TargetWeightKg - weightKg
		change = &diff
	}
	if change != nil && goals.TimeframeDays != nil && *goals.TimeframeDays > 0 {
		daily := *change * kcalPerKg / float64(*goals.TimeframeDays)
		if daily < -maxDailyDeficit {
			daily = -maxDailyDeficit
		}
		if daily > maxDailySurplus {
			daily = maxDailySurplus
		}
		return tdee + daily
	}
	switch goals.Type {
	case schema.GoalLoseWeight:
		return tdee - 500
	case schema.GoalGainWeight:
		return tdee + 300
	default:
		return tdee
	}
}

// ComputeMacros splits the target calories into macronutrient targets.
// Protein comes from proteinFactor grams per kg body weight, fat takes
// 30% of calories at 9 kcal/g, carbohydrates the remainder at 4 kcal/g.
func ComputeMacros(weightKg, targetKcal, proteinFactor float64) map[string]int {
	proteinG := int(math.Round(proteinFactor * weightKg))
	fatG := int(math.Round(0.3 * targetKcal / 9))
	remaining := targetKcal - float64(proteinG*4+fatG*9)
	carbsG := int(math.Round(math.Max(remaining, 0) / 4))
	return map[string]int{
		"protein_g": proteinG,
		"fat_g":     fatG,
		"carbs_g":   carbsG,
	}
}

// ComputeNorms derives the full set of daily norms from a profile.
// Fiber minimum is the fixed 25 g recommendation; water is 30 ml per kg
// body weight.
func ComputeNorms(p *schema.Profile, proteinFactor float64) (*schema.Norms, error) {
	personal := p.Personal
	if personal.Age == nil {
		return nil, fmt.Errorf("%w: age", ErrIncompleteProfile)
	}
	if personal.HeightCm == nil {
		return nil, fmt.Errorf("%w: height_cm", ErrIncompleteProfile)
	}
	if personal.WeightKg == nil {
		return nil, fmt.Errorf("%w: weight_kg", ErrIncompleteProfile)
	}
	if proteinFactor <= 0 {
		proteinFactor = 1.6
	}

	bmr, err := ComputeBMR(personal.Gender, *personal.Age, *personal.HeightCm, *personal.WeightKg)
	if err != nil {
		return nil, err
	}
	factor, err := ActivityFactor(personal.ActivityLevel)
	if err != nil {
		return nil, err
	}
	tdee := bmr * factor
	target := targetCalories(tdee, *personal.WeightKg, p.Goals)

	return &schema.Norms{
		BMRKcal:    int(math.Round(bmr)),
		TDEEKcal:   int(math.Round(tdee)),
		TargetKcal: int(math.Round(target)),
		Macros:     ComputeMacros(*personal.WeightKg, target, proteinFactor),
		FiberMinG:  25,
		WaterMinML: int(math.Round(*personal.WeightKg * 30)),
	}, nil
}
