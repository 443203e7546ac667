package schema

import (
	"math"
	"time"
)

// Item is a single recognized food within a meal. Nutrition values are
// integers (grams and kilocalories); optional fields stay nil when the
// model could not estimate them.
type Item struct {
	Name     string `json:"name"`
	WeightG  *int   `json:"weight_g,omitempty"`
	Kcal     int    `json:"kcal"`
	ProteinG *int   `json:"protein_g,omitempty"`
	FatG     *int   `json:"fat_g,omitempty"`
	CarbsG   *int   `json:"carbs_g,omitempty"`
	SugarG   *int   `json:"sugar_g,omitempty"`
	FiberG   *int   `json:"fiber_g,omitempty"`
}

// Scale returns a copy of the item with every numeric field multiplied
// by factor and rounded. The name is kept as-is.
func (i Item) Scale(factor float64) Item {
	out := Item{Name: i.Name, Kcal: scaleInt(i.Kcal, factor)}
	out.WeightG = scaleIntPtr(i.WeightG, factor)
	out.ProteinG = scaleIntPtr(i.ProteinG, factor)
	out.FatG = scaleIntPtr(i.FatG, factor)
	out.CarbsG = scaleIntPtr(i.CarbsG, factor)
	out.SugarG = scaleIntPtr(i.SugarG, factor)
	out.FiberG = scaleIntPtr(i.FiberG, factor)
	return out
}

func scaleInt(v int, factor float64) int {
	return int(math.Round(float64(v) * factor))
}

func scaleIntPtr(v *int, factor float64) *int {
	if v == nil {
		return nil
	}
	scaled := scaleInt(*v, factor)
	return &scaled
}

// Total aggregates nutrition values across items or meals.
type Total struct {
	Kcal     int `json:"kcal"`
	ProteinG int `json:"protein_g"`
	FatG     int `json:"fat_g"`
	CarbsG   int `json:"carbs_g"`
	SugarG   int `json:"sugar_g"`
	FiberG   int `json:"fiber_g"`
}

// Add returns the elementwise sum of t and other.
func (t Total) Add(other Total) Total {
	return Total{
		Kcal:     t.Kcal + other.Kcal,
		ProteinG: t.ProteinG + other.ProteinG,
		FatG:     t.FatG + other.FatG,
		CarbsG:   t.CarbsG + other.CarbsG,
		SugarG:   t.SugarG + other.SugarG,
		FiberG:   t.FiberG + other.FiberG,
	}
}

// Sub returns the elementwise difference of t and other.
func (t Total) Sub(other Total) Total {
	return Total{
		Kcal:     t.Kcal - other.Kcal,
		ProteinG: t.ProteinG - other.ProteinG,
		FatG:     t.FatG - other.FatG,
		CarbsG:   t.CarbsG - other.CarbsG,
		SugarG:   t.SugarG - other.SugarG,
		FiberG:   t.FiberG - other.FiberG,
	}
}

// Scale returns the total multiplied by factor, rounding each field.
func (t Total) Scale(factor float64) Total {
	return Total{
		Kcal:     scaleInt(t.Kcal, factor),
		ProteinG: scaleInt(t.ProteinG, factor),
		FatG:     scaleInt(t.FatG, factor),
		CarbsG:   scaleInt(t.CarbsG, factor),
		SugarG:   scaleInt(t.SugarG, factor),
		FiberG:   scaleInt(t.FiberG, factor),
	}
}

// SumItems computes a total from a list of items. Missing optional
// fields count as zero.
func SumItems(items []Item) Total {
	var total Total
	for _, it := range items {
		total.Kcal += it.Kcal
		total.ProteinG += deref(it.ProteinG)
		total.FatG += deref(it.FatG)
		total.CarbsG += deref(it.CarbsG)
		total.SugarG += deref(it.SugarG)
		total.FiberG += deref(it.FiberG)
	}
	return total
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// Meal is one logged intake. A meal starts pending (a draft shown to
// the user) and only contributes to the day summary once confirmed.
type Meal struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Items         []Item    `json:"items"`
	Total         Total     `json:"total"`
	Pending       bool      `json:"pending"`
	Timestamp     time.Time `json:"timestamp"`
	PercentEaten  int       `json:"percent_eaten"`
	UserDesc      string    `json:"user_desc,omitempty"`
	ImageFileID   string    `json:"image_file_id,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	Clarification string    `json:"clarification,omitempty"`
}

// Today is the current day's log for one user.
type Today struct {
	Meals       []Meal     `json:"meals"`
	Summary     Total      `json:"summary"`
	DayClosed   bool       `json:"day_closed"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// AppendMeal adds a meal to the day regardless of its pending status.
// The summary is only touched when the meal is confirmed.
func (t *Today) AppendMeal(meal Meal) {
	t.Meals = append(t.Meals, meal)
	ts := meal.Timestamp
	t.LastUpdated = &ts
}

// ConfirmMeal marks the meal as confirmed and folds its total into the
// summary. Confirming an unknown or already-confirmed meal is a no-op,
// so the total is never counted twice.
func (t *Today) ConfirmMeal(mealID string) bool {
	for i := range t.Meals {
		m := &t.Meals[i]
		if m.ID == mealID && m.Pending {
			m.Pending = false
			t.Summary = t.Summary.Add(m.Total)
			ts := m.Timestamp
			t.LastUpdated = &ts
			return true
		}
	}
	return false
}

// Meal returns a pointer to the meal with the given id, or nil.
func (t *Today) Meal(mealID string) *Meal {
	for i := range t.Meals {
		if t.Meals[i].ID == mealID {
			return &t.Meals[i]
		}
	}
	return nil
}

// RemoveMeal deletes the meal and, if it was confirmed, subtracts its
// total from the summary.
func (t *Today) RemoveMeal(mealID string) bool {
	for i := range t.Meals {
		m := t.Meals[i]
		if m.ID == mealID {
			if !m.Pending {
				t.Summary = t.Summary.Sub(m.Total)
			}
			t.Meals = append(t.Meals[:i], t.Meals[i+1:]...)
			return true
		}
	}
	return false
}

// Recompute rebuilds the summary as the elementwise sum of all
// confirmed meal totals. The stored summary must never drift from this.
func (t *Today) Recompute() {
	var sum Total
	for _, m := range t.Meals {
		if !m.Pending {
			sum = sum.Add(m.Total)
		}
	}
	t.Summary = sum
}

// ConfirmedMeals returns the confirmed meals in log order.
func (t *Today) ConfirmedMeals() []Meal {
	var out []Meal
	for _, m := range t.Meals {
		if !m.Pending {
			out = append(out, m)
		}
	}
	return out
}

// ClosedDay is an archived day kept in the user's history.
type ClosedDay struct {
	Date    string `json:"date"`
	Summary Total  `json:"summary"`
	Meals   []Meal `json:"meals"`
}

// History holds recently closed days, oldest first.
type History struct {
	Days []ClosedDay `json:"days"`
}

// MaxHistoryDays bounds how many closed days are retained per user.
const MaxHistoryDays = 30

// AppendDay adds a closed day, discarding the oldest beyond the limit.
func (h *History) AppendDay(day ClosedDay) {
	h.Days = append(h.Days, day)
	if len(h.Days) > MaxHistoryDays {
		h.Days = h.Days[1:]
	}
}

// MealBrief is a compact one-meal record used for review history.
type MealBrief struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Kcal     int    `json:"kcal"`
	ProteinG int    `json:"protein_g"`
	FatG     int    `json:"fat_g"`
	CarbsG   int    `json:"carbs_g"`
	SugarG   int    `json:"sugar_g"`
	FiberG   int    `json:"fiber_g"`
}

// BriefFromTotal fills the nutrition fields of a brief from a total.
func BriefFromTotal(mealType, name string, t Total) MealBrief {
	return MealBrief{
		Type:     mealType,
		Name:     name,
		Kcal:     t.Kcal,
		ProteinG: t.ProteinG,
		FatG:     t.FatG,
		CarbsG:   t.CarbsG,
		SugarG:   t.SugarG,
		FiberG:   t.FiberG,
	}
}

// HistoryMealEntry is a concise record of one closed day.
type HistoryMealEntry struct {
	Date     string      `json:"date"`
	NumMeals int         `json:"num_meals"`
	Meals    []MealBrief `json:"meals"`
	Comment  string      `json:"comment,omitempty"`
}

// HistoryMeal holds concise day records, oldest first.
type HistoryMeal struct {
	Days []HistoryMealEntry `json:"days"`
}

// AppendDay adds an entry, discarding the oldest beyond the limit.
func (h *HistoryMeal) AppendDay(entry HistoryMealEntry) {
	h.Days = append(h.Days, entry)
	if len(h.Days) > MaxHistoryDays {
		h.Days = h.Days[1:]
	}
}

// Counters tracks per-user lifetime statistics.
type Counters struct {
	TotalDaysClosed int `json:"total_days_closed"`
}

// Norms are the daily nutrition targets derived from a profile.
type Norms struct {
	BMRKcal    int            `json:"BMR_kcal"`
	TDEEKcal   int            `json:"TDEE_kcal"`
	TargetKcal int            `json:"target_kcal"`
	Macros     map[string]int `json:"macros"`
	FiberMinG  int            `json:"fiber_min_g"`
	WaterMinML int            `json:"water_min_ml"`
}

// Activity levels accepted in a profile.
const (
	ActivitySedentary = "sedentary"
	ActivityModerate  = "moderate"
	ActivityHigh      = "high"
)

// ActivityLevels lists the closed set of valid activity levels.
var ActivityLevels = []string{ActivitySedentary, ActivityModerate, ActivityHigh}

// Goal types accepted in a profile.
const (
	GoalLoseWeight = "lose_weight"
	GoalMaintain   = "maintain"
	GoalGainWeight = "gain_weight"
)

// Personal holds the physical attributes used for norms computation.
type Personal struct {
	Gender        string   `json:"gender,omitempty"`
	Age           *int     `json:"age,omitempty"`
	HeightCm      *float64 `json:"height_cm,omitempty"`
	WeightKg      *float64 `json:"weight_kg,omitempty"`
	ActivityLevel string   `json:"activity_level,omitempty"`
	WaistCm       *float64 `json:"waist_cm,omitempty"`
	BustCm        *float64 `json:"bust_cm,omitempty"`
	HipsCm        *float64 `json:"hips_cm,omitempty"`
}

// Goals describes what the user wants to achieve and in what timeframe.
type Goals struct {
	Type           string   `json:"type,omitempty"`
	TargetChangeKg *float64 `json:"target_change_kg,omitempty"`
	TargetWeightKg *float64 `json:"target_weight_kg,omitempty"`
	TimeframeDays  *int     `json:"timeframe_days,omitempty"`
}

// Profile is the persistent per-user nutrition profile.
type Profile struct {
	Personal     Personal `json:"personal"`
	Goals        Goals    `json:"goals"`
	Restrictions []string `json:"restrictions,omitempty"`
	Preferences  []string `json:"preferences,omitempty"`
	Medical      []string `json:"medical,omitempty"`
	Norms        *Norms   `json:"norms,omitempty"`
}
