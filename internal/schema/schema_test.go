package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestSumItems(t *testing.T) {
	items := []Item{
		{Name: "oatmeal", Kcal: 150, ProteinG: intPtr(5), FatG: intPtr(3), CarbsG: intPtr(27)},
		{Name: "banana", Kcal: 105, ProteinG: intPtr(1), CarbsG: intPtr(27), SugarG: intPtr(14), FiberG: intPtr(3)},
	}
	total := SumItems(items)
	assert.Equal(t, Total{Kcal: 255, ProteinG: 6, FatG: 3, CarbsG: 54, SugarG: 14, FiberG: 3}, total)
}

func TestItemScale(t *testing.T) {
	item := Item{Name: "rice", WeightG: intPtr(200), Kcal: 260, CarbsG: intPtr(56)}
	half := item.Scale(0.5)
	assert.Equal(t, "rice", half.Name)
	assert.Equal(t, 130, half.Kcal)
	require.NotNil(t, half.WeightG)
	assert.Equal(t, 100, *half.WeightG)
	require.NotNil(t, half.CarbsG)
	assert.Equal(t, 28, *half.CarbsG)
	assert.Nil(t, half.ProteinG)
}

func TestConfirmMealOnce(t *testing.T) {
	var today Today
	meal := Meal{ID: "m1", Pending: true, Total: Total{Kcal: 300, ProteinG: 10}, Timestamp: time.Now()}
	today.AppendMeal(meal)
	assert.Equal(t, Total{}, today.Summary, "pending meals must not count")

	require.True(t, today.ConfirmMeal("m1"))
	assert.Equal(t, 300, today.Summary.Kcal)

	// Confirming again must not double-count.
	assert.False(t, today.ConfirmMeal("m1"))
	assert.Equal(t, 300, today.Summary.Kcal)

	assert.False(t, today.ConfirmMeal("missing"))
}

func TestRemoveMealRestoresSummary(t *testing.T) {
	var today Today
	today.AppendMeal(Meal{ID: "a", Pending: true, Total: Total{Kcal: 200, CarbsG: 30}})
	today.AppendMeal(Meal{ID: "b", Pending: true, Total: Total{Kcal: 450, FatG: 20}})
	today.ConfirmMeal("a")
	today.ConfirmMeal("b")
	require.Equal(t, 650, today.Summary.Kcal)

	require.True(t, today.RemoveMeal("b"))
	assert.Equal(t, Total{Kcal: 200, CarbsG: 30}, today.Summary)
	assert.Len(t, today.Meals, 1)

	// Removing a pending meal leaves the summary alone.
	today.AppendMeal(Meal{ID: "c", Pending: true, Total: Total{Kcal: 999}})
	require.True(t, today.RemoveMeal("c"))
	assert.Equal(t, 200, today.Summary.Kcal)
}

func TestRecomputeMatchesConfirmedSum(t *testing.T) {
	var today Today
	today.AppendMeal(Meal{ID: "a", Total: Total{Kcal: 120, ProteinG: 8}})
	today.AppendMeal(Meal{ID: "b", Pending: true, Total: Total{Kcal: 500}})
	today.AppendMeal(Meal{ID: "c", Total: Total{Kcal: 80, FiberG: 4}})

	today.Recompute()
	assert.Equal(t, Total{Kcal: 200, ProteinG: 8, FiberG: 4}, today.Summary)
	assert.Len(t, today.ConfirmedMeals(), 2)
}

func TestHistoryBounded(t *testing.T) {
	var h History
	for i := 0; i < MaxHistoryDays+5; i++ {
		h.AppendDay(ClosedDay{Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format("2006-01-02")})
	}
	require.Len(t, h.Days, MaxHistoryDays)
	assert.Equal(t, "2026-01-06", h.Days[0].Date, "oldest days are discarded first")
}
