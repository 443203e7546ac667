package archive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dietolog/internal/schema"
)

func openTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndReadClosedDay(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	entry := schema.HistoryMealEntry{Date: "2026-08-28", NumMeals: 3, Comment: "solid day"}
	summary := schema.Total{Kcal: 1900, ProteinG: 110, FatG: 60, CarbsG: 210, SugarG: 40, FiberG: 28}
	require.NoError(t, db.SaveClosedDay(ctx, "alice", entry, summary))

	days, err := db.RecentDays(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "2026-08-28", days[0].Date)
	assert.Equal(t, 3, days[0].NumMeals)
	assert.Equal(t, summary, days[0].Summary)
	assert.Equal(t, "solid day", days[0].Comment)
}

func TestReCloseOverwrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	entry := schema.HistoryMealEntry{Date: "2026-08-28", NumMeals: 2}
	require.NoError(t, db.SaveClosedDay(ctx, "alice", entry, schema.Total{Kcal: 1500}))

	entry.NumMeals = 4
	require.NoError(t, db.SaveClosedDay(ctx, "alice", entry, schema.Total{Kcal: 2100}))

	days, err := db.RecentDays(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, days, 1, "same user+date must upsert, not duplicate")
	assert.Equal(t, 4, days[0].NumMeals)
	assert.Equal(t, 2100, days[0].Summary.Kcal)
}

func TestRecentDaysScopedToUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveClosedDay(ctx, "alice", schema.HistoryMealEntry{Date: "2026-08-27"}, schema.Total{}))
	require.NoError(t, db.SaveClosedDay(ctx, "bob", schema.HistoryMealEntry{Date: "2026-08-27"}, schema.Total{}))

	days, err := db.RecentDays(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, days, 1)

	days, err = db.RecentDays(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, days)
}
