// Package archive keeps a queryable record of closed days in SQLite.
// The per-user JSON documents remain the source of truth for the
// current day; the archive only serves history lookups for reviews.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"dietolog/internal/schema"
)

//go:embed schema.sql
var schemaFS embed.FS

// DB is the closed-day archive interface.
type DB interface {
	SaveClosedDay(ctx context.Context, userID string, entry schema.HistoryMealEntry, summary schema.Total) error
	RecentDays(ctx context.Context, userID string, limit int) ([]DayRecord, error)
	Close() error
}

// DayRecord is one archived day as read back from the database.
type DayRecord struct {
	Date     string
	NumMeals int
	Summary  schema.Total
	Comment  string
}

// SQLiteDB implements DB on a local SQLite file.
type SQLiteDB struct {
	db *sql.DB
}

// Open opens (and initializes) the archive database.
func Open(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening archive database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}
	if err := initializeSchema(db); err != nil {
		return nil, fmt.Errorf("error initializing archive schema: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}
	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	return nil
}

// SaveClosedDay records one finished day. Re-closing the same date
// overwrites the previous record.
func (s *SQLiteDB) SaveClosedDay(ctx context.Context, userID string, entry schema.HistoryMealEntry, summary schema.Total) error {
	query := `
		INSERT INTO closed_days (
			user_id, date, num_meals, kcal, protein_g, fat_g,
			carbs_g, sugar_g, fiber_g, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			num_meals = excluded.num_meals,
			kcal = excluded.kcal,
			protein_g = excluded.protein_g,
			fat_g = excluded.fat_g,
			carbs_g = excluded.carbs_g,
			sugar_g = excluded.sugar_g,
			fiber_g = excluded.fiber_g,
			comment = excluded.comment,
			created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		userID, entry.Date, entry.NumMeals,
		summary.Kcal, summary.ProteinG, summary.FatG,
		summary.CarbsG, summary.SugarG, summary.FiberG,
		entry.Comment, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// RecentDays returns up to limit most recent archived days, newest first.
func (s *SQLiteDB) RecentDays(ctx context.Context, userID string, limit int) ([]DayRecord, error) {
	query := `
		SELECT date, num_meals, kcal, protein_g, fat_g, carbs_g, sugar_g, fiber_g, comment
		FROM closed_days
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DayRecord
	for rows.Next() {
		var rec DayRecord
		if err := rows.Scan(
			&rec.Date, &rec.NumMeals,
			&rec.Summary.Kcal, &rec.Summary.ProteinG, &rec.Summary.FatG,
			&rec.Summary.CarbsG, &rec.Summary.SugarG, &rec.Summary.FiberG,
			&rec.Comment,
		); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
