package bandit

import (
	"context"
	"fmt"
)

// CatalogEntry describes one seeded action. The catalog is configuration:
// the engine ranks these, it never invents new ones.
type CatalogEntry struct {
	Name        string
	Category    string
	Description string
}

// DefaultCatalog is the built-in action set, in canonical order. Catalog
// order doubles as the deterministic tie-break during selection.
func DefaultCatalog() []CatalogEntry {
	return []CatalogEntry{
		{Name: "start_pomodoro", Category: "focus", Description: "Start a 25-minute focused study session"},
		{Name: "take_break", Category: "recovery", Description: "Step away for a short break"},
		{Name: "do_workout", Category: "health", Description: "Get some exercise in"},
		{Name: "do_checkin", Category: "reflection", Description: "Log mood and energy"},
		{Name: "practice_skill", Category: "learning", Description: "Practice a skill from the skill list"},
		{Name: "tackle_assignment", Category: "focus", Description: "Work on the most urgent assignment"},
		{Name: "weekly_review", Category: "reflection", Description: "Review the past week and plan the next"},
	}
}

// EventActions maps activity event types to the catalog action they train.
// Event types without a mapping contribute to memory only.
var eventActions = map[string]string{
	"study_session":        "start_pomodoro",
	"pomodoro":             "start_pomodoro",
	"workout":              "do_workout",
	"checkin":              "do_checkin",
	"skill_practice":       "practice_skill",
	"assignment_completed": "tackle_assignment",
	"break":                "take_break",
	"weekly_review":        "weekly_review",
}

// ActionForEvent returns the catalog action trained by an event type.
func ActionForEvent(eventType string) (string, bool) {
	name, ok := eventActions[eventType]
	return name, ok
}

// Seed inserts catalog entries that are not already present. Existing rows,
// including their learned state and counters, are left untouched.
func (s *Store) Seed(ctx context.Context, catalog []CatalogEntry) error {
	for _, entry := range catalog {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO bandit_actions (action_name, category, description)
			 VALUES (?, ?, ?)
			 ON CONFLICT(action_name) DO NOTHING`,
			entry.Name, entry.Category, entry.Description,
		)
		if err != nil {
			return fmt.Errorf("seed action %q: %w", entry.Name, err)
		}
	}
	return nil
}
