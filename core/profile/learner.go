// Package profile distills long-run habits (preferred hours, baselines)
// from activity data. Dimensions gain confidence slowly as samples accrue.
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/breaking-byts/lifeos/core/database"
)

// Dimension is one learned fact about the user.
type Dimension struct {
	Name        string
	Value       json.RawMessage
	Confidence  float64
	SampleCount int64
	UpdatedAt   time.Time
}

// Learner maintains profile dimensions in sqlite.
type Learner struct {
	pool *database.Pool
}

func NewLearner(pool *database.Pool) *Learner {
	return &Learner{pool: pool}
}

// UpdateDimension writes a new value for a dimension. Repeat observations
// raise confidence by exponential moving average (×0.9 + 0.1) capped at
// 0.95; a first observation starts at 0.5.
func (l *Learner) UpdateDimension(ctx context.Context, name string, value any) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal dimension %q: %w", name, err)
	}

	var confidence float64
	var count int64
	err = l.pool.QueryRow(ctx,
		`SELECT confidence, sample_count FROM profile_dimensions WHERE dimension = ?`, name,
	).Scan(&confidence, &count)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = l.pool.Exec(ctx,
			`INSERT INTO profile_dimensions (dimension, value_json, confidence, sample_count)
			 VALUES (?, ?, 0.5, 1)`,
			name, string(valueJSON),
		)
	case err == nil:
		newConfidence := confidence*0.9 + 0.1
		if newConfidence > 0.95 {
			newConfidence = 0.95
		}
		_, err = l.pool.Exec(ctx,
			`UPDATE profile_dimensions
			 SET value_json = ?, confidence = ?, sample_count = ?, updated_at = datetime('now')
			 WHERE dimension = ?`,
			string(valueJSON), newConfidence, count+1, name,
		)
	}
	if err != nil {
		return fmt.Errorf("update dimension %q: %w", name, err)
	}
	return nil
}

// Dimension reads one learned dimension, or nil when unknown.
func (l *Learner) Dimension(ctx context.Context, name string) (*Dimension, error) {
	d := &Dimension{Name: name}
	var valueJSON, updatedAt string
	err := l.pool.QueryRow(ctx,
		`SELECT value_json, confidence, sample_count, updated_at FROM profile_dimensions WHERE dimension = ?`,
		name,
	).Scan(&valueJSON, &d.Confidence, &d.SampleCount, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Value = json.RawMessage(valueJSON)
	if t, err := time.Parse("2006-01-02 15:04:05", updatedAt); err == nil {
		d.UpdatedAt = t
	}
	return d, nil
}

// All returns every dimension, most recently updated first.
func (l *Learner) All(ctx context.Context) ([]Dimension, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT dimension, value_json, confidence, sample_count, updated_at
		 FROM profile_dimensions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dims []Dimension
	for rows.Next() {
		var d Dimension
		var valueJSON, updatedAt string
		if err := rows.Scan(&d.Name, &valueJSON, &d.Confidence, &d.SampleCount, &updatedAt); err != nil {
			return nil, err
		}
		d.Value = json.RawMessage(valueJSON)
		if t, err := time.Parse("2006-01-02 15:04:05", updatedAt); err == nil {
			d.UpdatedAt = t
		}
		dims = append(dims, d)
	}
	return dims, rows.Err()
}

// LearnAll refreshes every learned dimension from current activity data.
func (l *Learner) LearnAll(ctx context.Context) error {
	if err := l.learnStudyPreferences(ctx); err != nil {
		return err
	}
	if err := l.learnWorkoutPreferences(ctx); err != nil {
		return err
	}
	if err := l.learnWellbeingBaselines(ctx); err != nil {
		return err
	}
	return l.learnTemporalPatterns(ctx)
}

func (l *Learner) learnStudyPreferences(ctx context.Context) error {
	rows, err := l.pool.Query(ctx, `
		SELECT CAST(strftime('%H', started_at) AS INTEGER) as hour
		FROM sessions
		WHERE session_type = 'study' AND duration_minutes >= 20
		GROUP BY hour
		ORDER BY COUNT(*) DESC, AVG(duration_minutes) DESC
		LIMIT 4`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var hours []int
	for rows.Next() {
		var h int
		if err := rows.Scan(&h); err != nil {
			return err
		}
		hours = append(hours, h)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(hours) > 0 {
		if err := l.UpdateDimension(ctx, "preferred_study_hours", hours); err != nil {
			return err
		}
	}

	var avgLength sql.NullFloat64
	err = l.pool.QueryRow(ctx,
		`SELECT AVG(duration_minutes) FROM sessions WHERE session_type = 'study' AND duration_minutes IS NOT NULL`,
	).Scan(&avgLength)
	if err != nil {
		return err
	}
	if avgLength.Valid {
		return l.UpdateDimension(ctx, "avg_study_session", avgLength.Float64)
	}
	return nil
}

func (l *Learner) learnWorkoutPreferences(ctx context.Context) error {
	rows, err := l.pool.Query(ctx, `
		SELECT CAST(strftime('%w', logged_at) AS INTEGER) as day
		FROM workouts
		GROUP BY day
		ORDER BY COUNT(*) DESC
		LIMIT 3`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var days []int
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return err
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(days) > 0 {
		if err := l.UpdateDimension(ctx, "preferred_workout_days", days); err != nil {
			return err
		}
	}

	var weeklyAvg sql.NullFloat64
	err = l.pool.QueryRow(ctx, `
		SELECT AVG(cnt) FROM (
			SELECT COUNT(*) as cnt FROM workouts GROUP BY strftime('%Y-%W', logged_at)
		)`).Scan(&weeklyAvg)
	if err != nil {
		return err
	}
	if weeklyAvg.Valid {
		return l.UpdateDimension(ctx, "target_weekly_workouts", weeklyAvg.Float64)
	}
	return nil
}

// learnTemporalPatterns mines when the user tends to feel best: the hours
// with the highest average mood and the weekdays with the highest average
// energy. Minimum sample counts keep one-off readings from dominating.
func (l *Learner) learnTemporalPatterns(ctx context.Context) error {
	rows, err := l.pool.Query(ctx, `
		SELECT CAST(strftime('%H', checked_in_at) AS INTEGER) as hour
		FROM check_ins
		WHERE mood IS NOT NULL
		GROUP BY hour
		HAVING COUNT(*) >= 3
		ORDER BY AVG(mood) DESC
		LIMIT 3`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var hours []int
	for rows.Next() {
		var h int
		if err := rows.Scan(&h); err != nil {
			return err
		}
		hours = append(hours, h)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(hours) > 0 {
		if err := l.UpdateDimension(ctx, "peak_mood_hours", hours); err != nil {
			return err
		}
	}

	rows, err = l.pool.Query(ctx, `
		SELECT CAST(strftime('%w', checked_in_at) AS INTEGER) as day
		FROM check_ins
		WHERE energy IS NOT NULL
		GROUP BY day
		HAVING COUNT(*) >= 2
		ORDER BY AVG(energy) DESC
		LIMIT 2`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var days []int
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return err
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(days) > 0 {
		return l.UpdateDimension(ctx, "peak_energy_days", days)
	}
	return nil
}

func (l *Learner) learnWellbeingBaselines(ctx context.Context) error {
	var mood, energy sql.NullFloat64
	err := l.pool.QueryRow(ctx,
		`SELECT AVG(mood), AVG(energy) FROM check_ins WHERE mood IS NOT NULL AND energy IS NOT NULL`,
	).Scan(&mood, &energy)
	if err != nil {
		return err
	}

	if mood.Valid {
		if err := l.UpdateDimension(ctx, "baseline_mood", mood.Float64); err != nil {
			return err
		}
	}
	if energy.Valid {
		return l.UpdateDimension(ctx, "baseline_energy", energy.Float64)
	}
	return nil
}
