package features

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/breaking-byts/lifeos/core/database"
)

// Extractor builds context snapshots from the activity database.
type Extractor struct {
	pool *database.Pool
	now  func() time.Time
}

func NewExtractor(pool *database.Pool) *Extractor {
	return &Extractor{pool: pool, now: time.Now}
}

// Capture assembles the current context from activity data. Individual
// missing signals fall back to neutral defaults; a database failure on a
// required query is returned as an error.
func (e *Extractor) Capture(ctx context.Context) (*Context, error) {
	now := e.now()
	hour := float32(now.Hour())
	day := float32(int(now.Weekday()))
	_, week := now.ISOWeek()

	c := Default()

	c.HourOfDay = hour / 23.0
	c.DayOfWeek = day / 6.0
	c.WeekOfYear = float32(week) / 52.0
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		c.IsWeekend = 1.0
	} else {
		c.IsWeekend = 0.0
	}

	// Assume a 7am wake and 11pm sleep when no schedule data exists.
	c.TimeSinceWake = clamp01((hour - 7.0) / 16.0)
	c.TimeUntilSleep = clamp01((23.0 - hour) / 16.0)

	if err := e.capturePhysiology(ctx, c); err != nil {
		return nil, fmt.Errorf("physiology: %w", err)
	}
	if err := e.captureLearning(ctx, c); err != nil {
		return nil, fmt.Errorf("learning: %w", err)
	}
	if err := e.captureGoals(ctx, c, now); err != nil {
		return nil, fmt.Errorf("goals: %w", err)
	}
	if err := e.captureWorkload(ctx, c); err != nil {
		return nil, fmt.Errorf("workload: %w", err)
	}

	e.captureCircadian(c, hour)

	if err := e.captureFatigue(ctx, c); err != nil {
		return nil, fmt.Errorf("fatigue: %w", err)
	}

	c.computeInteractions()
	return c, nil
}

func (e *Extractor) capturePhysiology(ctx context.Context, c *Context) error {
	var mood, energy, prevMood, prevEnergy sql.NullInt64
	err := e.pool.QueryRow(ctx, `
		SELECT c1.mood, c1.energy,
			(SELECT mood FROM check_ins WHERE date(checked_in_at) = date('now', '-1 day') ORDER BY checked_in_at DESC LIMIT 1),
			(SELECT energy FROM check_ins WHERE date(checked_in_at) = date('now', '-1 day') ORDER BY checked_in_at DESC LIMIT 1)
		FROM check_ins c1
		WHERE date(c1.checked_in_at) = date('now')
		ORDER BY c1.checked_in_at DESC
		LIMIT 1`,
	).Scan(&mood, &energy, &prevMood, &prevEnergy)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	if energy.Valid {
		c.EnergyLevel = (float32(energy.Int64) - 1.0) / 9.0
		if prevEnergy.Valid {
			c.EnergyTrajectory = clampSigned(float32(energy.Int64-prevEnergy.Int64) / 9.0)
		}
	}
	if mood.Valid {
		c.MoodLevel = (float32(mood.Int64) - 1.0) / 9.0
		if prevMood.Valid {
			c.MoodTrajectory = clampSigned(float32(mood.Int64-prevMood.Int64) / 9.0)
		}
	}

	var hoursSinceCheckin sql.NullFloat64
	err = e.pool.QueryRow(ctx,
		`SELECT (julianday('now') - julianday(checked_in_at)) * 24 FROM check_ins ORDER BY checked_in_at DESC LIMIT 1`,
	).Scan(&hoursSinceCheckin)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if hoursSinceCheckin.Valid {
		c.HoursSinceCheckin = clamp01(float32(hoursSinceCheckin.Float64) / 24.0)
	} else {
		c.HoursSinceCheckin = 1.0
	}

	return nil
}

func (e *Extractor) captureLearning(ctx context.Context, c *Context) error {
	var pomodoros int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE session_type = 'study' AND date(started_at) = date('now')`,
	).Scan(&pomodoros); err != nil {
		return err
	}
	c.PomodorosToday = clamp01(float32(pomodoros) / 12.0)

	var studyMins int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(duration_minutes), 0) FROM sessions WHERE session_type = 'study' AND date(started_at) = date('now')`,
	).Scan(&studyMins); err != nil {
		return err
	}
	c.StudyMinutesToday = clamp01(float32(studyMins) / 480.0)

	var practiced, total int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT skill_id) FROM practice_logs WHERE logged_at >= date('now', '-7 days')`,
	).Scan(&practiced); err != nil {
		return err
	}
	if err := e.pool.QueryRow(ctx, `SELECT COUNT(*) FROM skills`).Scan(&total); err != nil {
		return err
	}
	if total > 0 {
		c.PracticeDiversity = clamp01(float32(practiced) / float32(total))
	} else {
		c.PracticeDiversity = 0.0
	}

	return nil
}

func (e *Extractor) captureGoals(ctx context.Context, c *Context, now time.Time) error {
	today := now.Format("2006-01-02")

	var goalCount, goalDone sql.NullInt64
	err := e.pool.QueryRow(ctx,
		`SELECT COUNT(*), SUM(CASE WHEN is_completed = 1 THEN 1 ELSE 0 END) FROM daily_goals WHERE date = ?`,
		today,
	).Scan(&goalCount, &goalDone)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if goalCount.Valid && goalCount.Int64 > 0 {
		c.BigThreeCompletion = float32(goalDone.Int64) / float32(goalCount.Int64)
	}

	rows, err := e.pool.Query(ctx, `
		SELECT due_date, priority FROM assignments
		WHERE is_completed = 0 AND due_date IS NOT NULL
		ORDER BY due_date ASC
		LIMIT 5`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var maxUrgency float32
	for rows.Next() {
		var dueDate string
		var priority int
		if err := rows.Scan(&dueDate, &priority); err != nil {
			return err
		}
		due, err := time.ParseInLocation("2006-01-02", dueDate, now.Location())
		if err != nil {
			continue
		}
		daysUntil := int(due.Sub(startOfDay(now)).Hours() / 24)
		var timeUrgency float32
		switch {
		case daysUntil < 0:
			timeUrgency = 1.0
		case daysUntil == 0:
			timeUrgency = 0.95
		default:
			timeUrgency = max32(1.0-float32(daysUntil)/14.0, 0.0)
		}
		urgency := timeUrgency*0.7 + float32(priority)/3.0*0.3
		maxUrgency = max32(maxUrgency, urgency)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	c.AssignmentUrgency = maxUrgency

	var overdue int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assignments WHERE is_completed = 0 AND due_date < date('now')`,
	).Scan(&overdue); err != nil {
		return err
	}
	c.OverdueCount = clamp01(float32(overdue) / 5.0)

	var streak sql.NullInt64
	err = e.pool.QueryRow(ctx, `
		WITH RECURSIVE streak AS (
			SELECT date('now') as d, 1 as count
			UNION ALL
			SELECT date(d, '-1 day'), count + 1 FROM streak
			WHERE EXISTS (SELECT 1 FROM check_ins WHERE date(checked_in_at) = date(d, '-1 day'))
			AND count < 100
		)
		SELECT MAX(count) FROM streak
		WHERE EXISTS (SELECT 1 FROM check_ins WHERE date(checked_in_at) = d)`,
	).Scan(&streak)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if streak.Valid {
		c.StreakDays = clamp01(float32(streak.Int64) / 30.0)
	}

	return nil
}

func (e *Extractor) captureWorkload(ctx context.Context, c *Context) error {
	var active int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assignments WHERE is_completed = 0`,
	).Scan(&active); err != nil {
		return err
	}
	c.ActiveAssignments = clamp01(float32(active) / 20.0)

	var dueToday int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assignments WHERE is_completed = 0 AND due_date = date('now')`,
	).Scan(&dueToday); err != nil {
		return err
	}
	c.DueToday = clamp01(float32(dueToday) / 5.0)

	var dueWeek int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assignments WHERE is_completed = 0 AND due_date BETWEEN date('now') AND date('now', '+7 days')`,
	).Scan(&dueWeek); err != nil {
		return err
	}
	c.DueThisWeek = clamp01(float32(dueWeek) / 10.0)

	var weekStudyMins int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(duration_minutes), 0) FROM sessions WHERE session_type = 'study' AND started_at >= date('now', 'weekday 0', '-7 days')`,
	).Scan(&weekStudyMins); err != nil {
		return err
	}
	weekStudyHours := float32(weekStudyMins) / 60.0
	c.StudyHoursWeek = weekStudyHours / 40.0

	var target int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(target_weekly_hours), 0) FROM courses`,
	).Scan(&target); err != nil {
		return err
	}
	c.TargetHoursWeek = clamp01(float32(target) / 40.0)
	if target > 0 {
		c.WorkloadBalance = clampRange(weekStudyHours/float32(target), 0.0, 2.0)
	} else {
		c.WorkloadBalance = 1.0
	}

	var hoursSinceWorkout sql.NullFloat64
	err := e.pool.QueryRow(ctx,
		`SELECT (julianday('now') - julianday(logged_at)) * 24 FROM workouts ORDER BY logged_at DESC LIMIT 1`,
	).Scan(&hoursSinceWorkout)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if hoursSinceWorkout.Valid {
		c.HoursSinceWorkout = clamp01(float32(hoursSinceWorkout.Float64) / 48.0)
	} else {
		c.HoursSinceWorkout = 1.0
	}

	return nil
}

func (e *Extractor) captureCircadian(c *Context, hour float32) {
	peakHours := []float32{9, 10, 11, 14, 15, 16}
	c.PeakFocusProb = 0.2
	if hour >= 6 && hour <= 20 {
		c.PeakFocusProb = 0.5
	}
	for _, p := range peakHours {
		if abs32(hour-p) < 1.0 {
			c.PeakFocusProb = 0.8
			break
		}
	}

	c.CircadianPhase = c.TimeSinceWake

	c.OptimalCreative = 0.4
	if hour >= 6 && hour <= 12 {
		c.OptimalCreative = 0.8
	}
	c.OptimalAnalytical = 0.4
	if hour >= 14 && hour <= 18 {
		c.OptimalAnalytical = 0.8
	}
}

func (e *Extractor) captureFatigue(ctx context.Context, c *Context) error {
	var recentMins int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(duration_minutes), 0) FROM sessions WHERE started_at >= datetime('now', '-4 hours')`,
	).Scan(&recentMins); err != nil {
		return err
	}
	c.FatigueScore = clamp01(float32(recentMins) / 180.0)

	var hoursSinceBreak sql.NullFloat64
	err := e.pool.QueryRow(ctx,
		`SELECT MIN((julianday('now') - julianday(ended_at)) * 24) FROM sessions WHERE ended_at IS NOT NULL`,
	).Scan(&hoursSinceBreak)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if hoursSinceBreak.Valid {
		c.HoursSinceBreak = clamp01(float32(hoursSinceBreak.Float64) / 2.0)
	} else {
		c.HoursSinceBreak = 0.0
	}

	c.RecoveryNeed = clamp01(c.FatigueScore*0.6 + c.HoursSinceBreak*0.4)
	return nil
}

// computeInteractions derives the product features from the base features.
// Must run after every base feature is filled in.
func (c *Context) computeInteractions() {
	c.EnergyXHour = c.EnergyLevel * c.PeakFocusProb
	c.MoodXWorkload = c.MoodLevel * (1.0 - c.ActiveAssignments)
	c.StreakXMomentum = c.StreakDays * c.SkillMomentum
	c.FatigueXTime = c.FatigueScore * (1.0 - c.TimeUntilSleep)
	c.FocusXComplexity = c.FocusTrend * c.AssignmentUrgency
	c.RecoveryXIntensity = c.RecoveryNeed * c.FatigueScore
	c.EnergyTrajXGoals = (c.EnergyTrajectory + 1.0) / 2.0 * c.AssignmentUrgency
	c.MoodTrajXSocial = (c.MoodTrajectory + 1.0) / 2.0
	c.CircadianXTask = c.PeakFocusProb * c.OptimalAnalytical
	c.HistoryXCurrent = c.SimilarContextOutcome * c.EnergyLevel
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func clamp01(v float32) float32 {
	return clampRange(v, 0.0, 1.0)
}

func clampSigned(v float32) float32 {
	return clampRange(v, -1.0, 1.0)
}

func clampRange(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
