// Package reward scores user outcomes at four timescales and blends them
// into the signal the bandit models learn from.
package reward

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/breaking-byts/lifeos/core/config"
	"github.com/breaking-byts/lifeos/core/database"
)

// Weights control the horizon blend. Validation happens at the config
// boundary; the blend itself trusts them.
type Weights struct {
	Immediate float64
	Daily     float64
	Weekly    float64
	Monthly   float64
}

func WeightsFromConfig(cfg *config.Config) Weights {
	return Weights{
		Immediate: cfg.Reward.ImmediateWeight,
		Daily:     cfg.Reward.DailyWeight,
		Weekly:    cfg.Reward.WeeklyWeight,
		Monthly:   cfg.Reward.MonthlyWeight,
	}
}

// MultiScale carries one pull's rewards across horizons. Nil pointers mean
// the horizon has not elapsed or was never observed.
type MultiScale struct {
	Immediate float64
	Daily     *float64
	Weekly    *float64
	Monthly   *float64
}

// Blend combines the available horizons: Σ(weight·value) / Σ(weight),
// summing only over horizons that are present. With only the immediate
// reward present the blend equals it exactly.
func (m *MultiScale) Blend(w Weights) float64 {
	total := w.Immediate * m.Immediate
	weightSum := w.Immediate

	if m.Daily != nil {
		total += w.Daily * *m.Daily
		weightSum += w.Daily
	}
	if m.Weekly != nil {
		total += w.Weekly * *m.Weekly
		weightSum += w.Weekly
	}
	if m.Monthly != nil {
		total += w.Monthly * *m.Monthly
		weightSum += w.Monthly
	}

	return total / weightSum
}

// Immediate computes the decision-time reward as an equal-weighted average
// of the signals that are present. Acceptance is always present; a
// completed task and explicit ratings join the average only when given.
func Immediate(accepted bool, feedbackScore *int, taskCompleted bool, satisfactionRating *int) float64 {
	var reward, weight float64

	if accepted {
		reward += 1.0
	} else {
		reward += 0.2
	}
	weight += 1.0

	if feedbackScore != nil {
		reward += (float64(*feedbackScore) + 1.0) / 2.0
		weight += 1.0
	}

	if taskCompleted {
		reward += 1.0
		weight += 1.0
	}

	if satisfactionRating != nil {
		reward += (float64(*satisfactionRating) - 1.0) / 4.0
		weight += 1.0
	}

	return reward / weight
}

// Engine computes daily and weekly rewards from the activity database and
// backfills them into the reward log as horizons elapse.
type Engine struct {
	pool    *database.Pool
	weights Weights
	targets config.TargetsConfig
	logger  *slog.Logger
}

type EngineConfig struct {
	Weights Weights
	Targets config.TargetsConfig
	Logger  *slog.Logger // Optional, uses slog.Default() if nil
}

func NewEngine(pool *database.Pool, cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		pool:    pool,
		weights: cfg.Weights,
		targets: cfg.Targets,
		logger:  cfg.Logger,
	}
}

// Daily scores one day: goal completion, check-in presence, and study time
// against the sweet-spot band. Study time inside the band scores 1.0,
// below it scales linearly to 0, far above it decays toward 0.5.
func (e *Engine) Daily(ctx context.Context, date time.Time) (float64, error) {
	dateStr := date.Format("2006-01-02")
	var reward, weight float64

	var goalCount, goalDone int64
	err := e.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_completed = 1 THEN 1 ELSE 0 END), 0)
		 FROM daily_goals WHERE date = ?`, dateStr,
	).Scan(&goalCount, &goalDone)
	if err != nil {
		return 0, fmt.Errorf("daily goals: %w", err)
	}
	if goalCount > 0 {
		reward += float64(goalDone) / float64(goalCount)
		weight += 2.0
	}

	var checkins int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM check_ins WHERE date(checked_in_at) = ?`, dateStr,
	).Scan(&checkins); err != nil {
		return 0, fmt.Errorf("check-ins: %w", err)
	}
	if checkins > 0 {
		reward += 1.0
	}
	weight += 1.0

	var studyMins int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(duration_minutes), 0) FROM sessions WHERE date(started_at) = ?`, dateStr,
	).Scan(&studyMins); err != nil {
		return 0, fmt.Errorf("study minutes: %w", err)
	}
	reward += e.studyReward(studyMins)
	weight += 1.0

	if weight == 0 {
		return 0.5, nil
	}
	return reward / weight, nil
}

func (e *Engine) studyReward(studyMins int64) float64 {
	lo := int64(e.targets.DailyStudyMinMinutes)
	hi := int64(e.targets.DailyStudyMaxMinutes)

	switch {
	case studyMins >= lo && studyMins <= hi:
		return 1.0
	case studyMins > 0 && studyMins < lo:
		return float64(studyMins) / float64(lo)
	case studyMins > hi:
		decayed := 1.0 - float64(studyMins-hi)/240.0
		if decayed < 0.5 {
			return 0.5
		}
		return decayed
	default:
		return 0.0
	}
}

// Weekly scores one week starting at weekStart: study progress against the
// course target band (weighted double) and practice-day consistency.
func (e *Engine) Weekly(ctx context.Context, weekStart time.Time) (float64, error) {
	weekEnd := weekStart.AddDate(0, 0, 6)
	startStr := weekStart.Format("2006-01-02")
	endStr := weekEnd.Format("2006-01-02")

	var reward, weight float64

	var studyMins int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(duration_minutes), 0) FROM sessions WHERE date(started_at) BETWEEN ? AND ?`,
		startStr, endStr,
	).Scan(&studyMins); err != nil {
		return 0, fmt.Errorf("weekly study: %w", err)
	}

	var targetMins int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(target_weekly_hours), ?) * 60 FROM courses`,
		int64(e.targets.WeeklyStudyHours),
	).Scan(&targetMins); err != nil {
		return 0, fmt.Errorf("weekly target: %w", err)
	}
	if targetMins <= 0 {
		targetMins = int64(e.targets.WeeklyStudyHours) * 60
	}

	progress := float64(studyMins) / float64(targetMins)
	if progress > 1.5 {
		progress = 1.5
	}
	switch {
	case progress >= 0.8 && progress <= 1.2:
		reward += 1.0
	case progress < 0.8:
		reward += progress / 0.8
	default:
		reward += 0.8
	}
	weight += 2.0

	var practiceDays int64
	if err := e.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT date(logged_at)) FROM practice_logs WHERE date(logged_at) BETWEEN ? AND ?`,
		startStr, endStr,
	).Scan(&practiceDays); err != nil {
		return 0, fmt.Errorf("practice days: %w", err)
	}
	consistency := float64(practiceDays) / float64(e.targets.WeeklyPracticeDays)
	if consistency > 1.0 {
		consistency = 1.0
	}
	reward += consistency
	weight += 1.0

	if weight == 0 {
		return 0.5, nil
	}
	return reward / weight, nil
}

// BackfillDaily fills reward_daily for yesterday's pulls. Returns the
// number of rows updated.
func (e *Engine) BackfillDaily(ctx context.Context, now time.Time) (int64, error) {
	yesterday := now.AddDate(0, 0, -1)
	daily, err := e.Daily(ctx, yesterday)
	if err != nil {
		return 0, err
	}

	result, err := e.pool.Exec(ctx,
		`UPDATE reward_log SET reward_daily = ? WHERE date(created_at) = ? AND reward_daily IS NULL`,
		daily, yesterday.Format("2006-01-02"),
	)
	if err != nil {
		return 0, fmt.Errorf("backfill daily: %w", err)
	}
	n, err := result.RowsAffected()
	if n > 0 {
		e.logger.Debug("backfilled daily rewards", "date", yesterday.Format("2006-01-02"), "rows", n, "reward", daily)
	}
	return n, err
}

// BackfillWeekly fills reward_weekly for pulls from the week that ended
// at least seven days ago.
func (e *Engine) BackfillWeekly(ctx context.Context, now time.Time) (int64, error) {
	weekStart := startOfWeek(now.AddDate(0, 0, -7))
	weekly, err := e.Weekly(ctx, weekStart)
	if err != nil {
		return 0, err
	}

	result, err := e.pool.Exec(ctx,
		`UPDATE reward_log SET reward_weekly = ?
		 WHERE date(created_at) BETWEEN ? AND ? AND reward_weekly IS NULL`,
		weekly,
		weekStart.Format("2006-01-02"),
		weekStart.AddDate(0, 0, 6).Format("2006-01-02"),
	)
	if err != nil {
		return 0, fmt.Errorf("backfill weekly: %w", err)
	}
	n, err := result.RowsAffected()
	if n > 0 {
		e.logger.Debug("backfilled weekly rewards", "week_start", weekStart.Format("2006-01-02"), "rows", n, "reward", weekly)
	}
	return n, err
}

// Finalize blends all filled horizons into reward_total for rows that have
// at least one deferred horizon filled. Missing horizons are excluded from
// the blend entirely.
func (e *Engine) Finalize(ctx context.Context) (int64, error) {
	result, err := e.pool.Exec(ctx, `
		UPDATE reward_log
		SET reward_total = (
			? * reward_immediate +
			? * COALESCE(reward_daily, 0) +
			? * COALESCE(reward_weekly, 0) +
			? * COALESCE(reward_monthly, 0)
		) / (
			? +
			CASE WHEN reward_daily IS NOT NULL THEN ? ELSE 0 END +
			CASE WHEN reward_weekly IS NOT NULL THEN ? ELSE 0 END +
			CASE WHEN reward_monthly IS NOT NULL THEN ? ELSE 0 END
		)
		WHERE reward_total IS NULL
		AND (reward_daily IS NOT NULL OR reward_weekly IS NOT NULL)`,
		e.weights.Immediate, e.weights.Daily, e.weights.Weekly, e.weights.Monthly,
		e.weights.Immediate, e.weights.Daily, e.weights.Weekly, e.weights.Monthly,
	)
	if err != nil {
		return 0, fmt.Errorf("finalize rewards: %w", err)
	}
	return result.RowsAffected()
}

// Log writes the immediate reward for one pull and returns the row id.
func (e *Engine) Log(ctx context.Context, actionName string, contextBlob []byte, immediate float64, feedbackType string) (int64, error) {
	result, err := e.pool.Exec(ctx,
		`INSERT INTO reward_log (action_name, context_features, reward_immediate, feedback_type)
		 VALUES (?, ?, ?, ?)`,
		actionName, contextBlob, immediate, feedbackType,
	)
	if err != nil {
		return 0, fmt.Errorf("log reward: %w", err)
	}
	return result.LastInsertId()
}

func startOfWeek(t time.Time) time.Time {
	// Weeks start on Sunday, matching the extractor's week window.
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return d.AddDate(0, 0, -int(d.Weekday()))
}
