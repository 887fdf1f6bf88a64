package features

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/breaking-byts/lifeos/core/database"
)

func newTestPool(t *testing.T) *database.Pool {
	t.Helper()

	manager := database.NewManager(nil)
	pool, err := manager.OpenMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { _ = manager.CloseAll() })

	migrator := database.NewMigrator(pool, database.Migrations())
	if err := migrator.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func near32(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestCaptureEmptyDatabaseUsesDefaults(t *testing.T) {
	pool := newTestPool(t)
	extractor := NewExtractor(pool)

	c, err := extractor.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	tests := []struct {
		name string
		got  float32
		want float32
	}{
		{"energy_level", c.EnergyLevel, 0.5},
		{"mood_level", c.MoodLevel, 0.5},
		{"energy_trajectory", c.EnergyTrajectory, 0},
		{"pomodoros_today", c.PomodorosToday, 0},
		{"study_minutes_today", c.StudyMinutesToday, 0},
		{"practice_diversity", c.PracticeDiversity, 0},
		{"big_3_completion", c.BigThreeCompletion, 0},
		{"hours_since_checkin saturates", c.HoursSinceCheckin, 1.0},
		{"hours_since_workout saturates", c.HoursSinceWorkout, 1.0},
		{"workload_balance neutral", c.WorkloadBalance, 1.0},
		{"fatigue_score", c.FatigueScore, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !near32(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestCaptureTemporalFeatures(t *testing.T) {
	pool := newTestPool(t)
	extractor := NewExtractor(pool)
	// Saturday 2026-08-29 at 10:00.
	extractor.now = func() time.Time {
		return time.Date(2026, time.August, 29, 10, 0, 0, 0, time.UTC)
	}

	c, err := extractor.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if !near32(c.HourOfDay, 10.0/23.0) {
		t.Errorf("HourOfDay = %v, want %v", c.HourOfDay, 10.0/23.0)
	}
	if c.IsWeekend != 1.0 {
		t.Errorf("IsWeekend = %v, want 1.0", c.IsWeekend)
	}
	if !near32(c.TimeSinceWake, 3.0/16.0) {
		t.Errorf("TimeSinceWake = %v, want %v", c.TimeSinceWake, 3.0/16.0)
	}
	// 10:00 sits inside the morning focus window.
	if c.PeakFocusProb != 0.8 {
		t.Errorf("PeakFocusProb = %v, want 0.8", c.PeakFocusProb)
	}
	if c.OptimalCreative != 0.8 {
		t.Errorf("OptimalCreative = %v, want 0.8", c.OptimalCreative)
	}
	if c.OptimalAnalytical != 0.4 {
		t.Errorf("OptimalAnalytical = %v, want 0.4", c.OptimalAnalytical)
	}
}

func TestCapturePhysiologyFromCheckIns(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)

	_, err := pool.Exec(ctx,
		`INSERT INTO check_ins (mood, energy, checked_in_at) VALUES (8, 6, datetime('now'))`)
	if err != nil {
		t.Fatalf("seed check-in: %v", err)
	}
	_, err = pool.Exec(ctx,
		`INSERT INTO check_ins (mood, energy, checked_in_at) VALUES (5, 4, datetime('now', '-1 day'))`)
	if err != nil {
		t.Fatalf("seed prior check-in: %v", err)
	}

	c, err := NewExtractor(pool).Capture(ctx)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if !near32(c.MoodLevel, 7.0/9.0) {
		t.Errorf("MoodLevel = %v, want %v", c.MoodLevel, 7.0/9.0)
	}
	if !near32(c.EnergyLevel, 5.0/9.0) {
		t.Errorf("EnergyLevel = %v, want %v", c.EnergyLevel, 5.0/9.0)
	}
	if !near32(c.MoodTrajectory, 3.0/9.0) {
		t.Errorf("MoodTrajectory = %v, want %v", c.MoodTrajectory, 3.0/9.0)
	}
	if !near32(c.EnergyTrajectory, 2.0/9.0) {
		t.Errorf("EnergyTrajectory = %v, want %v", c.EnergyTrajectory, 2.0/9.0)
	}
	if c.HoursSinceCheckin > 0.1 {
		t.Errorf("HoursSinceCheckin = %v, want near 0", c.HoursSinceCheckin)
	}
}

func TestCaptureLearningFromSessions(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)

	for i := 0; i < 3; i++ {
		_, err := pool.Exec(ctx,
			`INSERT INTO sessions (session_type, duration_minutes, started_at, ended_at)
			 VALUES ('study', 25, datetime('now', '-6 hours'), datetime('now', '-6 hours', '+25 minutes'))`)
		if err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}

	c, err := NewExtractor(pool).Capture(ctx)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if !near32(c.PomodorosToday, 3.0/12.0) {
		t.Errorf("PomodorosToday = %v, want %v", c.PomodorosToday, 3.0/12.0)
	}
	if !near32(c.StudyMinutesToday, 75.0/480.0) {
		t.Errorf("StudyMinutesToday = %v, want %v", c.StudyMinutesToday, 75.0/480.0)
	}
	// Sessions ended six hours ago, well past the fatigue window.
	if c.FatigueScore != 0 {
		t.Errorf("FatigueScore = %v, want 0", c.FatigueScore)
	}
}

func TestCaptureAssignmentUrgency(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)

	// An overdue high-priority assignment dominates urgency.
	_, err := pool.Exec(ctx,
		`INSERT INTO assignments (title, priority, due_date, is_completed)
		 VALUES ('overdue paper', 3, date('now', '-2 days'), 0)`)
	if err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	_, err = pool.Exec(ctx,
		`INSERT INTO assignments (title, priority, due_date, is_completed)
		 VALUES ('far off', 1, date('now', '+21 days'), 0)`)
	if err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	c, err := NewExtractor(pool).Capture(ctx)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	// time urgency 1.0 at weight 0.7 plus priority 3/3 at weight 0.3.
	if !near32(c.AssignmentUrgency, 1.0) {
		t.Errorf("AssignmentUrgency = %v, want 1.0", c.AssignmentUrgency)
	}
	if !near32(c.OverdueCount, 1.0/5.0) {
		t.Errorf("OverdueCount = %v, want %v", c.OverdueCount, 1.0/5.0)
	}
	if !near32(c.ActiveAssignments, 2.0/20.0) {
		t.Errorf("ActiveAssignments = %v, want %v", c.ActiveAssignments, 2.0/20.0)
	}
}

func TestCaptureInteractionsDeriveFromBaseFeatures(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)

	c, err := NewExtractor(pool).Capture(ctx)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if !near32(c.EnergyXHour, c.EnergyLevel*c.PeakFocusProb) {
		t.Errorf("EnergyXHour = %v, want %v", c.EnergyXHour, c.EnergyLevel*c.PeakFocusProb)
	}
	if !near32(c.MoodXWorkload, c.MoodLevel*(1.0-c.ActiveAssignments)) {
		t.Errorf("MoodXWorkload = %v, want %v", c.MoodXWorkload, c.MoodLevel*(1.0-c.ActiveAssignments))
	}
	if !near32(c.RecoveryXIntensity, c.RecoveryNeed*c.FatigueScore) {
		t.Errorf("RecoveryXIntensity = %v, want %v", c.RecoveryXIntensity, c.RecoveryNeed*c.FatigueScore)
	}
	if !near32(c.HistoryXCurrent, c.SimilarContextOutcome*c.EnergyLevel) {
		t.Errorf("HistoryXCurrent = %v, want %v", c.HistoryXCurrent, c.SimilarContextOutcome*c.EnergyLevel)
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	store := NewSnapshotStore(pool)

	c := Default()
	c.EnergyLevel = 0.8
	c.StreakDays = 0.4

	id, err := store.Save(ctx, c)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if id <= 0 {
		t.Fatalf("Save() id = %d, want > 0", id)
	}

	loaded, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.EnergyLevel != 0.8 || loaded.StreakDays != 0.4 {
		t.Errorf("Load() = energy %v streak %v, want 0.8 and 0.4", loaded.EnergyLevel, loaded.StreakDays)
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest == nil || latest.EnergyLevel != 0.8 {
		t.Errorf("Latest() = %v, want the saved snapshot", latest)
	}
}

func TestSnapshotLatestEmpty(t *testing.T) {
	pool := newTestPool(t)
	store := NewSnapshotStore(pool)

	latest, err := store.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest != nil {
		t.Errorf("Latest() = %v, want nil on empty table", latest)
	}
}
