// Package features captures the user's situation as a fixed-width vector
// consumed by the bandit models and the memory index.
package features

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Dim is the width of the context feature vector.
const Dim = 50

// Context is a point-in-time snapshot of the user's situation. Every field
// is normalized to a small range (most to [0,1], trajectories to [-1,1])
// so the linear models can weigh them directly.
type Context struct {
	// Temporal
	HourOfDay      float32
	DayOfWeek      float32
	WeekOfYear     float32
	IsWeekend      float32
	TimeSinceWake  float32
	TimeUntilSleep float32

	// Physiological
	EnergyLevel      float32
	EnergyTrajectory float32
	MoodLevel        float32
	MoodTrajectory   float32
	FatigueScore     float32
	RecoveryNeed     float32

	// Learning
	SkillMomentum     float32
	PracticeDiversity float32
	LearningRate      float32
	FocusTrend        float32
	PomodorosToday    float32
	StudyMinutesToday float32

	// Goals
	BigThreeCompletion float32
	WeeklyGoalProgress float32
	AssignmentUrgency  float32
	OverdueCount       float32
	StreakDays         float32
	GoalAlignment      float32

	// Circadian
	CircadianPhase    float32
	PeakFocusProb     float32
	OptimalCreative   float32
	OptimalAnalytical float32

	// Historical
	SimilarContextOutcome float32
	SameHourProductivity  float32
	SameDayEnergy         float32
	HoursSinceBreak       float32
	HoursSinceWorkout     float32
	HoursSinceCheckin     float32

	// Workload
	ActiveAssignments float32
	DueToday          float32
	DueThisWeek       float32
	StudyHoursWeek    float32
	TargetHoursWeek   float32
	WorkloadBalance   float32

	// Interactions
	EnergyXHour        float32
	MoodXWorkload      float32
	StreakXMomentum    float32
	FatigueXTime       float32
	FocusXComplexity   float32
	RecoveryXIntensity float32
	EnergyTrajXGoals   float32
	MoodTrajXSocial    float32
	CircadianXTask     float32
	HistoryXCurrent    float32
}

// Default returns a neutral context used when no activity data exists.
// Midpoints for bounded features, zero for trajectories and counts.
func Default() *Context {
	return &Context{
		HourOfDay:      0.5,
		DayOfWeek:      0.5,
		WeekOfYear:     0.5,
		TimeSinceWake:  0.5,
		TimeUntilSleep: 0.5,

		EnergyLevel:  0.5,
		MoodLevel:    0.5,
		FatigueScore: 0.3,
		RecoveryNeed: 0.3,

		SkillMomentum:     0.5,
		PracticeDiversity: 0.5,
		LearningRate:      0.5,

		GoalAlignment: 0.5,

		CircadianPhase:    0.5,
		PeakFocusProb:     0.5,
		OptimalCreative:   0.5,
		OptimalAnalytical: 0.5,

		SimilarContextOutcome: 0.5,
		SameHourProductivity:  0.5,
		SameDayEnergy:         0.5,
		HoursSinceBreak:       0.5,
		HoursSinceWorkout:     0.5,
		HoursSinceCheckin:     0.5,

		WorkloadBalance: 1.0,

		EnergyXHour:        0.25,
		MoodXWorkload:      0.25,
		FatigueXTime:       0.15,
		RecoveryXIntensity: 0.09,
		CircadianXTask:     0.25,
		HistoryXCurrent:    0.25,
	}
}

// Vector flattens the context into the canonical feature order.
func (c *Context) Vector() []float32 {
	return []float32{
		c.HourOfDay, c.DayOfWeek, c.WeekOfYear, c.IsWeekend, c.TimeSinceWake, c.TimeUntilSleep,
		c.EnergyLevel, c.EnergyTrajectory, c.MoodLevel, c.MoodTrajectory, c.FatigueScore, c.RecoveryNeed,
		c.SkillMomentum, c.PracticeDiversity, c.LearningRate, c.FocusTrend, c.PomodorosToday, c.StudyMinutesToday,
		c.BigThreeCompletion, c.WeeklyGoalProgress, c.AssignmentUrgency, c.OverdueCount, c.StreakDays, c.GoalAlignment,
		c.CircadianPhase, c.PeakFocusProb, c.OptimalCreative, c.OptimalAnalytical,
		c.SimilarContextOutcome, c.SameHourProductivity, c.SameDayEnergy, c.HoursSinceBreak, c.HoursSinceWorkout, c.HoursSinceCheckin,
		c.ActiveAssignments, c.DueToday, c.DueThisWeek, c.StudyHoursWeek, c.TargetHoursWeek, c.WorkloadBalance,
		c.EnergyXHour, c.MoodXWorkload, c.StreakXMomentum, c.FatigueXTime, c.FocusXComplexity,
		c.RecoveryXIntensity, c.EnergyTrajXGoals, c.MoodTrajXSocial, c.CircadianXTask, c.HistoryXCurrent,
	}
}

// Vector64 returns the feature vector widened to float64 for the linear models.
func (c *Context) Vector64() []float64 {
	v := c.Vector()
	out := make([]float64, Dim)
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

var featureNames = [Dim]string{
	"hour_of_day", "day_of_week", "week_of_year", "is_weekend", "time_since_wake", "time_until_sleep",
	"energy_level", "energy_trajectory", "mood_level", "mood_trajectory", "fatigue_score", "recovery_need",
	"skill_momentum", "practice_diversity", "learning_rate", "focus_trend", "pomodoros_today", "study_minutes_today",
	"big_3_completion", "weekly_goal_progress", "assignment_urgency", "overdue_count", "streak_days", "goal_alignment",
	"circadian_phase", "peak_focus_prob", "optimal_creative", "optimal_analytical",
	"similar_context_outcome", "same_hour_productivity", "same_day_energy", "hours_since_break", "hours_since_workout", "hours_since_checkin",
	"active_assignments", "due_today", "due_this_week", "study_hours_week", "target_hours_week", "workload_balance",
	"energy_x_hour", "mood_x_workload", "streak_x_momentum", "fatigue_x_time", "focus_x_complexity",
	"recovery_x_intensity", "energy_traj_x_goals", "mood_traj_x_social", "circadian_x_task", "history_x_current",
}

// Names returns the canonical feature names, index-aligned with Vector.
func Names() []string {
	return featureNames[:]
}

// Name returns the feature name at index i, or an empty string out of range.
func Name(i int) string {
	if i < 0 || i >= Dim {
		return ""
	}
	return featureNames[i]
}

// ToBytes serializes the vector as little-endian float32s for storage.
func (c *Context) ToBytes() []byte {
	v := c.Vector()
	buf := make([]byte, 0, Dim*4)
	for _, f := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

// FromBytes decodes a stored snapshot. The blob must be exactly Dim
// little-endian float32s.
func FromBytes(data []byte) (*Context, error) {
	if len(data) != Dim*4 {
		return nil, fmt.Errorf("context blob is %d bytes, want %d", len(data), Dim*4)
	}

	var v [Dim]float32
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}

	c := &Context{}
	c.HourOfDay, c.DayOfWeek, c.WeekOfYear, c.IsWeekend, c.TimeSinceWake, c.TimeUntilSleep = v[0], v[1], v[2], v[3], v[4], v[5]
	c.EnergyLevel, c.EnergyTrajectory, c.MoodLevel, c.MoodTrajectory, c.FatigueScore, c.RecoveryNeed = v[6], v[7], v[8], v[9], v[10], v[11]
	c.SkillMomentum, c.PracticeDiversity, c.LearningRate, c.FocusTrend, c.PomodorosToday, c.StudyMinutesToday = v[12], v[13], v[14], v[15], v[16], v[17]
	c.BigThreeCompletion, c.WeeklyGoalProgress, c.AssignmentUrgency, c.OverdueCount, c.StreakDays, c.GoalAlignment = v[18], v[19], v[20], v[21], v[22], v[23]
	c.CircadianPhase, c.PeakFocusProb, c.OptimalCreative, c.OptimalAnalytical = v[24], v[25], v[26], v[27]
	c.SimilarContextOutcome, c.SameHourProductivity, c.SameDayEnergy, c.HoursSinceBreak, c.HoursSinceWorkout, c.HoursSinceCheckin = v[28], v[29], v[30], v[31], v[32], v[33]
	c.ActiveAssignments, c.DueToday, c.DueThisWeek, c.StudyHoursWeek, c.TargetHoursWeek, c.WorkloadBalance = v[34], v[35], v[36], v[37], v[38], v[39]
	c.EnergyXHour, c.MoodXWorkload, c.StreakXMomentum, c.FatigueXTime, c.FocusXComplexity = v[40], v[41], v[42], v[43], v[44]
	c.RecoveryXIntensity, c.EnergyTrajXGoals, c.MoodTrajXSocial, c.CircadianXTask, c.HistoryXCurrent = v[45], v[46], v[47], v[48], v[49]
	return c, nil
}

// Description renders the context as a short phrase suitable for embedding
// and for surfacing in recommendation explanations.
func (c *Context) Description() string {
	energy := "low energy"
	if c.EnergyLevel > 0.7 {
		energy = "high energy"
	} else if c.EnergyLevel > 0.4 {
		energy = "moderate energy"
	}

	mood := "low mood"
	if c.MoodLevel > 0.7 {
		mood = "good mood"
	} else if c.MoodLevel > 0.4 {
		mood = "neutral mood"
	}

	timeOfDay := "evening"
	if c.HourOfDay < 0.5 {
		timeOfDay = "morning"
	} else if c.HourOfDay < 0.75 {
		timeOfDay = "afternoon"
	}

	dayKind := "weekday"
	if c.IsWeekend > 0.5 {
		dayKind = "weekend"
	}

	workload := "light workload"
	if c.ActiveAssignments > 0.3 {
		workload = "high workload"
	} else if c.ActiveAssignments > 0.1 {
		workload = "moderate workload"
	}

	return fmt.Sprintf("%s, %s, %s %s, %s", energy, mood, dayKind, timeOfDay, workload)
}
