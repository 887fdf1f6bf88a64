// Package agent wires feature extraction, the bandit, semantic memory,
// and the reward engine into the recommendation loop.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/breaking-byts/lifeos/core/bandit"
	"github.com/breaking-byts/lifeos/core/config"
	"github.com/breaking-byts/lifeos/core/database"
	"github.com/breaking-byts/lifeos/core/features"
	"github.com/breaking-byts/lifeos/core/memory"
	"github.com/breaking-byts/lifeos/core/profile"
	"github.com/breaking-byts/lifeos/core/reward"
)

// Recommendation is one ranked suggestion with everything needed to show
// the user why.
type Recommendation struct {
	ID             int64
	Action         bandit.Action
	ExpectedReward float64
	Uncertainty    float64
	Score          float64
	Explanation    string
	Confidence     string // "low", "medium", or "high"
	TopFeatures    []FeatureContribution
	Similar        []PastExperience
	Alternatives   []Alternative
}

// FeatureContribution explains one feature's pull on the prediction.
type FeatureContribution struct {
	Name         string
	Value        float64
	Contribution float64
	Direction    string // "positive" or "negative"
}

// PastExperience is a similar remembered event surfaced alongside the
// top recommendation.
type PastExperience struct {
	Description string
	Outcome     float64
	Similarity  float64
	When        time.Time
}

// Alternative is a runner-up action attached to the top recommendation.
type Alternative struct {
	Action         bandit.Action
	ExpectedReward float64
	Reason         string
}

// Status summarizes what the engine has learned so far.
type Status struct {
	TotalSamples int64
	MemoryEvents int
	AvgAccuracy  float64 // Acceptance rate over the last 7 days
}

// Agent is the orchestrator. One instance serves all recommendation and
// feedback calls.
type Agent struct {
	pool      *database.Pool
	extractor *features.Extractor
	snapshots *features.SnapshotStore
	models    *bandit.Store
	selector  *bandit.Selector
	memory    *memory.Index
	rewards   *reward.Engine
	profile   *profile.Learner
	config    *config.Manager
	logger    *slog.Logger
}

type Config struct {
	Pool      *database.Pool
	Extractor *features.Extractor
	Snapshots *features.SnapshotStore
	Models    *bandit.Store
	Selector  *bandit.Selector
	Memory    *memory.Index
	Rewards   *reward.Engine
	Profile   *profile.Learner
	Manager   *config.Manager
	Logger    *slog.Logger // Optional, uses slog.Default() if nil
}

func New(cfg Config) *Agent {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Agent{
		pool:      cfg.Pool,
		extractor: cfg.Extractor,
		snapshots: cfg.Snapshots,
		models:    cfg.Models,
		selector:  cfg.Selector,
		memory:    cfg.Memory,
		rewards:   cfg.Rewards,
		profile:   cfg.Profile,
		config:    cfg.Manager,
		logger:    cfg.Logger,
	}
}

const similarExperienceCount = 5

// Recommend captures the current context and returns the top n actions.
// Feature extraction failure is fatal; memory failures degrade to the
// neutral prior.
func (a *Agent) Recommend(ctx context.Context, n int) ([]Recommendation, error) {
	cfg := a.config.Get()
	if n <= 0 {
		n = cfg.Bandit.TopK
	}

	c, err := a.extractor.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture context: %w", err)
	}

	var contextID int64
	if id, err := a.snapshots.Save(ctx, c); err != nil {
		a.logger.Warn("context snapshot not saved", "error", err)
	} else {
		contextID = id
	}

	similar := a.similarExperiences(ctx, c)
	if len(similar) > 0 {
		var weighted, totalWeight float64
		for _, s := range similar {
			weighted += s.Outcome * s.Similarity
			totalWeight += s.Similarity
		}
		c.SimilarContextOutcome = float32(weighted / totalWeight)
	}
	// The memory feature feeds two interaction terms; refresh them.
	c.HistoryXCurrent = c.SimilarContextOutcome * c.EnergyLevel

	var selections []bandit.Selection
	if cfg.Bandit.Thompson {
		top, err := a.selector.SelectThompson(ctx, c)
		if err != nil {
			return nil, err
		}
		if top != nil {
			selections = []bandit.Selection{*top}
		}
	} else {
		selections, err = a.selector.SelectTop(ctx, c, n+2, cfg.Bandit.Beta)
		if err != nil {
			return nil, err
		}
	}
	if len(selections) == 0 {
		return []Recommendation{}, nil
	}
	if n > len(selections) {
		n = len(selections)
	}

	x := c.Vector64()
	recommendations := make([]Recommendation, 0, n)

	for i, sel := range selections[:n] {
		explanation := a.explain(sel, c, similar)

		top := make([]FeatureContribution, 0, len(sel.Contributions))
		for _, contrib := range sel.Contributions {
			direction := "positive"
			if contrib.Value < 0 {
				direction = "negative"
			}
			top = append(top, FeatureContribution{
				Name:         contrib.Name,
				Value:        x[contrib.Index],
				Contribution: contrib.Value,
				Direction:    direction,
			})
		}

		rec := Recommendation{
			Action:         sel.Action,
			ExpectedReward: sel.ExpectedReward,
			Uncertainty:    sel.Uncertainty,
			Score:          sel.Score,
			Explanation:    explanation,
			Confidence:     confidenceLevel(sel.Uncertainty),
			TopFeatures:    top,
		}
		if i == 0 {
			rec.Similar = similar
		}

		if id, err := a.recordRecommendation(ctx, &rec, contextID); err != nil {
			a.logger.Warn("recommendation not recorded", "action", sel.Action.Name, "error", err)
		} else {
			rec.ID = id
		}

		recommendations = append(recommendations, rec)
	}

	if len(recommendations) > 1 {
		alternatives := make([]Alternative, 0, len(recommendations)-1)
		for _, r := range recommendations[1:] {
			alternatives = append(alternatives, Alternative{
				Action:         r.Action,
				ExpectedReward: r.ExpectedReward,
				Reason:         fmt.Sprintf("Also good for %s: %s", r.Action.Category, r.Action.Description),
			})
		}
		recommendations[0].Alternatives = alternatives
	}

	return recommendations, nil
}

func (a *Agent) similarExperiences(ctx context.Context, c *features.Context) []PastExperience {
	results, err := a.memory.SearchSimilar(ctx, c.Description(), similarExperienceCount, "")
	if err != nil {
		a.logger.Warn("memory search failed, using neutral prior", "error", err)
		return nil
	}

	experiences := make([]PastExperience, 0, len(results))
	for _, r := range results {
		outcome := 0.5
		if r.Event.Outcome != nil {
			outcome = *r.Event.Outcome
		}
		experiences = append(experiences, PastExperience{
			Description: r.Event.Content,
			Outcome:     outcome,
			Similarity:  r.Similarity,
			When:        r.Event.CreatedAt,
		})
	}
	return experiences
}

func confidenceLevel(uncertainty float64) string {
	switch {
	case uncertainty < 0.2:
		return "high"
	case uncertainty < 0.5:
		return "medium"
	default:
		return "low"
	}
}

func (a *Agent) recordRecommendation(ctx context.Context, rec *Recommendation, contextID int64) (int64, error) {
	var ctxID any
	if contextID > 0 {
		ctxID = contextID
	}
	result, err := a.pool.Exec(ctx,
		`INSERT INTO recommendations (action_name, expected_reward, uncertainty, ucb_score, context_id, explanation)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Action.Name, rec.ExpectedReward, rec.Uncertainty, rec.Score, ctxID, rec.Explanation,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// explain builds the human-readable reason for a recommendation from its
// strongest feature, the action's category, and memory evidence.
func (a *Agent) explain(sel bandit.Selection, c *features.Context, similar []PastExperience) string {
	var parts []string

	if len(sel.Contributions) > 0 {
		if reason := featureReason(sel.Contributions[0].Name, c); reason != "" {
			parts = append(parts, reason)
		}
	}

	if reason := categoryReason(sel.Action.Category, c); reason != "" {
		parts = append(parts, reason)
	}

	if len(similar) > 0 {
		var sum float64
		for _, s := range similar {
			sum += s.Outcome
		}
		if sum/float64(len(similar)) > 0.7 {
			parts = append(parts, "Similar situations in the past led to good outcomes.")
		}
	}

	if len(parts) == 0 {
		return fmt.Sprintf("Recommended: %s. %s",
			strings.ReplaceAll(sel.Action.Name, "_", " "), sel.Action.Description)
	}
	return fmt.Sprintf("%s. %s", strings.Join(parts, " "), sel.Action.Description)
}

func featureReason(name string, c *features.Context) string {
	switch name {
	case "energy_level":
		if c.EnergyLevel > 0.7 {
			return "Your energy is high right now"
		}
		if c.EnergyLevel < 0.4 {
			return "Your energy is low, so let's pick something manageable"
		}
		return "Your energy level is moderate"
	case "hour_of_day":
		if c.HourOfDay < 0.5 {
			return "Morning is a great time for focused work"
		}
		if c.HourOfDay < 0.75 {
			return "Afternoon is ideal for this activity"
		}
		return "Evening is good for winding down"
	case "assignment_urgency":
		if c.AssignmentUrgency > 0.7 {
			return "You have urgent deadlines approaching"
		}
		return "Your workload is manageable"
	case "peak_focus_prob":
		if c.PeakFocusProb > 0.6 {
			return "This is typically your peak focus time"
		}
		return "This time is good for lighter tasks"
	case "recovery_need":
		if c.RecoveryNeed > 0.6 {
			return "You could use some recovery time"
		}
		return "You're well-rested"
	case "streak_days":
		if c.StreakDays > 0.3 {
			return "You're on a great streak, keep it going!"
		}
		return "Let's build some momentum"
	default:
		return "Based on your current context"
	}
}

func categoryReason(category string, c *features.Context) string {
	switch category {
	case "focus", "learning":
		if c.PomodorosToday < 0.3 {
			return "You haven't done much focused work yet today."
		}
	case "health":
		if c.HoursSinceWorkout > 0.5 {
			return "It's been a while since your last workout."
		}
	case "reflection":
		if c.HoursSinceCheckin > 0.5 {
			return "A quick check-in would help track your progress."
		}
	}
	return ""
}
