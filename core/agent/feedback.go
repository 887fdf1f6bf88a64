package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/breaking-byts/lifeos/core/bandit"
	"github.com/breaking-byts/lifeos/core/features"
	"github.com/breaking-byts/lifeos/core/reward"
)

// Feedback is the user's response to one recommendation.
type Feedback struct {
	RecommendationID int64
	Accepted         bool
	FeedbackScore    *int     // -1, 0, or 1
	OutcomeScore     *float64 // [0,1], how it actually went
}

// RecordFeedback stores the response and, when an outcome is known, trains
// the action's model and logs the immediate reward for later horizons.
func (a *Agent) RecordFeedback(ctx context.Context, fb Feedback) error {
	var actionName string
	var contextID sql.NullInt64
	err := a.pool.QueryRow(ctx,
		`SELECT action_name, context_id FROM recommendations WHERE id = ?`,
		fb.RecommendationID,
	).Scan(&actionName, &contextID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("unknown recommendation %d", fb.RecommendationID)
	}
	if err != nil {
		return err
	}

	var feedbackScore, outcomeScore any
	if fb.FeedbackScore != nil {
		feedbackScore = *fb.FeedbackScore
	}
	if fb.OutcomeScore != nil {
		outcomeScore = *fb.OutcomeScore
	}

	_, err = a.pool.Exec(ctx,
		`UPDATE recommendations
		 SET was_accepted = ?, feedback_score = ?, outcome_score = ?
		 WHERE id = ?`,
		fb.Accepted, feedbackScore, outcomeScore, fb.RecommendationID,
	)
	if err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}

	if fb.OutcomeScore == nil {
		return nil
	}

	c, err := a.contextForDecision(ctx, contextID)
	if err != nil {
		return err
	}
	x := c.Vector64()

	if err := a.models.Update(ctx, actionName, x, *fb.OutcomeScore); err != nil {
		return err
	}

	immediate := reward.Immediate(fb.Accepted, fb.FeedbackScore, *fb.OutcomeScore > 0.7, nil)
	if _, err := a.rewards.Log(ctx, actionName, c.ToBytes(), immediate, "explicit"); err != nil {
		return err
	}

	a.logger.Info("feedback recorded",
		"recommendation", fb.RecommendationID,
		"action", actionName,
		"accepted", fb.Accepted,
		"outcome", *fb.OutcomeScore,
	)
	return nil
}

// contextForDecision prefers the snapshot taken at recommendation time and
// falls back to a fresh capture when none was stored.
func (a *Agent) contextForDecision(ctx context.Context, contextID sql.NullInt64) (*features.Context, error) {
	if contextID.Valid {
		if c, err := a.snapshots.Load(ctx, contextID.Int64); err == nil {
			return c, nil
		}
		a.logger.Warn("stored context unavailable, capturing fresh", "context_id", contextID.Int64)
	}
	return a.extractor.Capture(ctx)
}

// RecordCompleted logs a finished activity: it becomes a memory event and,
// when the event type maps to a catalog action, a training example for it.
func (a *Agent) RecordCompleted(ctx context.Context, eventType, description string, outcomeScore float64, metadata map[string]any) (string, error) {
	c, err := a.extractor.Capture(ctx)
	if err != nil {
		return "", fmt.Errorf("capture context: %w", err)
	}

	var metadataJSON string
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("marshal metadata: %w", err)
		}
		metadataJSON = string(data)
	}

	content := fmt.Sprintf("%s: %s", eventType, description)
	outcome := outcomeScore
	eventID, err := a.memory.AddEvent(ctx, eventType, content, metadataJSON, &outcome)
	if err != nil {
		return "", err
	}

	if actionName, ok := bandit.ActionForEvent(eventType); ok {
		if err := a.models.Update(ctx, actionName, c.Vector64(), outcomeScore); err != nil {
			return "", err
		}
	}

	return eventID, nil
}

// Maintenance backfills elapsed reward horizons, finalizes complete
// records, and refreshes the learned profile. Run it daily.
func (a *Agent) Maintenance(ctx context.Context, now time.Time) error {
	if _, err := a.rewards.BackfillDaily(ctx, now); err != nil {
		return err
	}
	if _, err := a.rewards.BackfillWeekly(ctx, now); err != nil {
		return err
	}
	if _, err := a.rewards.Finalize(ctx); err != nil {
		return err
	}
	return a.profile.LearnAll(ctx)
}

// Status reports learning progress.
func (a *Agent) Status(ctx context.Context) (*Status, error) {
	samples, err := a.models.TotalSamples(ctx)
	if err != nil {
		return nil, err
	}

	var accuracy sql.NullFloat64
	err = a.pool.QueryRow(ctx, `
		SELECT AVG(CASE WHEN was_accepted = 1 THEN 1.0 ELSE 0.0 END)
		FROM recommendations
		WHERE created_at >= datetime('now', '-7 days') AND was_accepted IS NOT NULL`,
	).Scan(&accuracy)
	if err != nil {
		return nil, err
	}

	status := &Status{
		TotalSamples: samples,
		MemoryEvents: a.memory.Count(),
		AvgAccuracy:  0.5,
	}
	if accuracy.Valid {
		status.AvgAccuracy = accuracy.Float64
	}
	return status, nil
}
