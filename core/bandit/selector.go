package bandit

import (
	"context"
	"math/rand"
	"sort"

	"github.com/breaking-byts/lifeos/core/features"
)

// Selection is one ranked recommendation with its explainability payload.
type Selection struct {
	Action         Action
	ExpectedReward float64
	Uncertainty    float64
	Score          float64
	Contributions  []Contribution // Top contributors, by absolute magnitude
}

// Selector ranks enabled actions against a context.
type Selector struct {
	store *Store
	rng   *rand.Rand
}

// NewSelector builds a selector. rng is only used for Thompson sampling;
// pass a seeded source in tests, nil for default randomness.
func NewSelector(store *Store, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Selector{store: store, rng: rng}
}

const topContributions = 5

// SelectTop scores every enabled action by upper confidence bound
// (expected reward + beta·uncertainty) and returns the best n. With
// beta = 0 this is exactly greedy ranking by expected reward. Ties keep
// catalog order. No enabled actions yields an empty slice, not an error.
func (s *Selector) SelectTop(ctx context.Context, c *features.Context, n int, beta float64) ([]Selection, error) {
	actions, err := s.store.EnabledActions(ctx)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return []Selection{}, nil
	}

	x := c.Vector64()
	selections := make([]Selection, 0, len(actions))

	for _, action := range actions {
		model, err := s.store.LoadModel(ctx, action.Name)
		if err != nil {
			return nil, err
		}

		expected := model.Predict(x)
		uncertainty := model.Uncertainty(x)

		contributions := model.Contributions(x)
		if len(contributions) > topContributions {
			contributions = contributions[:topContributions]
		}

		selections = append(selections, Selection{
			Action:         action,
			ExpectedReward: expected,
			Uncertainty:    uncertainty,
			Score:          expected + beta*uncertainty,
			Contributions:  contributions,
		})
	}

	sort.SliceStable(selections, func(i, j int) bool {
		return selections[i].Score > selections[j].Score
	})

	if n < len(selections) {
		selections = selections[:n]
	}
	return selections, nil
}

// SelectThompson picks one action by sampling each posterior and taking
// the argmax. Non-deterministic unless the selector was built with a
// seeded source.
func (s *Selector) SelectThompson(ctx context.Context, c *features.Context) (*Selection, error) {
	actions, err := s.store.EnabledActions(ctx)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, nil
	}

	x := c.Vector64()

	var best *Selection
	for _, action := range actions {
		model, err := s.store.LoadModel(ctx, action.Name)
		if err != nil {
			return nil, err
		}

		sample := model.ThompsonSample(x, s.rng)
		if best != nil && sample <= best.Score {
			continue
		}

		contributions := model.Contributions(x)
		if len(contributions) > topContributions {
			contributions = contributions[:topContributions]
		}

		best = &Selection{
			Action:         action,
			ExpectedReward: model.Predict(x),
			Uncertainty:    model.Uncertainty(x),
			Score:          sample,
			Contributions:  contributions,
		}
	}

	return best, nil
}
