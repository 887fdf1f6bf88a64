package bandit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/breaking-byts/lifeos/core/database"
)

// Action is a named candidate recommendation with lifetime counters.
// Actions are seeded as configuration data, never created by the engine.
type Action struct {
	ID          int64
	Name        string
	Category    string
	Description string
	TotalPulls  int64
	TotalReward float64
	Enabled     bool
}

// Store persists per-action model state and serializes read-modify-write
// updates so overlapping feedback events cannot lose each other's work.
type Store struct {
	pool   *database.Pool
	logger *slog.Logger

	priorPrecision float64
	noisePrecision float64

	locks   map[string]*sync.Mutex
	locksMu sync.Mutex
}

type StoreConfig struct {
	PriorPrecision float64
	NoisePrecision float64
	Logger         *slog.Logger // Optional, uses slog.Default() if nil
}

func NewStore(pool *database.Pool, cfg StoreConfig) *Store {
	if cfg.PriorPrecision == 0 {
		cfg.PriorPrecision = DefaultPriorPrecision
	}
	if cfg.NoisePrecision == 0 {
		cfg.NoisePrecision = DefaultNoisePrecision
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		pool:           pool,
		logger:         cfg.Logger,
		priorPrecision: cfg.PriorPrecision,
		noisePrecision: cfg.NoisePrecision,
		locks:          make(map[string]*sync.Mutex),
	}
}

func (s *Store) actionLock(name string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[name]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[name] = mu
	}
	return mu
}

// EnabledActions returns enabled actions in catalog order.
func (s *Store) EnabledActions(ctx context.Context) ([]Action, error) {
	return s.queryActions(ctx,
		`SELECT id, action_name, category, description, total_pulls, total_reward, is_enabled
		 FROM bandit_actions WHERE is_enabled = 1 ORDER BY id`)
}

// ActionsByCategory returns enabled actions in one category.
func (s *Store) ActionsByCategory(ctx context.Context, category string) ([]Action, error) {
	return s.queryActions(ctx,
		`SELECT id, action_name, category, description, total_pulls, total_reward, is_enabled
		 FROM bandit_actions WHERE is_enabled = 1 AND category = ? ORDER BY id`, category)
}

// AllActions returns every action regardless of enabled state.
func (s *Store) AllActions(ctx context.Context) ([]Action, error) {
	return s.queryActions(ctx,
		`SELECT id, action_name, category, description, total_pulls, total_reward, is_enabled
		 FROM bandit_actions ORDER BY id`)
}

func (s *Store) queryActions(ctx context.Context, query string, args ...any) ([]Action, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		var category, description sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &category, &description, &a.TotalPulls, &a.TotalReward, &a.Enabled); err != nil {
			return nil, err
		}
		a.Category = category.String
		a.Description = description.String
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// LoadModel returns the stored posterior for an action, or a fresh prior
// when nothing is stored. Corrupt blobs also fall back to the prior; that
// silently discards learned weights, so it is logged.
func (s *Store) LoadModel(ctx context.Context, actionName string) (*Model, error) {
	var theta, precision []byte
	err := s.pool.QueryRow(ctx,
		`SELECT theta, precision_matrix FROM bandit_actions WHERE action_name = ?`,
		actionName,
	).Scan(&theta, &precision)
	if errors.Is(err, sql.ErrNoRows) {
		return NewModel(s.priorPrecision, s.noisePrecision), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", actionName, err)
	}

	if theta == nil || precision == nil {
		return NewModel(s.priorPrecision, s.noisePrecision), nil
	}

	model, err := UnmarshalState(theta, precision, s.priorPrecision, s.noisePrecision)
	if err != nil {
		s.logger.Warn("discarding corrupt model state",
			"action", actionName,
			"error", err,
		)
		return NewModel(s.priorPrecision, s.noisePrecision), nil
	}
	return model, nil
}

// SaveModel persists an action's posterior and stamps last_pulled.
func (s *Store) SaveModel(ctx context.Context, actionName string, model *Model) error {
	theta, precision := model.MarshalState()
	_, err := s.pool.Exec(ctx,
		`UPDATE bandit_actions
		 SET theta = ?, precision_matrix = ?, last_pulled = datetime('now')
		 WHERE action_name = ?`,
		theta, precision, actionName,
	)
	if err != nil {
		return fmt.Errorf("save model %q: %w", actionName, err)
	}
	return nil
}

// Update applies one observed reward to an action's model under the
// per-action lock, then bumps its pull counters.
func (s *Store) Update(ctx context.Context, actionName string, x []float64, reward float64) error {
	mu := s.actionLock(actionName)
	mu.Lock()
	defer mu.Unlock()

	model, err := s.LoadModel(ctx, actionName)
	if err != nil {
		return err
	}

	model.Update(x, reward)

	if err := s.SaveModel(ctx, actionName, model); err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE bandit_actions
		 SET total_pulls = total_pulls + 1,
		     total_reward = total_reward + ?
		 WHERE action_name = ?`,
		reward, actionName,
	)
	if err != nil {
		return fmt.Errorf("update counters %q: %w", actionName, err)
	}
	return nil
}

// TotalSamples returns the number of observations across all actions.
func (s *Store) TotalSamples(ctx context.Context) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_pulls), 0) FROM bandit_actions`,
	).Scan(&total)
	return total, err
}

// SetEnabled toggles an action in the catalog.
func (s *Store) SetEnabled(ctx context.Context, actionName string, enabled bool) error {
	result, err := s.pool.Exec(ctx,
		`UPDATE bandit_actions SET is_enabled = ? WHERE action_name = ?`,
		enabled, actionName,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("unknown action %q", actionName)
	}
	return nil
}
