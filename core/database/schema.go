package database

import "database/sql"

// Migrations returns the full schema history for the activity database.
// The first block covers activity tables written by the tracking commands;
// the second covers tables owned by the recommendation engine.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "activity tables",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_type TEXT NOT NULL DEFAULT 'study',
	started_at TEXT NOT NULL DEFAULT (datetime('now')),
	ended_at TEXT,
	duration_minutes INTEGER
);
CREATE TABLE IF NOT EXISTS check_ins (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mood INTEGER,
	energy INTEGER,
	checked_in_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS workouts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	workout_type TEXT,
	duration_minutes INTEGER,
	logged_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS skills (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS practice_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	skill_id INTEGER REFERENCES skills(id),
	minutes INTEGER,
	logged_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS courses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	target_weekly_hours INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS assignments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	course_id INTEGER REFERENCES courses(id),
	title TEXT NOT NULL,
	due_date TEXT,
	priority INTEGER NOT NULL DEFAULT 1,
	is_completed INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS daily_goals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 1,
	title TEXT NOT NULL,
	description TEXT,
	category TEXT,
	is_completed INTEGER NOT NULL DEFAULT 0,
	completed_at TEXT,
	satisfaction_rating INTEGER
);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
CREATE INDEX IF NOT EXISTS idx_checkins_at ON check_ins(checked_in_at);
CREATE INDEX IF NOT EXISTS idx_assignments_due ON assignments(due_date);
`)
				return err
			},
		},
		{
			Version:     2,
			Description: "recommendation engine tables",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS bandit_actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action_name TEXT NOT NULL UNIQUE,
	category TEXT,
	description TEXT,
	theta BLOB,
	precision_matrix BLOB,
	total_pulls INTEGER NOT NULL DEFAULT 0,
	total_reward REAL NOT NULL DEFAULT 0,
	last_pulled TEXT,
	is_enabled INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS context_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	captured_at TEXT NOT NULL DEFAULT (datetime('now')),
	features BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS reward_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action_name TEXT NOT NULL,
	context_features BLOB,
	reward_immediate REAL NOT NULL,
	reward_daily REAL,
	reward_weekly REAL,
	reward_monthly REAL,
	reward_total REAL,
	feedback_type TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS memory_events (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata_json TEXT,
	outcome_score REAL,
	embedding BLOB,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS recommendations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action_name TEXT NOT NULL,
	expected_reward REAL NOT NULL,
	uncertainty REAL NOT NULL,
	ucb_score REAL NOT NULL,
	context_id INTEGER REFERENCES context_snapshots(id),
	explanation TEXT,
	was_accepted INTEGER,
	feedback_score INTEGER,
	outcome_score REAL,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS profile_dimensions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	dimension TEXT NOT NULL UNIQUE,
	value_json TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0.5,
	sample_count INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_reward_log_action ON reward_log(action_name, created_at);
CREATE INDEX IF NOT EXISTS idx_recommendations_created ON recommendations(created_at);
`)
				return err
			},
		},
	}
}
