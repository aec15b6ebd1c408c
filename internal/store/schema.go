package store

const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    tokens INTEGER NOT NULL DEFAULT 0,
    has_started INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS profiles (
    profile_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    nickname TEXT,
    age_context TEXT NOT NULL DEFAULT 'cloudy'
        CHECK (age_context IN ('adult', 'regressive', 'cloudy')),
    intimacy_opt_in INTEGER NOT NULL DEFAULT 0,
    kink_opt_in INTEGER NOT NULL DEFAULT 0,
    explicit_opt_in INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_profiles_user ON profiles(user_id, is_active);

CREATE TABLE IF NOT EXISTS profile_switch_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    profile_id INTEGER NOT NULL REFERENCES profiles(profile_id) ON DELETE CASCADE,
    switched_at DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS consent_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    category TEXT NOT NULL,
    new_value INTEGER NOT NULL,
    logged_at DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS assigned_tasks (
    profile_id INTEGER NOT NULL REFERENCES profiles(profile_id) ON DELETE CASCADE,
    date TEXT NOT NULL,
    task_key TEXT NOT NULL,
    category TEXT NOT NULL,
    is_required INTEGER NOT NULL DEFAULT 0,
    hidden_until_complete INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (profile_id, date, task_key)
);

CREATE TABLE IF NOT EXISTS task_history (
    profile_id INTEGER NOT NULL REFERENCES profiles(profile_id) ON DELETE CASCADE,
    date TEXT NOT NULL,
    task_key TEXT NOT NULL,
    completed INTEGER NOT NULL DEFAULT 0,
    tokens_awarded INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (profile_id, date, task_key)
);

CREATE TABLE IF NOT EXISTS profile_streaks (
    profile_id INTEGER PRIMARY KEY REFERENCES profiles(profile_id) ON DELETE CASCADE,
    required_streak INTEGER NOT NULL DEFAULT 0,
    intimacy_streak INTEGER NOT NULL DEFAULT 0,
    kink_streak INTEGER NOT NULL DEFAULT 0,
    explicit_streak INTEGER NOT NULL DEFAULT 0,
    regressive_streak INTEGER NOT NULL DEFAULT 0,
    last_required_day TEXT,
    last_intimacy_day TEXT,
    last_kink_day TEXT,
    last_explicit_day TEXT,
    last_regressive_day TEXT
);

CREATE TABLE IF NOT EXISTS redemption_history (
    id TEXT PRIMARY KEY,
    profile_id INTEGER NOT NULL REFERENCES profiles(profile_id) ON DELETE CASCADE,
    item_key TEXT NOT NULL,
    reward_code TEXT NOT NULL UNIQUE,
    delivered INTEGER NOT NULL DEFAULT 0,
    delivered_at DATETIME,
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_redemptions_pending ON redemption_history(delivered, created_at);

CREATE TABLE IF NOT EXISTS task_reset_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    last_reset_date TEXT
);
`
