package storage

const schema = `
PRAGMA foreign_keys = ON;

-- Learners. Each learner owns exactly one knowledge set.
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    native_language TEXT NOT NULL,
    level TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);

-- Card content and memory state are stored as JSON documents; question is
-- duplicated out of content to enforce uniqueness within a learner's set.
CREATE TABLE IF NOT EXISTS study_cards (
    card_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    question TEXT NOT NULL,
    content TEXT NOT NULL,
    memory TEXT NOT NULL,

    UNIQUE(user_id, question),
    FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

-- One row per learner per UTC calendar day.
CREATE TABLE IF NOT EXISTS lesson_history (
    user_id TEXT NOT NULL,
    day TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    avg_stability REAL,
    avg_difficulty REAL,
    total_words INTEGER NOT NULL,
    known_words INTEGER NOT NULL,
    new_words INTEGER NOT NULL,
    in_progress_words INTEGER NOT NULL,
    low_stability_words INTEGER NOT NULL,
    high_difficulty_words INTEGER NOT NULL,
    lessons_completed INTEGER NOT NULL,
    lesson_duration_ns INTEGER NOT NULL,

    PRIMARY KEY(user_id, day),
    FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

-- Deck sources: a local directory or a git repository URL.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    location TEXT NOT NULL,
    last_scanned DATETIME,

    UNIQUE(user_id, location),
    FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

-- Which card each imported deck entry became, keyed by entry fingerprint.
CREATE TABLE IF NOT EXISTS source_cards (
    source_id INTEGER NOT NULL,
    fingerprint TEXT NOT NULL,
    card_id TEXT NOT NULL,

    PRIMARY KEY(source_id, fingerprint),
    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
);
`
