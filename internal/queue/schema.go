package queue

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner TEXT NOT NULL,
    file TEXT,
    url TEXT,
    result_text TEXT,
    result_subtitles TEXT,
    done INTEGER NOT NULL DEFAULT 0,
    attempts INTEGER NOT NULL DEFAULT 0,
    notify_attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    created_at TEXT NOT NULL,
    started_at TEXT,
    finished_at TEXT,
    failed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_tasks_eligible
    ON tasks (created_at)
    WHERE started_at IS NULL AND done = 0 AND failed_at IS NULL;
`
