package database

// Schema is the current catalog schema as a single statement block.
// It must stay in sync with the migration files; tests apply it directly
// to in-memory databases instead of running migrations.
const Schema = `
CREATE TABLE unique_content (
    content_hash        TEXT PRIMARY KEY,
    size_bytes          INTEGER NOT NULL,
    best_timestamp      TIMESTAMP,
    type_group          TEXT,
    final_relative_path TEXT,
    created_at          TIMESTAMP NOT NULL
);

CREATE TABLE path_instances (
    instance_id      INTEGER PRIMARY KEY AUTOINCREMENT,
    content_hash     TEXT NOT NULL REFERENCES unique_content(content_hash),
    absolute_path    TEXT NOT NULL UNIQUE,
    size_at_scan     INTEGER NOT NULL,
    modified_at_scan TIMESTAMP NOT NULL,
    discovered_at    TIMESTAMP NOT NULL,
    is_primary       INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_path_instances_content_hash ON path_instances(content_hash);

CREATE TABLE catalog_runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL,
    operation   TEXT NOT NULL,
    parameters  TEXT NOT NULL,
    started_at  TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    status      TEXT NOT NULL
);
`
