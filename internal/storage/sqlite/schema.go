package sqlite

// schema defines the catalog tables. The same schema backs the pattern,
// component, and graph stores; each subsystem opens its own database file
// so the stores stay independently loadable and rebuildable.
const schema = `
CREATE TABLE IF NOT EXISTS patterns (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	category    TEXT NOT NULL,
	signature   TEXT NOT NULL UNIQUE,
	embedding   TEXT NOT NULL,  -- JSON array
	quality     REAL NOT NULL DEFAULT 0,
	usage_count INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	tags        TEXT,           -- JSON array
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_patterns_category ON patterns(category);
CREATE INDEX IF NOT EXISTS idx_patterns_status ON patterns(status);

CREATE TABLE IF NOT EXISTS occurrences (
	pattern_id   TEXT NOT NULL REFERENCES patterns(id),
	project_id   TEXT NOT NULL,
	location     TEXT NOT NULL,
	extracted_at TIMESTAMP NOT NULL,
	PRIMARY KEY (pattern_id, project_id, location)
);

CREATE INDEX IF NOT EXISTS idx_occurrences_project ON occurrences(project_id);

CREATE TABLE IF NOT EXISTS components (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL UNIQUE,
	current        TEXT NOT NULL DEFAULT '',
	source_project TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS component_versions (
	component_id TEXT NOT NULL REFERENCES components(id),
	seq          INTEGER NOT NULL,
	version      TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	breaking     INTEGER NOT NULL DEFAULT 0,
	requires     TEXT,  -- JSON array of requirements
	interface    TEXT,  -- JSON array of exported symbol shapes
	published_at TIMESTAMP NOT NULL,
	PRIMARY KEY (component_id, version)
);

CREATE INDEX IF NOT EXISTS idx_versions_component ON component_versions(component_id, seq);

CREATE TABLE IF NOT EXISTS installations (
	component_id TEXT NOT NULL,
	version      TEXT NOT NULL,
	target_id    TEXT NOT NULL,
	installed_at TIMESTAMP NOT NULL,
	PRIMARY KEY (component_id, target_id)
);

CREATE INDEX IF NOT EXISTS idx_installations_target ON installations(target_id);

CREATE TABLE IF NOT EXISTS graph_snapshots (
	id       TEXT PRIMARY KEY,
	built_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS graph_nodes (
	snapshot_id TEXT NOT NULL REFERENCES graph_snapshots(id),
	id          TEXT NOT NULL,
	kind        TEXT NOT NULL,
	ref_id      TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, id)
);

CREATE TABLE IF NOT EXISTS graph_edges (
	snapshot_id TEXT NOT NULL REFERENCES graph_snapshots(id),
	source      TEXT NOT NULL,
	target      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	weight      REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edges_snapshot ON graph_edges(snapshot_id);
`
