package journal

const Schema = `
CREATE TABLE IF NOT EXISTS executions (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	security_id TEXT NOT NULL,
	side TEXT NOT NULL,
	shares INTEGER NOT NULL,
	price TEXT NOT NULL,
	exec_type TEXT NOT NULL,
	order_id TEXT NOT NULL,
	exec_id TEXT NOT NULL,
	position TEXT NOT NULL,
	checksum_mismatch INTEGER NOT NULL,
	transact_time DATETIME NOT NULL,
	received_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS transitions (
	id TEXT PRIMARY KEY,
	security_id TEXT NOT NULL,
	jurisdiction TEXT NOT NULL,
	type TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status TEXT NOT NULL,
	ownership_percent REAL NOT NULL,
	threshold_percent REAL NOT NULL,
	buying_velocity REAL NOT NULL,
	projected_breach_hours REAL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_actions (
	id TEXT PRIMARY KEY,
	security_id TEXT NOT NULL,
	transition_id TEXT NOT NULL,
	action TEXT NOT NULL,
	actor TEXT NOT NULL,
	justification TEXT NOT NULL,
	from_state TEXT NOT NULL,
	to_state TEXT NOT NULL,
	severity TEXT NOT NULL,
	supervisor_review INTEGER NOT NULL,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_executions_security ON executions(security_id, received_at);
CREATE INDEX IF NOT EXISTS idx_transitions_security ON transitions(security_id, time);
CREATE INDEX IF NOT EXISTS idx_workflow_security ON workflow_actions(security_id, time);
`
