package store

const Schema = `
CREATE TABLE IF NOT EXISTS history (
	id INTEGER NOT NULL,
	client_id TEXT NOT NULL,
	content TEXT NOT NULL,
	content_id INTEGER NOT NULL,
	success BOOLEAN NOT NULL,
	timestamp DATETIME NOT NULL,
	PRIMARY KEY (client_id, id)
);

CREATE INDEX IF NOT EXISTS idx_history_client ON history(client_id, timestamp);
`
