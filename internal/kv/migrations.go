package kv

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	pk    TEXT NOT NULL,
	sk    TEXT NOT NULL,
	attrs TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (pk, sk)
) WITHOUT ROWID;

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE items ADD COLUMN updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP;

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
