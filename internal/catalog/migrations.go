package catalog

type migration struct {
	version string
	sql     string
}

var migrations = []migration{
	{
		version: "0001_champions",
		sql: `CREATE TABLE IF NOT EXISTS champions (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            audio_url TEXT NOT NULL,
            discovered_at TEXT NOT NULL
        )`,
	},
}
