// Package storage provides the SQLite catalog of task, source and episode records.
package storage

import (
	"fmt"
	"strings"
)

// Table names of the fixed part of the schema
const (
	TaskInfoTable      = "task_info"
	SourceInfoTable    = "source_info"
	EpisodeTablePrefix = "episodes_"
)

// BaseSchema creates the tables shared by every environment
const BaseSchema = `
CREATE TABLE IF NOT EXISTS task_info (
	env_id TEXT PRIMARY KEY,
	max_episode_steps INTEGER,
	env_kwargs TEXT
);

CREATE TABLE IF NOT EXISTS source_info (
	env_id TEXT PRIMARY KEY,
	source_type TEXT,
	source_desc TEXT
);
`

const episodeTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
	episode_id INTEGER PRIMARY KEY,
	episode_seed INTEGER,
	reset_kwargs TEXT,
	control_mode TEXT,
	elapsed_steps INTEGER,
	success INTEGER,
	fail INTEGER
)`

// SanitizeEnvID replaces every character outside [A-Za-z0-9_] with an
// underscore so the result can be embedded in a table name.
func SanitizeEnvID(envID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, envID)
}

// EpisodeTableName returns the per-environment episode table for envID
func EpisodeTableName(envID string) string {
	return EpisodeTablePrefix + SanitizeEnvID(envID)
}

// quoteIdent quotes an SQL identifier
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func episodeTableSQL(table string) string {
	return fmt.Sprintf(episodeTableDDL, quoteIdent(table))
}
