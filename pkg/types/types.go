package types

import "time"

// UnknownTask is the env_id used when a document does not name its environment
const UnknownTask = "UnknownTask"

// TaskInfo represents the task-level configuration of one environment
type TaskInfo struct {
	EnvID           string `json:"env_id"`
	MaxEpisodeSteps *int64 `json:"max_episode_steps,omitempty"`
	EnvKwargs       string `json:"env_kwargs"`
}

// SourceInfo describes where the episodes of an environment came from
type SourceInfo struct {
	EnvID      string `json:"env_id"`
	SourceType string `json:"source_type"`
	SourceDesc string `json:"source_desc"`
}

// EpisodeRecord represents one recorded rollout within an environment.
// A nil EpisodeID lets the store assign the next row id.
type EpisodeRecord struct {
	EpisodeID    *int64 `json:"episode_id"`
	EpisodeSeed  *int64 `json:"episode_seed"`
	ResetKwargs  string `json:"reset_kwargs"`
	ControlMode  string `json:"control_mode"`
	ElapsedSteps int64  `json:"elapsed_steps"`
	Success      bool   `json:"success"`
	Fail         bool   `json:"fail"`
}

// EnvironmentSummary is the API view of one environment
type EnvironmentSummary struct {
	EnvID           string `json:"env_id"`
	MaxEpisodeSteps *int64 `json:"max_episode_steps,omitempty"`
	EnvKwargs       string `json:"env_kwargs"`
	SourceType      string `json:"source_type,omitempty"`
	SourceDesc      string `json:"source_desc,omitempty"`
	EpisodeTable    string `json:"episode_table"`
	TableExists     bool   `json:"table_exists"`
	EpisodeCount    int64  `json:"episode_count"`
}

// EpisodeListResponse represents the response to an episode listing
type EpisodeListResponse struct {
	EnvID    string          `json:"env_id"`
	Table    string          `json:"table"`
	Total    int64           `json:"total"`
	Limit    int             `json:"limit"`
	Episodes []EpisodeRecord `json:"episodes"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	Version      string    `json:"version"`
	Environments int       `json:"environments"`
}
