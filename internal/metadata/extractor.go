package metadata

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rossigee/episode-catalog/internal/pyjson"
	"github.com/rossigee/episode-catalog/pkg/types"
	"github.com/sirupsen/logrus"
)

// Defaults substituted for absent fields
const (
	DefaultSourceType = "Unknown"
	DefaultSourceDesc = "No description"
	emptyMap          = "{}"
)

// Extraction holds every record derived from one document
type Extraction struct {
	Task     types.TaskInfo
	Source   types.SourceInfo
	Episodes []types.EpisodeRecord
}

// Extract maps a document to its task, source and episode records
func Extract(doc Document) *Extraction {
	task := ExtractTaskInfo(doc)
	source := ExtractSourceInfo(doc)
	source.EnvID = task.EnvID

	return &Extraction{
		Task:     task,
		Source:   source,
		Episodes: ExtractEpisodes(doc),
	}
}

// EnvID resolves the environment id of a document. env_info.env_id is the
// canonical location; a top-level env_id is only consulted when env_info
// does not carry one.
func EnvID(doc Document) string {
	if raw, ok := present(doc.Object("env_info"), "env_id"); ok {
		return stringify(raw, "env_id")
	}
	if raw, ok := present(doc, "env_id"); ok {
		return stringify(raw, "env_id")
	}
	return types.UnknownTask
}

// ExtractTaskInfo derives the task-level record
func ExtractTaskInfo(doc Document) types.TaskInfo {
	envInfo := doc.Object("env_info")

	task := types.TaskInfo{
		EnvID:     EnvID(doc),
		EnvKwargs: emptyMap,
	}

	if raw, ok := present(envInfo, "max_episode_steps"); ok {
		task.MaxEpisodeSteps = optionalInt(raw, "max_episode_steps")
	}
	if raw, ok := present(envInfo, "env_kwargs"); ok {
		task.EnvKwargs = serialize(raw, "env_kwargs")
	}

	return task
}

// ExtractSourceInfo derives the source record
func ExtractSourceInfo(doc Document) types.SourceInfo {
	source := types.SourceInfo{
		EnvID:      EnvID(doc),
		SourceType: DefaultSourceType,
		SourceDesc: DefaultSourceDesc,
	}

	if raw, ok := present(doc, "source_type"); ok {
		source.SourceType = stringify(raw, "source_type")
	}
	if raw, ok := present(doc, "source_desc"); ok {
		source.SourceDesc = stringify(raw, "source_desc")
	}

	return source
}

// ExtractEpisodes derives one record per entry of the episodes array.
// Entries that are not objects are skipped.
func ExtractEpisodes(doc Document) []types.EpisodeRecord {
	raw, ok := present(doc, "episodes")
	if !ok {
		return []types.EpisodeRecord{}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		logrus.WithError(err).Warn("Ignoring episodes field that is not an array")
		return []types.EpisodeRecord{}
	}

	episodes := make([]types.EpisodeRecord, 0, len(entries))
	for i, entry := range entries {
		var fields Document
		if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
			logrus.WithField("index", i).Warn("Skipping episode entry that is not an object")
			continue
		}
		episodes = append(episodes, extractEpisode(fields))
	}

	return episodes
}

func extractEpisode(fields Document) types.EpisodeRecord {
	episode := types.EpisodeRecord{
		ResetKwargs: emptyMap,
	}

	if raw, ok := present(fields, "episode_id"); ok {
		episode.EpisodeID = optionalInt(raw, "episode_id")
	}
	if raw, ok := present(fields, "episode_seed"); ok {
		episode.EpisodeSeed = optionalInt(raw, "episode_seed")
	}
	if raw, ok := present(fields, "reset_kwargs"); ok {
		episode.ResetKwargs = serialize(raw, "reset_kwargs")
	}
	if raw, ok := present(fields, "control_mode"); ok {
		if bytes.HasPrefix(raw, []byte("{")) {
			episode.ControlMode = serialize(raw, "control_mode")
		} else {
			episode.ControlMode = stringify(raw, "control_mode")
		}
	}
	if raw, ok := present(fields, "elapsed_steps"); ok {
		if steps := optionalInt(raw, "elapsed_steps"); steps != nil {
			episode.ElapsedSteps = *steps
		}
	}
	if raw, ok := present(fields, "success"); ok {
		episode.Success = truthy(raw)
	}
	if raw, ok := present(fields, "fail"); ok {
		episode.Fail = truthy(raw)
	}

	return episode
}

// present returns the trimmed member at key; null counts as absent.
func present(doc Document, key string) (json.RawMessage, bool) {
	raw, ok := doc[key]
	if !ok {
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return nil, false
	}
	return raw, true
}

func serialize(raw json.RawMessage, field string) string {
	text, err := pyjson.Format(raw)
	if err != nil {
		// raw came out of a successful decode, so this only guards odd input
		logrus.WithError(err).WithField("field", field).Warn("Storing field verbatim")
		return string(raw)
	}
	return text
}

func stringify(raw json.RawMessage, field string) string {
	text, err := pyjson.Str(raw)
	if err != nil {
		logrus.WithError(err).WithField("field", field).Warn("Storing field verbatim")
		return string(raw)
	}
	return text
}

// optionalInt accepts integral numbers and numeric strings.
func optionalInt(raw json.RawMessage, field string) *int64 {
	var literal string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &literal); err != nil {
			return nil
		}
		literal = strings.TrimSpace(literal)
	} else {
		literal = string(raw)
	}

	if n, err := strconv.ParseInt(literal, 10, 64); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(literal, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		n := int64(f)
		return &n
	}

	logrus.WithFields(logrus.Fields{
		"field": field,
		"value": string(raw),
	}).Warn("Ignoring non-integer value")
	return nil
}

// truthy follows int(value) semantics for booleans and numbers.
func truthy(raw json.RawMessage) bool {
	switch {
	case bytes.Equal(raw, []byte("true")):
		return true
	case bytes.Equal(raw, []byte("false")):
		return false
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if f, err := n.Float64(); err == nil {
			return f != 0
		}
	}
	return false
}
