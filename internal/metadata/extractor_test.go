package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rossigee/episode-catalog/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleDocument = `{
	"env_info": {"env_id": "A-1", "max_episode_steps": 50, "env_kwargs": {"x": 1}},
	"source_type": "demo",
	"source_desc": "d",
	"episodes": [
		{"episode_id": 1, "episode_seed": 7, "reset_kwargs": {}, "control_mode": "pd_joint",
		 "elapsed_steps": 10, "success": true, "fail": false}
	]
}`

func mustParse(t *testing.T, data string) Document {
	t.Helper()
	doc, err := Parse([]byte(data))
	require.NoError(t, err)
	return doc
}

func TestExtract_Example(t *testing.T) {
	result := Extract(mustParse(t, exampleDocument))

	assert.Equal(t, "A-1", result.Task.EnvID)
	require.NotNil(t, result.Task.MaxEpisodeSteps)
	assert.Equal(t, int64(50), *result.Task.MaxEpisodeSteps)
	assert.Equal(t, `{"x": 1}`, result.Task.EnvKwargs)

	assert.Equal(t, types.SourceInfo{EnvID: "A-1", SourceType: "demo", SourceDesc: "d"}, result.Source)

	require.Len(t, result.Episodes, 1)
	ep := result.Episodes[0]
	require.NotNil(t, ep.EpisodeID)
	assert.Equal(t, int64(1), *ep.EpisodeID)
	require.NotNil(t, ep.EpisodeSeed)
	assert.Equal(t, int64(7), *ep.EpisodeSeed)
	assert.Equal(t, "{}", ep.ResetKwargs)
	assert.Equal(t, "pd_joint", ep.ControlMode)
	assert.Equal(t, int64(10), ep.ElapsedSteps)
	assert.True(t, ep.Success)
	assert.False(t, ep.Fail)
}

func TestExtract_EmptyDocumentDefaults(t *testing.T) {
	result := Extract(mustParse(t, `{}`))

	assert.Equal(t, types.UnknownTask, result.Task.EnvID)
	assert.Nil(t, result.Task.MaxEpisodeSteps)
	assert.Equal(t, "{}", result.Task.EnvKwargs)
	assert.Equal(t, types.UnknownTask, result.Source.EnvID)
	assert.Equal(t, DefaultSourceType, result.Source.SourceType)
	assert.Equal(t, DefaultSourceDesc, result.Source.SourceDesc)
	assert.NotNil(t, result.Episodes)
	assert.Empty(t, result.Episodes)
}

func TestExtractEpisodes_Defaults(t *testing.T) {
	episodes := ExtractEpisodes(mustParse(t, `{"episodes": [{"episode_id": 3}]}`))

	require.Len(t, episodes, 1)
	ep := episodes[0]
	assert.Equal(t, int64(3), *ep.EpisodeID)
	assert.Nil(t, ep.EpisodeSeed)
	assert.Equal(t, "{}", ep.ResetKwargs)
	assert.Equal(t, "", ep.ControlMode)
	assert.Equal(t, int64(0), ep.ElapsedSteps)
	assert.False(t, ep.Success)
	assert.False(t, ep.Fail)
}

func TestExtractEpisodes_MissingEpisodeID(t *testing.T) {
	episodes := ExtractEpisodes(mustParse(t, `{"episodes": [{"control_mode": "pd_ee_delta_pose"}]}`))

	require.Len(t, episodes, 1)
	assert.Nil(t, episodes[0].EpisodeID)
}

func TestExtractEpisodes_PassThrough(t *testing.T) {
	doc := mustParse(t, `{"episodes": [
		{"episode_id": 2.0, "control_mode": {"arm": "pd_joint_pos", "gripper": "pd_joint_pos"},
		 "reset_kwargs": {"seed": 5, "options": {"reconfigure": true}},
		 "elapsed_steps": "12", "success": 1, "fail": 0},
		{"episode_id": 4, "control_mode": 17, "success": "yes"},
		{"episode_id": 5, "control_mode": true, "reset_kwargs": [1, 2]}
	]}`)

	episodes := ExtractEpisodes(doc)
	require.Len(t, episodes, 3)

	assert.Equal(t, int64(2), *episodes[0].EpisodeID)
	assert.Equal(t, `{"arm": "pd_joint_pos", "gripper": "pd_joint_pos"}`, episodes[0].ControlMode)
	assert.Equal(t, `{"seed": 5, "options": {"reconfigure": true}}`, episodes[0].ResetKwargs)
	assert.Equal(t, int64(12), episodes[0].ElapsedSteps)
	assert.True(t, episodes[0].Success)
	assert.False(t, episodes[0].Fail)

	assert.Equal(t, "17", episodes[1].ControlMode)
	assert.False(t, episodes[1].Success)

	assert.Equal(t, "True", episodes[2].ControlMode)
	assert.Equal(t, `[1, 2]`, episodes[2].ResetKwargs)
}

func TestExtractEpisodes_Flags(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		success bool
		fail    bool
	}{
		{name: "booleans", entry: `{"success": true, "fail": false}`, success: true, fail: false},
		{name: "integers", entry: `{"success": 0, "fail": 2}`, success: false, fail: true},
		{name: "floats", entry: `{"success": 0.5, "fail": 0.0}`, success: true, fail: false},
		{name: "numeric strings", entry: `{"success": "1", "fail": "0"}`, success: true, fail: false},
		{name: "other strings", entry: `{"success": "yes", "fail": "true"}`, success: false, fail: false},
		{name: "null", entry: `{"success": null, "fail": null}`, success: false, fail: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			episodes := ExtractEpisodes(mustParse(t, `{"episodes": [`+tt.entry+`]}`))
			require.Len(t, episodes, 1)
			assert.Equal(t, tt.success, episodes[0].Success)
			assert.Equal(t, tt.fail, episodes[0].Fail)
		})
	}
}

func TestExtractEpisodes_MalformedContainer(t *testing.T) {
	assert.Empty(t, ExtractEpisodes(mustParse(t, `{"episodes": {"episode_id": 1}}`)))
	assert.Empty(t, ExtractEpisodes(mustParse(t, `{"episodes": null}`)))

	episodes := ExtractEpisodes(mustParse(t, `{"episodes": [1, "two", {"episode_id": 3}, null]}`))
	require.Len(t, episodes, 1)
	assert.Equal(t, int64(3), *episodes[0].EpisodeID)
}

func TestEnvID_LookupPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		expected string
	}{
		{name: "nested", doc: `{"env_info": {"env_id": "PickCube-v1"}}`, expected: "PickCube-v1"},
		{name: "nested wins", doc: `{"env_id": "Top-v0", "env_info": {"env_id": "Nested-v1"}}`, expected: "Nested-v1"},
		{name: "top level fallback", doc: `{"env_id": "Top-v0", "env_info": {}}`, expected: "Top-v0"},
		{name: "null is absent", doc: `{"env_info": {"env_id": null}}`, expected: types.UnknownTask},
		{name: "env_info not an object", doc: `{"env_info": "oops"}`, expected: types.UnknownTask},
		{name: "non string", doc: `{"env_info": {"env_id": 12}}`, expected: "12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EnvID(mustParse(t, tt.doc)))
		})
	}
}

func TestExtractTaskInfo_NonIntegerSteps(t *testing.T) {
	task := ExtractTaskInfo(mustParse(t, `{"env_info": {"env_id": "A", "max_episode_steps": 12.5}}`))
	assert.Nil(t, task.MaxEpisodeSteps)

	task = ExtractTaskInfo(mustParse(t, `{"env_info": {"env_id": "A", "max_episode_steps": null}}`))
	assert.Nil(t, task.MaxEpisodeSteps)
}

func TestExtract_SourceFollowsTaskEnvID(t *testing.T) {
	result := Extract(mustParse(t, `{"env_info": {"env_id": "StackCube-v1"}, "source_type": "motionplanning"}`))

	assert.Equal(t, "StackCube-v1", result.Source.EnvID)
	assert.Equal(t, "motionplanning", result.Source.SourceType)
	assert.Equal(t, DefaultSourceDesc, result.Source.SourceDesc)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("{\n  \"env_info\": ,\n}"))
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 2, parseErr.Line)

	_, err = Parse([]byte(`[1, 2]`))
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, err.Error(), "must be an object")

	_, err = Parse([]byte(`null`))
	require.True(t, errors.As(err, &parseErr))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "trajectory.json")
	require.NoError(t, os.WriteFile(good, []byte(exampleDocument), 0o600))

	doc, err := Load(good)
	require.NoError(t, err)
	assert.True(t, doc.Has("episodes"))
	assert.False(t, doc.Has("missing"))

	bad := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"env_info": `), 0o600))
	_, err = Load(bad)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, bad, parseErr.FilePath)
	assert.Contains(t, err.Error(), bad)

	_, err = Load(filepath.Join(dir, "absent.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
