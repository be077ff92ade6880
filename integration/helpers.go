//go:build integration
// +build integration

package integration

import (
	"encoding/json"
	"fmt"
)

// metadataDocument builds a metadata file for envID with n episodes
func metadataDocument(envID string, n int) ([]byte, error) {
	episodes := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		episodes = append(episodes, map[string]any{
			"episode_id":    i,
			"episode_seed":  1000 + i,
			"reset_kwargs":  map[string]any{"seed": 1000 + i},
			"control_mode":  "pd_ee_delta_pose",
			"elapsed_steps": 100,
			"success":       i%3 == 0,
			"fail":          i%3 == 1,
		})
	}

	doc := map[string]any{
		"env_info": map[string]any{
			"env_id":            envID,
			"max_episode_steps": 100,
			"env_kwargs":        map[string]any{"obs_mode": "rgbd", "sim_backend": "gpu"},
		},
		"source_type": "motionplanning",
		"source_desc": fmt.Sprintf("integration fixture for %s", envID),
		"episodes":    episodes,
	}
	return json.Marshal(doc)
}
