package output

import (
	"encoding/json"
	"fmt"
	"os"
)

// Manifest describes how the result table is loaded downstream.
type Manifest struct {
	PrimaryKey  []string `json:"primary_key"`
	Incremental bool     `json:"incremental"`
}

// ManifestPath returns the manifest location for a result file.
func ManifestPath(resultPath string) string {
	return resultPath + ".manifest"
}

// WriteManifest writes m next to the result file.
func WriteManifest(resultPath string, m Manifest) error {
	if m.PrimaryKey == nil {
		m.PrimaryKey = []string{}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	path := ManifestPath(resultPath)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}
