package docset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestFile is the metadata file Dash User Contributions expects per docset.
const ManifestFile = "docset.json"

// Author is the docset maintainer.
type Author struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Manifest is the content of docset.json.
type Manifest struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Archive string   `json:"archive"`
	Author  Author   `json:"author"`
	Aliases []string `json:"aliases,omitempty"`
}

// WriteManifest writes docset.json into dir with two-space indentation.
func WriteManifest(dir string, m Manifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { // #nosec G306 -- committed file
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest reads docset.json from dir.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile)) // #nosec G304 -- aggregator checkout
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
