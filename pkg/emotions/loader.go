package emotions

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed data/*.json
var embeddedManifests embed.FS

// LoadEmbedded loads a manifest from the embedded data.
func LoadEmbedded(name string) (*Manifest, error) {
	filename := fmt.Sprintf("data/%s.json", name)
	data, err := embeddedManifests.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("manifest %q not found: %w", name, err)
	}
	return ParseManifest(data)
}

// ListEmbedded returns the names of all embedded manifests.
func ListEmbedded() ([]string, error) {
	entries, err := embeddedManifests.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded manifests: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	return names, nil
}

// LoadFromFile loads a manifest from a JSON file on disk.
func LoadFromFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// LoadFromDirectory loads every *.json manifest in dir, in name order.
func LoadFromDirectory(dir string) ([]*Manifest, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list manifest files: %w", err)
	}

	var manifests []*Manifest
	for _, file := range files {
		m, err := LoadFromFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// ParseManifest decodes and validates a manifest. Relative image references
// are joined onto BaseURL.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest JSON: %w", err)
	}
	if m.DefaultTag != "" {
		tag := Normalize(m.DefaultTag)
		if tag == "" {
			return nil, fmt.Errorf("%w: default tag %q", ErrInvalidEmotion, m.DefaultTag)
		}
		m.DefaultTag = tag
	}

	for i := range m.Emotions {
		set := &m.Emotions[i]
		tag := Normalize(set.Tag)
		if tag == "" {
			return nil, fmt.Errorf("%w: tag %q", ErrInvalidEmotion, set.Tag)
		}
		set.Tag = tag
		if !set.Complete() {
			return nil, fmt.Errorf("%w: %q is missing image variants", ErrInvalidEmotion, tag)
		}
		set.EyesOpenMouthOpen = joinRef(m.BaseURL, set.EyesOpenMouthOpen)
		set.EyesOpenMouthClosed = joinRef(m.BaseURL, set.EyesOpenMouthClosed)
		set.EyesClosedMouthOpen = joinRef(m.BaseURL, set.EyesClosedMouthOpen)
		set.EyesClosedMouthClosed = joinRef(m.BaseURL, set.EyesClosedMouthClosed)
	}
	return &m, nil
}

func joinRef(base, ref string) string {
	if base == "" || strings.HasPrefix(ref, "/") || strings.Contains(ref, "://") {
		return ref
	}
	return strings.TrimSuffix(base, "/") + "/" + ref
}
