package secondary

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/teslashibe/go-avatar/pkg/emotions"
)

//go:embed data/*.json
var embeddedManifests embed.FS

// Manifest is the on-disk JSON structure of an animation table file.
type Manifest struct {
	BaseURL    string `json:"base_url,omitempty"`
	DefaultTag string `json:"default_tag,omitempty"`
	Animations []Set  `json:"animations"`
}

// MemoryRegistry is an in-memory Registry keyed by bare emotion tag.
type MemoryRegistry struct {
	mu         sync.RWMutex
	sets       map[string]Set
	defaultTag string
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sets:       make(map[string]Set),
		defaultTag: emotions.DefaultTag,
	}
}

// Register validates and adds a table, replacing any previous one for its tag.
func (r *MemoryRegistry) Register(set Set) error {
	if err := normalize(&set); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[set.Tag] = set
	return nil
}

// Lookup implements Registry.
func (r *MemoryRegistry) Lookup(tag string) (Set, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sets[emotions.Normalize(tag)]
	return set, ok
}

// DefaultTag returns the fallback table's tag.
func (r *MemoryRegistry) DefaultTag() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultTag
}

// List returns all registered tags, sorted alphabetically.
func (r *MemoryRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.sets))
	for tag := range r.sets {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Count returns the number of registered tables.
func (r *MemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sets)
}

// AddManifest registers every table of m.
func (r *MemoryRegistry) AddManifest(m *Manifest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, set := range m.Animations {
		r.sets[set.Tag] = set
	}
	if m.DefaultTag != "" {
		r.defaultTag = m.DefaultTag
	}
}

// LoadBuiltIn loads the embedded animation tables.
func (r *MemoryRegistry) LoadBuiltIn() error {
	entries, err := embeddedManifests.ReadDir("data")
	if err != nil {
		return fmt.Errorf("failed to list embedded animations: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := embeddedManifests.ReadFile("data/" + entry.Name())
		if err != nil {
			return err
		}
		m, err := ParseManifest(data)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", entry.Name(), err)
		}
		r.AddManifest(m)
	}
	return nil
}

// LoadCustomDir loads every *.json manifest in dir.
func (r *MemoryRegistry) LoadCustomDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to list animation files: %w", err)
	}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		m, err := ParseManifest(data)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
		r.AddManifest(m)
	}
	return nil
}

// ParseManifest decodes and validates an animation manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse animation JSON: %w", err)
	}
	if m.DefaultTag != "" {
		m.DefaultTag = emotions.Normalize(m.DefaultTag)
	}
	for i := range m.Animations {
		set := &m.Animations[i]
		if err := normalize(set); err != nil {
			return nil, err
		}
		for j := range set.Entries {
			set.Entries[j].AssetRef = joinRef(m.BaseURL, set.Entries[j].AssetRef)
		}
	}
	return &m, nil
}

func normalize(set *Set) error {
	tag := emotions.Normalize(set.Tag)
	if tag == "" {
		return fmt.Errorf("%w: tag %q", ErrInvalidSet, set.Tag)
	}
	set.Tag = tag
	if set.EmptyWeight < 0 {
		return fmt.Errorf("%w: %s.empty_weight must be >= 0", ErrInvalidSet, tag)
	}
	for i, e := range set.Entries {
		if e.AssetRef == "" {
			return fmt.Errorf("%w: %s.entries[%d] has no asset_ref", ErrInvalidSet, tag, i)
		}
		if e.Weight < 0 || e.DurationFrames < 0 {
			return fmt.Errorf("%w: %s.entries[%d] weight and duration must be >= 0", ErrInvalidSet, tag, i)
		}
	}
	return nil
}

func joinRef(base, ref string) string {
	if base == "" || strings.HasPrefix(ref, "/") || strings.Contains(ref, "://") {
		return ref
	}
	return strings.TrimSuffix(base, "/") + "/" + ref
}
