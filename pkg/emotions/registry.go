package emotions

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultTag is the fallback emotion when no manifest names one.
const DefaultTag = "neutral"

// Registry holds the image sets known to the avatar, keyed by tag.
type Registry struct {
	mu         sync.RWMutex
	sets       map[string]ImageSet
	defaultTag string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sets:       make(map[string]ImageSet),
		defaultTag: DefaultTag,
	}
}

// LoadBuiltIn loads all embedded manifests into the registry.
func (r *Registry) LoadBuiltIn() error {
	names, err := ListEmbedded()
	if err != nil {
		return err
	}
	for _, name := range names {
		m, err := LoadEmbedded(name)
		if err != nil {
			return fmt.Errorf("failed to load manifest %q: %w", name, err)
		}
		r.AddManifest(m)
	}
	return nil
}

// LoadCustomDir loads manifests from a directory. Entries override
// previously registered tags.
func (r *Registry) LoadCustomDir(dir string) error {
	manifests, err := LoadFromDirectory(dir)
	if err != nil {
		return err
	}
	for _, m := range manifests {
		r.AddManifest(m)
	}
	return nil
}

// AddManifest registers every image set of m. A manifest default tag
// replaces the registry's.
func (r *Registry) AddManifest(m *Manifest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, set := range m.Emotions {
		r.sets[set.Tag] = set
	}
	if m.DefaultTag != "" {
		r.defaultTag = m.DefaultTag
	}
}

// Register adds an image set to the registry.
func (r *Registry) Register(set ImageSet) error {
	tag := Normalize(set.Tag)
	if tag == "" || !set.Complete() {
		return fmt.Errorf("%w: %q", ErrInvalidEmotion, set.Tag)
	}
	set.Tag = tag

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[tag] = set
	return nil
}

// Unregister removes an image set.
func (r *Registry) Unregister(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets, Normalize(tag))
}

// Get retrieves an image set by tag. Bracketed and bare tags are both accepted.
func (r *Registry) Get(tag string) (ImageSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sets[Normalize(tag)]
	if !ok {
		return ImageSet{}, fmt.Errorf("%w: %s", ErrNotFound, tag)
	}
	return set, nil
}

// DefaultTag returns the registry's fallback emotion.
func (r *Registry) DefaultTag() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultTag
}

// List returns all registered tags, sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.sets))
	for tag := range r.sets {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Count returns the number of registered image sets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sets)
}

// Search finds tags whose name or description contains query, case-insensitively.
func (r *Registry) Search(query string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(query)
	var matches []string
	for tag, set := range r.sets {
		if strings.Contains(tag, q) || strings.Contains(strings.ToLower(set.Description), q) {
			matches = append(matches, tag)
		}
	}
	sort.Strings(matches)
	return matches
}

// Resolve looks up tag, falling back to defaultTag when it is unknown or
// empty. It returns the image set and the tag actually used. Only a missing
// default is an error, wrapping ErrDefaultMissing.
func Resolve(l Lookup, tag, defaultTag string) (ImageSet, string, error) {
	if id := Normalize(tag); id != "" {
		if set, err := l.Get(id); err == nil {
			return set, id, nil
		}
	}
	def := Normalize(defaultTag)
	set, err := l.Get(def)
	if err != nil {
		return ImageSet{}, "", fmt.Errorf("%w: %q (requested %q)", ErrDefaultMissing, defaultTag, tag)
	}
	return set, def, nil
}
