package channels

import (
	"encoding/json"
	"os"
	"sort"
	"sync"

	"streamres/work/logger"
	"streamres/work/utils"

	"github.com/grafana/regexp"
)

// Channel is one static live TV channel definition. The three link fields
// are the priority-ordered static sources the assembler works through; any
// of them may be empty. FreeToAir marks channels whose links are served
// directly, never wrapped by a proxy template.
type Channel struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	Logo       string `json:"logo"`
	TvgID      string `json:"tvgId"`
	FreeToAir  bool   `json:"freeToAir"`
	Link       string `json:"link"`       // primary static link
	LinkHD     string `json:"linkHD"`     // alternate-quality static link
	BackupLink string `json:"backupLink"` // tertiary static link, TV-proxy wrapped
}

// registryFile is the on-disk JSON shape, a bare array of channels.
type registryFile []Channel

// Registry holds the static channel table loaded at startup, indexed by
// display name and by the sanitized form used in route segments. Optional
// category regex filters trim the table at load time; an invalid pattern is
// logged and ignored, matching how source filters have always degraded.
type Registry struct {
	mu        sync.RWMutex
	ordered   []Channel
	byName    map[string]*Channel
	bySafe    map[string]*Channel
	include   *regexp.Regexp
	exclude   *regexp.Regexp
	obfuscate bool
}

// NewRegistry creates an empty registry with the given category filters.
// Either pattern may be empty for "no filter".
func NewRegistry(includePattern, excludePattern string, obfuscate bool) *Registry {
	r := &Registry{
		byName:    make(map[string]*Channel),
		bySafe:    make(map[string]*Channel),
		obfuscate: obfuscate,
	}

	if includePattern != "" {
		compiled, err := regexp.Compile(includePattern)
		if err != nil {
			logger.Error("{channels - NewRegistry} invalid include pattern %q: %v", includePattern, err)
		} else {
			r.include = compiled
		}
	}
	if excludePattern != "" {
		compiled, err := regexp.Compile(excludePattern)
		if err != nil {
			logger.Error("{channels - NewRegistry} invalid exclude pattern %q: %v", excludePattern, err)
		} else {
			r.exclude = compiled
		}
	}

	return r
}

// LoadFile reads the channel table from a JSON file. A missing file leaves
// the registry empty, which only disables the live TV surface; movie and
// anime resolution keep working.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("{channels - LoadFile} channel file %s not found, live TV disabled", path)
			return nil
		}
		return err
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}

	r.Replace(file)
	logger.Info("{channels - LoadFile} loaded %d channels from %s", r.Len(), path)
	return nil
}

// Replace swaps the registry content for the given channel list, applying
// the category filters and rebuilding both indexes.
func (r *Registry) Replace(list []Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]Channel, 0, len(list))
	for _, ch := range list {
		if ch.Name == "" {
			continue
		}
		if !r.categoryAllowed(ch.Category) {
			logger.Debug("{channels - Replace} filtered out channel %s (category %s)", ch.Name, ch.Category)
			continue
		}
		kept = append(kept, ch)
	}

	// index only once the slice is final so the pointers stay valid
	r.ordered = kept
	r.byName = make(map[string]*Channel, len(kept))
	r.bySafe = make(map[string]*Channel, len(kept))
	for i := range r.ordered {
		stored := &r.ordered[i]
		r.byName[stored.Name] = stored
		r.bySafe[utils.SanitizeChannelName(stored.Name)] = stored
	}
}

// categoryAllowed applies include then exclude. Caller holds the lock.
func (r *Registry) categoryAllowed(category string) bool {
	if r.include != nil && !r.include.MatchString(category) {
		return false
	}
	if r.exclude != nil && r.exclude.MatchString(category) {
		return false
	}
	return true
}

// Get looks a channel up by display name, falling back to the sanitized
// route-segment form.
func (r *Registry) Get(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ch, ok := r.byName[name]; ok {
		return *ch, true
	}
	if ch, ok := r.bySafe[name]; ok {
		return *ch, true
	}
	if ch, ok := r.bySafe[utils.SanitizeChannelName(name)]; ok {
		return *ch, true
	}
	return Channel{}, false
}

// All returns a copy of the channel table in file order.
func (r *Registry) All() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Channel, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Categories returns the distinct channel categories, sorted.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for i := range r.ordered {
		if c := r.ordered[i].Category; c != "" {
			seen[c] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of channels after filtering.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}
