// Package toolfilter implements the User Tool Filter (spec §4.3): the
// per-user subset of the tool catalog based on live provider connections,
// with a short-TTL cache and provider-key alias equivalence groups.
package toolfilter

import (
	"strings"
	"sync"
	"time"

	"github.com/lutendolukhele/intentorch/internal/catalog"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

// ConnectionLookup resolves the set of provider keys a user currently has a
// live connection for. Callers supply their own implementation backed by
// whatever connection store the deployment uses; the core only needs the
// resulting key set.
type ConnectionLookup interface {
	ConnectedProviderKeys(userID string) ([]string, error)
}

// DefaultCacheTTL bounds how long a user's available-tools result is
// reused before recomputation; shorter than the session lifetime so a
// connection change is picked up promptly.
const DefaultCacheTTL = 30 * time.Second

type cacheEntry struct {
	tools     []*models.ToolDefinition
	expiresAt time.Time
}

// Filter narrows the catalog to what a given user may invoke, using the
// user's live provider connections and a canonical alias table for
// provider-key variants (e.g. multiple tenant flavors of the same
// provider).
type Filter struct {
	catalog  *catalog.Catalog
	lookup   ConnectionLookup
	ttl      time.Duration
	aliases  map[string]string // variant provider key -> canonical chain key

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New builds a Filter over the given catalog and connection lookup.
// aliasGroups maps a canonical provider key to its equivalent variant keys
// (§4.3's "equivalence-group table"); any variant is treated as satisfying
// the canonical key.
func New(cat *catalog.Catalog, lookup ConnectionLookup, aliasGroups map[string][]string) *Filter {
	f := &Filter{
		catalog: cat,
		lookup:  lookup,
		ttl:     DefaultCacheTTL,
		aliases: make(map[string]string),
		cache:   make(map[string]cacheEntry),
	}
	for canonical, variants := range aliasGroups {
		f.aliases[canonical] = canonical
		for _, v := range variants {
			f.aliases[v] = canonical
		}
	}
	return f
}

func (f *Filter) canonicalKey(providerKey string) string {
	if c, ok := f.aliases[providerKey]; ok {
		return c
	}
	return providerKey
}

// Invalidate drops the cached result for a user; called on connection
// change so the next lookup recomputes against live state.
func (f *Filter) Invalidate(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, userID)
}

// GetAvailableToolsForUser returns the subset of the catalog whose
// providerKey (after alias canonicalization) is among the user's connected
// provider keys.
func (f *Filter) GetAvailableToolsForUser(userID string) ([]*models.ToolDefinition, error) {
	f.mu.Lock()
	if entry, ok := f.cache[userID]; ok && time.Now().Before(entry.expiresAt) {
		f.mu.Unlock()
		return entry.tools, nil
	}
	f.mu.Unlock()

	keys, err := f.lookup.ConnectedProviderKeys(userID)
	if err != nil {
		return nil, err
	}
	connected := make(map[string]bool, len(keys))
	for _, k := range keys {
		connected[f.canonicalKey(k)] = true
	}

	var out []*models.ToolDefinition
	for _, d := range f.catalog.GetAll() {
		if d.ProviderKey == "" {
			continue
		}
		if connected[f.canonicalKey(d.ProviderKey)] {
			out = append(out, d)
		}
	}

	f.mu.Lock()
	f.cache[userID] = cacheEntry{tools: out, expiresAt: time.Now().Add(f.ttl)}
	f.mu.Unlock()
	return out, nil
}

// categoryKeywords maps a lowercase keyword found in the user's input to
// the category it implies (spec §4.3). Partial, by design: extend or
// replace with a learned classifier per spec §9's open question.
var categoryKeywords = map[string]models.ToolCategory{
	"email":    models.CategoryEmail,
	"mail":     models.CategoryEmail,
	"send":     models.CategoryEmail,
	"inbox":    models.CategoryEmail,
	"meeting":  models.CategoryCalendar,
	"calendar": models.CategoryCalendar,
	"schedule": models.CategoryCalendar,
	"event":    models.CategoryCalendar,
	"lead":     models.CategoryCRM,
	"deal":     models.CategoryCRM,
	"contact":  models.CategoryCRM,
	"crm":      models.CategoryCRM,
}

// DetectCategories scans free text for keyword hits and returns the
// implied categories, deduplicated. An empty result means no keyword
// matched and the caller should consider all categories.
func DetectCategories(text string) []models.ToolCategory {
	lower := strings.ToLower(text)
	seen := make(map[models.ToolCategory]bool)
	var out []models.ToolCategory
	for kw, cat := range categoryKeywords {
		if strings.Contains(lower, kw) {
			if !seen[cat] {
				seen[cat] = true
				out = append(out, cat)
			}
		}
	}
	return out
}

// GetToolsByCategoriesForUser narrows GetAvailableToolsForUser by the given
// categories. An empty categories slice means "no keyword matched" per
// spec §4.3, so every category is considered (no narrowing).
func (f *Filter) GetToolsByCategoriesForUser(userID string, categories []models.ToolCategory) ([]*models.ToolDefinition, error) {
	tools, err := f.GetAvailableToolsForUser(userID)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return tools, nil
	}
	allowed := make(map[models.ToolCategory]bool, len(categories))
	for _, c := range categories {
		allowed[c] = true
	}
	var out []*models.ToolDefinition
	for _, d := range tools {
		if allowed[d.Category] {
			out = append(out, d)
		}
	}
	return out, nil
}
