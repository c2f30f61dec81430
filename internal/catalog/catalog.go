// Package catalog implements the Tool Catalog (spec §4.2): a flat list of
// ToolDefinitions loaded from declarative configuration at startup, indexed
// by name, category, and provider key.
package catalog

import (
	"fmt"
	"sync"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// Catalog is immutable after Load completes; all accessors are safe for
// concurrent use.
type Catalog struct {
	mu          sync.RWMutex
	byName      map[string]*models.ToolDefinition
	byCategory  map[models.ToolCategory][]*models.ToolDefinition
	byProvider  map[string][]*models.ToolDefinition
	all         []*models.ToolDefinition
}

// New builds a Catalog from a slice of definitions, indexing them by name,
// category, and provider key. A duplicate tool name is an error: the
// declarative config is expected to be authoritative and non-overlapping.
func New(defs []models.ToolDefinition) (*Catalog, error) {
	c := &Catalog{
		byName:     make(map[string]*models.ToolDefinition, len(defs)),
		byCategory: make(map[models.ToolCategory][]*models.ToolDefinition),
		byProvider: make(map[string][]*models.ToolDefinition),
		all:        make([]*models.ToolDefinition, 0, len(defs)),
	}
	for i := range defs {
		d := defs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("catalog: tool at index %d has empty name", i)
		}
		if _, exists := c.byName[d.Name]; exists {
			return nil, fmt.Errorf("catalog: duplicate tool name %q", d.Name)
		}
		cp := d
		c.byName[d.Name] = &cp
		c.byCategory[d.Category] = append(c.byCategory[d.Category], &cp)
		if d.ProviderKey != "" {
			c.byProvider[d.ProviderKey] = append(c.byProvider[d.ProviderKey], &cp)
		}
		c.all = append(c.all, &cp)
	}
	return c, nil
}

// GetAll returns every registered tool definition.
func (c *Catalog) GetAll() []*models.ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.ToolDefinition, len(c.all))
	copy(out, c.all)
	return out
}

// GetByName returns the definition for name, or false if unknown.
func (c *Catalog) GetByName(name string) (*models.ToolDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byName[name]
	return d, ok
}

// GetByCategory returns all tools in the given category.
func (c *Catalog) GetByCategory(cat models.ToolCategory) []*models.ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.byCategory[cat]
	out := make([]*models.ToolDefinition, len(src))
	copy(out, src)
	return out
}

// GetByProviderKey returns all tools that target the given provider key.
func (c *Catalog) GetByProviderKey(key string) []*models.ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.byProvider[key]
	out := make([]*models.ToolDefinition, len(src))
	copy(out, src)
	return out
}

// GetInputSchema returns the parameter schema for a tool, or false if unknown.
func (c *Catalog) GetInputSchema(name string) (models.ParameterSchema, bool) {
	d, ok := c.GetByName(name)
	if !ok {
		return models.ParameterSchema{}, false
	}
	return d.Parameters, true
}

// GetProviderKey returns the provider key a tool dispatches through.
func (c *Catalog) GetProviderKey(name string) (string, bool) {
	d, ok := c.GetByName(name)
	if !ok {
		return "", false
	}
	return d.ProviderKey, true
}
