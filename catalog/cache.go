package catalog

import (
	"sync"

	"github.com/k0kubun/pgdvm/ir"
)

// Cache wraps a Catalog with a process-wide, read-mostly cache, per
// spec.md section 9 ("Global state"): "Catalog caches (volatility
// lookup, relkind lookup) are process-wide and read-mostly;
// implementations should use a concurrent read-optimised map with
// explicit invalidation on DDL events." The refresh driver's (out of
// scope) DDL event-trigger plumbing calls Invalidate when a dependency
// changes shape.
type Cache struct {
	inner Catalog

	mu         sync.RWMutex
	columns    map[uint32][]ir.Column
	primaryKey map[uint32][]string
	volatility map[string]ir.Volatility
	relKind    map[string]RelKind
	viewDef    map[uint32]string
	tableOID   map[string]uint32
}

// NewCache wraps inner with a read-mostly cache.
func NewCache(inner Catalog) *Cache {
	return &Cache{
		inner:      inner,
		columns:    map[uint32][]ir.Column{},
		primaryKey: map[uint32][]string{},
		volatility: map[string]ir.Volatility{},
		relKind:    map[string]RelKind{},
		viewDef:    map[uint32]string{},
		tableOID:   map[string]uint32{},
	}
}

func relKey(schema, table string) string { return schema + "." + table }

func (c *Cache) TableOID(schema, table string) (uint32, error) {
	key := relKey(schema, table)
	c.mu.RLock()
	oid, ok := c.tableOID[key]
	c.mu.RUnlock()
	if ok {
		return oid, nil
	}
	oid, err := c.inner.TableOID(schema, table)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.tableOID[key] = oid
	c.mu.Unlock()
	return oid, nil
}

func (c *Cache) Columns(oid uint32) ([]ir.Column, error) {
	c.mu.RLock()
	cols, ok := c.columns[oid]
	c.mu.RUnlock()
	if ok {
		return cols, nil
	}
	cols, err := c.inner.Columns(oid)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.columns[oid] = cols
	c.mu.Unlock()
	return cols, nil
}

func (c *Cache) PrimaryKey(oid uint32) ([]string, error) {
	c.mu.RLock()
	pk, ok := c.primaryKey[oid]
	c.mu.RUnlock()
	if ok {
		return pk, nil
	}
	pk, err := c.inner.PrimaryKey(oid)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.primaryKey[oid] = pk
	c.mu.Unlock()
	return pk, nil
}

func (c *Cache) FunctionVolatility(name string) (ir.Volatility, error) {
	c.mu.RLock()
	v, ok := c.volatility[name]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}
	v, err := c.inner.FunctionVolatility(name)
	if err != nil {
		return v, err
	}
	c.mu.Lock()
	c.volatility[name] = v
	c.mu.Unlock()
	return v, nil
}

func (c *Cache) RelKind(schema, table string) (RelKind, error) {
	key := relKey(schema, table)
	c.mu.RLock()
	k, ok := c.relKind[key]
	c.mu.RUnlock()
	if ok {
		return k, nil
	}
	k, err := c.inner.RelKind(schema, table)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.relKind[key] = k
	c.mu.Unlock()
	return k, nil
}

func (c *Cache) ViewDefinition(oid uint32) (string, error) {
	c.mu.RLock()
	def, ok := c.viewDef[oid]
	c.mu.RUnlock()
	if ok {
		return def, nil
	}
	def, err := c.inner.ViewDefinition(oid)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.viewDef[oid] = def
	c.mu.Unlock()
	return def, nil
}

// Invalidate drops every cache entry associated with oid. Called by the
// (out of scope) DDL event-trigger plumbing when a dependency's shape
// changes.
func (c *Cache) Invalidate(oid uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.columns, oid)
	delete(c.primaryKey, oid)
	delete(c.viewDef, oid)
	for k, v := range c.tableOID {
		if v == oid {
			delete(c.tableOID, k)
		}
	}
	for k := range c.relKind {
		// relKind is keyed by name, not oid; a targeted invalidation
		// would need the name too, so a DDL event conservatively clears
		// the whole relkind cache (it is small and cheap to repopulate).
		delete(c.relKind, k)
	}
}
