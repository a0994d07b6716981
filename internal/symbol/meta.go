package symbol

import "triarb/internal/filter"

// Meta is the immutable-after-initialization metadata for one symbol, per
// spec §3: its base/quote assets, a display name, and the filter set that
// gates order validation.
type Meta struct {
	ID          ID
	BaseAsset   string
	QuoteAsset  string
	DisplayName string
	Filters     filter.Set
}

// Catalog owns a Registry plus the per-symbol Meta assigned during
// initialization. It is populated once by the orchestrator and frozen.
type Catalog struct {
	Registry *Registry
	metas    []Meta
}

// NewCatalog wraps a fresh Registry.
func NewCatalog() *Catalog {
	return &Catalog{Registry: New()}
}

// Add registers m.DisplayName (if BaseAsset/QuoteAsset are set, the
// registry key is the display name, e.g. "BTCUSDT") and stores its
// metadata, returning the assigned id.
func (c *Catalog) Add(m Meta) (ID, error) {
	id, err := c.Registry.Register(m.DisplayName)
	if err != nil {
		return Invalid, err
	}
	m.ID = id
	for len(c.metas) <= int(id) {
		c.metas = append(c.metas, Meta{})
	}
	c.metas[id] = m
	return id, nil
}

// Meta returns the metadata registered for id, or the zero value if id is
// out of range.
func (c *Catalog) Meta(id ID) Meta {
	if int(id) >= len(c.metas) {
		return Meta{}
	}
	return c.metas[id]
}

// Len reports how many symbols are registered.
func (c *Catalog) Len() int {
	return c.Registry.Len()
}
