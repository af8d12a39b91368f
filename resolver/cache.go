package resolver

import "kerbal-mod-manager/mods"

// relationshipCache memoizes resolution per descriptor so the same clause is
// never expanded twice along one branch, and marks descriptors currently on
// the resolution stack so provider cycles terminate.
type relationshipCache struct {
	resolved   map[*mods.RelationshipDescriptor]Resolved
	inProgress map[*mods.RelationshipDescriptor]bool
}

func newRelationshipCache() *relationshipCache {
	return &relationshipCache{
		resolved:   make(map[*mods.RelationshipDescriptor]Resolved),
		inProgress: make(map[*mods.RelationshipDescriptor]bool),
	}
}

func (c *relationshipCache) get(d *mods.RelationshipDescriptor) (Resolved, bool) {
	n, ok := c.resolved[d]
	return n, ok
}

func (c *relationshipCache) put(d *mods.RelationshipDescriptor, n Resolved) {
	c.resolved[d] = n
}

func (c *relationshipCache) begin(d *mods.RelationshipDescriptor) {
	c.inProgress[d] = true
}

func (c *relationshipCache) end(d *mods.RelationshipDescriptor) {
	delete(c.inProgress, d)
}

func (c *relationshipCache) resolving(d *mods.RelationshipDescriptor) bool {
	return c.inProgress[d]
}

// clone copies the cache for a provider branch so a failure along one
// alternative does not poison the others.
func (c *relationshipCache) clone() *relationshipCache {
	out := newRelationshipCache()
	for k, v := range c.resolved {
		out.resolved[k] = v
	}
	for k := range c.inProgress {
		out.inProgress[k] = true
	}
	return out
}

// adopt merges a successful branch's memos back into this cache.
func (c *relationshipCache) adopt(branch *relationshipCache) {
	for k, v := range branch.resolved {
		c.resolved[k] = v
	}
}
