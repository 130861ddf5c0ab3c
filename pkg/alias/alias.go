// Package alias implements the collection alias table of spec.md §4.13:
// many aliases may point to one collection, resolved with exactly one
// indirection hop.
package alias

import (
	"sort"
	"sync"

	"github.com/vantari/vecengine/pkg/vecerr"
)

// CollectionExists abstracts the check against the live collection table,
// so alias creation can refuse names that collide with a real collection
// without this package importing the engine facade.
type CollectionExists func(name string) bool

// Table is a concurrent alias → collection map.
type Table struct {
	mu      sync.RWMutex
	aliases map[string]string // alias -> target collection
	exists  CollectionExists
}

// New creates an empty alias table. exists is consulted by Create to
// reject an alias name that collides with a real collection.
func New(exists CollectionExists) *Table {
	return &Table{aliases: make(map[string]string), exists: exists}
}

// Create registers alias -> target. Fails if alias equals an existing
// collection or an existing alias (spec.md §4.13).
func (t *Table) Create(aliasName, target string) *vecerr.Error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.exists != nil && t.exists(aliasName) {
		return vecerr.Newf(vecerr.InvalidConfiguration, "alias %q collides with an existing collection", aliasName)
	}
	if _, ok := t.aliases[aliasName]; ok {
		return vecerr.Newf(vecerr.InvalidConfiguration, "alias %q already exists", aliasName)
	}
	t.aliases[aliasName] = target
	return nil
}

// Delete removes an alias. A no-op if the alias doesn't exist.
func (t *Table) Delete(aliasName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.aliases, aliasName)
}

// Rename moves an alias to a new name, keeping its target.
func (t *Table) Rename(oldName, newName string) *vecerr.Error {
	t.mu.Lock()
	defer t.mu.Unlock()

	target, ok := t.aliases[oldName]
	if !ok {
		return vecerr.Newf(vecerr.CollectionNotFound, "alias %q not found", oldName)
	}
	if t.exists != nil && t.exists(newName) {
		return vecerr.Newf(vecerr.InvalidConfiguration, "alias %q collides with an existing collection", newName)
	}
	if _, collides := t.aliases[newName]; collides {
		return vecerr.Newf(vecerr.InvalidConfiguration, "alias %q already exists", newName)
	}
	delete(t.aliases, oldName)
	t.aliases[newName] = target
	return nil
}

// Resolve performs exactly one indirection hop: if name is a known alias,
// its target is returned; otherwise name is returned unchanged (spec.md
// §4.13: "when a lookup by name misses the collection table, consult the
// alias table; exactly one indirection hop, no chaining" — callers are
// expected to check the collection table first and only call Resolve on a
// miss, which is what makes the single-hop guarantee hold even though this
// function itself never recurses).
func (t *Table) Resolve(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	target, ok := t.aliases[name]
	return target, ok
}

// List returns all aliases, sorted by name.
func (t *Table) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.aliases))
	for a := range t.aliases {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// All returns a snapshot copy of the alias -> target map, for callers
// that need to persist the table (e.g. to JSON).
func (t *Table) All() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.aliases))
	for a, tgt := range t.aliases {
		out[a] = tgt
	}
	return out
}

// LoadAll replaces the table's contents with entries, bypassing the
// collision checks Create applies — callers restoring a previously
// persisted table are trusted to hand back a table that was valid when
// saved.
func (t *Table) LoadAll(entries map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aliases = make(map[string]string, len(entries))
	for a, tgt := range entries {
		t.aliases[a] = tgt
	}
}

// ListForCollection returns all aliases pointing at target, sorted.
func (t *Table) ListForCollection(target string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for a, tgt := range t.aliases {
		if tgt == target {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}
