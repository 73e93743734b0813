package reldb

import (
	"fmt"
	"sync"
)

// Catalog is the engine's table registry: the mapping from a table's
// name to the DBFile backing it, and from a TableId back to that same
// file, so the buffer pool can resolve a PageId it doesn't recognize
// yet into something it can read from disk.
type Catalog struct {
	mu        sync.RWMutex
	byName    map[string]DBFile
	byTableID map[TableId]DBFile
	pkeys     map[string]string
}

func NewCatalog() *Catalog {
	return &Catalog{
		byName:    make(map[string]DBFile),
		byTableID: make(map[TableId]DBFile),
		pkeys:     make(map[string]string),
	}
}

// AddTable registers file under name, replacing any previous
// registration that used the same name. primaryKey names the table's
// primary-key column; empty means the table has none declared.
func (c *Catalog) AddTable(name string, file DBFile, primaryKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName[name] = file
	c.byTableID[file.TableId()] = file
	c.pkeys[name] = primaryKey
}

// PrimaryKey returns the primary-key column name declared for table
// name, empty if none was.
func (c *Catalog) PrimaryKey(name string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.byName[name]; !ok {
		return "", newError(NoSuchElementError, "no table named %q", name)
	}
	return c.pkeys[name], nil
}

func (c *Catalog) GetTable(name string) (DBFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.byName[name]
	if !ok {
		return nil, newError(NoSuchElementError, "no table named %q", name)
	}
	return f, nil
}

// ResolveTableId maps a TableId (as carried in a PageId) back to its
// DBFile, the lookup the buffer pool performs whenever it must read a
// page that isn't already cached.
func (c *Catalog) ResolveTableId(id TableId) (DBFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.byTableID[id]
	if !ok {
		return nil, newError(NoSuchElementError, "no table registered for table id %d", id)
	}
	return f, nil
}

// TableNames returns every registered table name.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.byName))
	for name := range c.byName {
		out = append(out, name)
	}
	return out
}

func (c *Catalog) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("Catalog{%d tables}", len(c.byName))
}

// EstimateJoinCardinality is a test/planning helper: given the
// cardinalities of two tables and whether the join predicate is an
// equality on a primary-key-like column, it returns the classic
// cardinality-estimation heuristics used by cost-based optimizers --
// max(card1, card2) for an equality join on a unique column, otherwise
// a fraction of the cross product. The engine never calls this itself;
// it exists so a planner built on top of this package has a starting
// point without re-deriving the formula.
func (c *Catalog) EstimateJoinCardinality(card1, card2 int, equalityJoin, pkJoin bool) int {
	if card1 <= 0 || card2 <= 0 {
		return 0
	}
	if equalityJoin {
		if pkJoin {
			if card1 > card2 {
				return card1
			}
			return card2
		}
		est := (card1 * card2) / 3
		if est < 1 {
			est = 1
		}
		return est
	}
	est := (card1 * card2) * 3 / 10
	if est < 1 {
		est = 1
	}
	return est
}
