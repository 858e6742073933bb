package passes

import (
	"fmt"
	"sort"

	"github.com/paulyc/cvs2svn/internal/meta"
)

// SymbolTable assigns dense SymbolIDs to CVS tag/branch names across every
// file in the tree, and enforces that a name is never declared as a tag in
// one file and a branch in another (spec §7's "tag/branch mismatch" fatal
// error).
type SymbolTable struct {
	byName  map[string]meta.SymbolID
	symbols map[meta.SymbolID]*meta.Symbol
	order   []string
	nextID  meta.SymbolID
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName:  make(map[string]meta.SymbolID),
		symbols: make(map[meta.SymbolID]*meta.Symbol),
	}
}

// Resolve returns the SymbolID for name, creating it with kind if this is
// the first time name is seen. A later call with a different kind for the
// same name is a fatal mismatch.
func (t *SymbolTable) Resolve(name string, kind meta.SymbolKind) (meta.SymbolID, error) {
	if id, ok := t.byName[name]; ok {
		sym := t.symbols[id]
		if sym.Kind != kind {
			return 0, fmt.Errorf("symbol %q declared as both %s and %s", name, sym.Kind, kind)
		}
		return id, nil
	}
	t.nextID++
	id := t.nextID
	t.byName[name] = id
	t.symbols[id] = &meta.Symbol{ID: id, Name: name, Kind: kind}
	t.order = append(t.order, name)
	return id, nil
}

// AddSource records that fileID/revisionID is a place symbol id was
// sprouted from in CVS (spec.md §3's Symbol.Sources).
func (t *SymbolTable) AddSource(id meta.SymbolID, fileID meta.FileID, revisionID meta.RevisionID) {
	sym := t.symbols[id]
	sym.Sources = append(sym.Sources, meta.SymbolSource{FileID: fileID, RevisionID: revisionID})
}

// Symbols returns every declared symbol, ordered by ID (i.e. first
// declaration order, since IDs are assigned monotonically).
func (t *SymbolTable) Symbols() []*meta.Symbol {
	out := make([]*meta.Symbol, 0, len(t.symbols))
	for _, s := range t.symbols {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Symbol looks up a declared symbol by id.
func (t *SymbolTable) Symbol(id meta.SymbolID) (*meta.Symbol, bool) {
	s, ok := t.symbols[id]
	return s, ok
}
