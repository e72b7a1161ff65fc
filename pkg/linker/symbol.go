package linker

import (
	"strings"

	"github.com/aviallon/scas/pkg/log"
)

type SymbolKind uint8

const (
	SymbolLabel SymbolKind = iota
	SymbolEquate
)

// Symbol identity is the lower-cased name; two definitions differing only by
// case collide.
type Symbol struct {
	Name      string
	Kind      SymbolKind
	Value     uint64
	DefinedAt uint64
	Exported  bool
}

func NewLabel(name string, value uint64) *Symbol {
	return &Symbol{
		Name:      name,
		Kind:      SymbolLabel,
		Value:     value,
		DefinedAt: value,
	}
}

// SymbolTable keeps insertion order so the first definition of a name wins,
// plus a single override slot checked before the table proper. The override
// holds the transient '$' program-counter binding while one expression is
// evaluated; it is never visible outside that window.
type SymbolTable struct {
	symbols  []*Symbol
	override *Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

func (t *SymbolTable) Lookup(name string) (*Symbol, bool) {
	if t.override != nil && strings.EqualFold(t.override.Name, name) {
		return t.override, true
	}
	for _, sym := range t.symbols {
		if strings.EqualFold(sym.Name, name) {
			return sym, true
		}
	}
	return nil, false
}

// GetSymbol implements expression.SymbolProvider.
func (t *SymbolTable) GetSymbol(name string) (uint64, bool) {
	sym, ok := t.Lookup(name)
	if !ok {
		return 0, false
	}
	return sym.Value, true
}

func (t *SymbolTable) Insert(sym *Symbol) {
	t.symbols = append(t.symbols, sym)
}

func (t *SymbolTable) SetOverride(sym *Symbol) {
	t.override = sym
}

func (t *SymbolTable) ClearOverride() {
	t.override = nil
}

func (t *SymbolTable) Symbols() []*Symbol {
	return t.symbols
}

func (t *SymbolTable) Len() int {
	return len(t.symbols)
}

// GatherSymbols copies a region's symbols into the table. A name already
// present produces one DuplicateSymbol diagnostic and the new definition is
// discarded; gathering continues so every conflict in the input is reported
// in a single run.
func (ctx *Context) GatherSymbols(region *Region) {
	for _, sym := range region.Symbols {
		if _, exists := ctx.Symbols.Lookup(sym.Name); exists {
			log.Printf(log.Debug, "discarding duplicate definition of '%s'", sym.Name)
			ctx.addError(ErrorDuplicateSymbol, region, sym.DefinedAt, sym.Name)
			continue
		}
		ctx.Symbols.Insert(sym)
	}
}
