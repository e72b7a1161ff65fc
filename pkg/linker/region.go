package linker

import "github.com/aviallon/scas/pkg/utils"

// SourceMapping ties a span of region bytes back to one source line, for
// diagnostics only.
type SourceMapping struct {
	FileName string
	Line     int
	Address  uint64 // region-relative offset of the span
	Length   uint64
}

// Region is a named, contiguous block of output bytes together with the
// symbols defined inside it and the operand expressions that could not be
// encoded until link time. The region owns its buffer and immediate list for
// its whole lifetime; symbols are shared by reference with the global table
// once gathered.
type Region struct {
	Name         string
	Data         []byte
	FinalAddress uint64
	Symbols      []*Symbol
	Immediates   []*DeferredImmediate
	SourceMap    []SourceMapping

	addressed bool
}

func NewRegion(name string) *Region {
	return &Region{Name: name}
}

func (r *Region) Append(data []byte) {
	r.Data = append(r.Data, data...)
}

// AppendWord appends one little-endian 16-bit value. The relocation table is
// a sequence of these.
func (r *Region) AppendWord(value uint16) {
	r.Data = append(r.Data, byte(value), byte(value>>8))
}

// Relocate assigns the region's final base address, exactly once, and shifts
// the region's own symbols to absolute values. Deferred immediates are left
// region-relative; the resolver pass absolutizes them.
func (r *Region) Relocate(base uint64) {
	utils.Assert(!r.addressed)
	r.addressed = true
	r.FinalAddress = base

	for _, sym := range r.Symbols {
		sym.Value += base
		sym.DefinedAt += base
	}
}

// LocateSource maps a region-relative address to its source file and line.
func (r *Region) LocateSource(address uint64) (string, int, bool) {
	// Addresses may already be absolute when diagnostics fire; fold the
	// region base back out so both forms hit the same mapping.
	if r.addressed && address >= r.FinalAddress {
		address -= r.FinalAddress
	}
	for i := range r.SourceMap {
		m := &r.SourceMap[i]
		if address >= m.Address && address < m.Address+m.Length {
			return m.FileName, m.Line, true
		}
	}
	return "", 0, false
}
