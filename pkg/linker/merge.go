package linker

// Object is one assembled translation unit: an ordered list of regions.
type Object struct {
	Regions []*Region
}

func NewObject() *Object {
	return &Object{}
}

func (o *Object) GetRegion(name string) *Region {
	for _, region := range o.Regions {
		if region.Name == name {
			return region
		}
	}
	return nil
}

// MergeObjects combines every input unit into one object. Regions keep the
// order of their first appearance; a later contribution to an already-seen
// region name is appended to it, with the contribution's symbols, immediate
// addresses, and source map shifted by the bytes already present. The result
// is deterministic given input order.
func MergeObjects(objects []*Object) *Object {
	merged := NewObject()
	for _, obj := range objects {
		for _, region := range obj.Regions {
			merged.mergeRegion(region)
		}
	}
	return merged
}

func (o *Object) mergeRegion(region *Region) {
	existing := o.GetRegion(region.Name)
	if existing == nil {
		o.Regions = append(o.Regions, region)
		return
	}

	base := uint64(len(existing.Data))

	for _, sym := range region.Symbols {
		sym.Value += base
		sym.DefinedAt += base
		existing.Symbols = append(existing.Symbols, sym)
	}
	for _, imm := range region.Immediates {
		imm.Offset += base
		imm.InstructionAddress += base
		imm.BaseAddress += base
		existing.Immediates = append(existing.Immediates, imm)
	}
	for _, m := range region.SourceMap {
		m.Address += base
		existing.SourceMap = append(existing.SourceMap, m)
	}
	existing.Append(region.Data)
}
