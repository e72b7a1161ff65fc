package linker

import "github.com/aviallon/scas/pkg/log"

// RelocationTableName names the synthesized region that lists every absolute
// address a loader must patch, as well as the symbol pointing at it.
const RelocationTableName = "__scas_relocation_table"

// NewRelocationTableObject builds the object unit carrying the (initially
// empty) relocation table region and its self-referential symbol. The
// orchestrator appends it after all real inputs so the merge step places the
// table last; entry collection for every other region then happens before
// the table's own length matters for addressing.
func NewRelocationTableObject() *Object {
	table := NewRegion(RelocationTableName)
	table.Symbols = append(table.Symbols, NewLabel(RelocationTableName, 0))

	obj := NewObject()
	obj.Regions = append(obj.Regions, table)
	return obj
}

// CollectRelocations appends, for one just-addressed region, the final byte
// position of every pointer-like absolute immediate: kind Absolute with an
// encoding offset distinct from the instruction's base, meaning the field
// holds an address rather than a same-instruction displacement. Entries are
// 16-bit, matching the pointer width of the target loaders.
func CollectRelocations(table, region *Region) {
	log.Printf(log.Debug, "collecting relocations for %s", region.Name)
	for _, imm := range region.Immediates {
		if imm.Kind != ImmediateRelative && imm.BaseAddress != imm.Offset {
			table.AppendWord(uint16(imm.Offset + region.FinalAddress))
		}
	}
}
