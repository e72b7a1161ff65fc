package linker

import (
	"io"
	"os"

	"github.com/k0kubun/pp/v3"

	"github.com/aviallon/scas/pkg/log"
)

// LinkSettings is the configuration surface of one link run.
type LinkSettings struct {
	// AutomaticRelocation synthesizes the runtime relocation table region.
	AutomaticRelocation bool
	// Origin is added to every symbol value after gathering, once.
	Origin uint64
	// RemoveUnused drops regions nothing references before addressing.
	RemoveUnused bool
}

// Context owns all state shared across the link passes: the inputs, the
// global symbol table, the accumulated diagnostics, and the growing output
// image. One context serves exactly one Link call.
type Context struct {
	Settings LinkSettings
	Objects  []*Object
	Symbols  *SymbolTable
	Errors   []*LinkError
	Merged   *Object
	Output   []byte
}

func NewContext(settings LinkSettings) *Context {
	return &Context{
		Settings: settings,
		Symbols:  NewSymbolTable(),
	}
}

// Link runs the whole pipeline: merge, address assignment (with relocation
// collection), symbol gathering, origin shift, immediate resolution, and
// finally concatenation into output. Diagnostics accumulate on ctx.Errors
// and never stop the link; the returned error covers only structural
// failures, which abort immediately.
func (ctx *Context) Link(output io.Writer) error {
	if ctx.Settings.AutomaticRelocation {
		ctx.Objects = append(ctx.Objects, NewRelocationTableObject())
	}

	merged := MergeObjects(ctx.Objects)
	ctx.Merged = merged

	if ctx.Settings.RemoveUnused {
		RemoveUnusedRegions(merged)
	}

	table := merged.GetRegion(RelocationTableName)

	log.Printf(log.Info, "assigning final addresses for all regions")
	address := uint64(0)
	for _, region := range merged.Regions {
		region.Relocate(address)
		if table != nil && region != table {
			CollectRelocations(table, region)
		}
		address += uint64(len(region.Data))
	}
	if table != nil {
		// Zero sentinel terminating the table. Appended after the loop, so
		// the table must come last in merge order for region addresses to
		// stay consistent; NewRelocationTableObject arranges that.
		table.AppendWord(0)
	}

	for _, region := range merged.Regions {
		ctx.GatherSymbols(region)
	}

	if ctx.Settings.Origin != 0 {
		ctx.moveOrigin()
	}

	for _, region := range merged.Regions {
		log.Printf(log.Info, "linking region %s", region.Name)
		if err := ctx.ResolveImmediates(region); err != nil {
			return err
		}
		ctx.Output = append(ctx.Output, region.Data...)
	}

	n, err := output.Write(ctx.Output)
	if err != nil {
		return err
	}
	log.Printf(log.Debug, "final binary written: %d bytes", n)

	return nil
}

// moveOrigin rebases every gathered symbol by the configured origin. Region
// addresses are untouched: the image itself stays zero-based, only the view
// expressions get of it shifts.
func (ctx *Context) moveOrigin() {
	log.Printf(log.Debug, "moving origin of all symbols by %#x", ctx.Settings.Origin)
	for _, sym := range ctx.Symbols.Symbols() {
		sym.Value += ctx.Settings.Origin
	}
}

type regionLayout struct {
	Name    string
	Address uint64
	Size    int
}

type symbolLayout struct {
	Name  string
	Value uint64
}

// DumpLayout pretty-prints the final region and symbol layout for debugging.
func (ctx *Context) DumpLayout() {
	if ctx.Merged == nil {
		return
	}

	var regions []regionLayout
	for _, region := range ctx.Merged.Regions {
		regions = append(regions, regionLayout{
			Name:    region.Name,
			Address: region.FinalAddress,
			Size:    len(region.Data),
		})
	}

	var symbols []symbolLayout
	for _, sym := range ctx.Symbols.Symbols() {
		symbols = append(symbols, symbolLayout{Name: sym.Name, Value: sym.Value})
	}

	pp.Fprintln(os.Stderr, regions)
	pp.Fprintln(os.Stderr, symbols)
}
