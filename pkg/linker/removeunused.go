package linker

import (
	"strings"

	"github.com/aviallon/scas/pkg/log"
	"github.com/aviallon/scas/pkg/utils"
)

// RemoveUnusedRegions drops, in place, every region no expression can reach.
// Roots are the first region (the entry point lives there) and every region
// defining an exported symbol; edges run from a region to the regions
// defining the symbols its immediates reference. Mark, then sweep.
func RemoveUnusedRegions(obj *Object) {
	if len(obj.Regions) == 0 {
		return
	}

	definers := make(map[string]*Region)
	for _, region := range obj.Regions {
		for _, sym := range region.Symbols {
			name := strings.ToLower(sym.Name)
			if _, taken := definers[name]; !taken {
				definers[name] = region
			}
		}
	}

	alive := make(map[*Region]bool)
	roots := []*Region{obj.Regions[0]}
	alive[obj.Regions[0]] = true

	for _, region := range obj.Regions {
		if alive[region] {
			continue
		}
		// Synthesized infrastructure is always live.
		if region.Name == RelocationTableName {
			alive[region] = true
			roots = append(roots, region)
			continue
		}
		for _, sym := range region.Symbols {
			if sym.Exported {
				alive[region] = true
				roots = append(roots, region)
				break
			}
		}
	}

	for len(roots) > 0 {
		region := roots[0]
		roots = roots[1:]

		for _, imm := range region.Immediates {
			if imm.Expression == nil {
				continue
			}
			for _, name := range imm.Expression.Symbols() {
				target := definers[strings.ToLower(name)]
				if target == nil || alive[target] {
					continue
				}
				alive[target] = true
				roots = append(roots, target)
			}
		}
	}

	obj.Regions = utils.RemoveIf(obj.Regions, func(region *Region) bool {
		if !alive[region] {
			log.Printf(log.Debug, "removing unused region '%s'", region.Name)
			return true
		}
		return false
	})
}
