package linker

import (
	"bytes"
	"testing"
)

func TestMergeKeepsFirstAppearanceOrder(t *testing.T) {
	a := NewObject()
	a.Regions = append(a.Regions, NewRegion("CODE"), NewRegion("DATA"))
	b := NewObject()
	b.Regions = append(b.Regions, NewRegion("BSS"), NewRegion("CODE"))

	merged := MergeObjects([]*Object{a, b})

	want := []string{"CODE", "DATA", "BSS"}
	if len(merged.Regions) != len(want) {
		t.Fatalf("merged %d regions, want %d", len(merged.Regions), len(want))
	}
	for i, name := range want {
		if merged.Regions[i].Name != name {
			t.Errorf("region %d is %q, want %q", i, merged.Regions[i].Name, name)
		}
	}
}

func TestMergeOffsetsLaterContributions(t *testing.T) {
	first := NewRegion("CODE")
	first.Data = []byte{1, 2, 3}
	first.Symbols = append(first.Symbols, NewLabel("a", 0))

	second := NewRegion("CODE")
	second.Data = []byte{4, 5}
	second.Symbols = append(second.Symbols, NewLabel("b", 1))
	second.Immediates = append(second.Immediates, &DeferredImmediate{
		Width:              8,
		Kind:               ImmediateRelative,
		Offset:             1,
		InstructionAddress: 0,
		BaseAddress:        1,
	})
	second.SourceMap = append(second.SourceMap, SourceMapping{
		FileName: "b.asm", Line: 3, Address: 0, Length: 2,
	})

	a := singleRegionObject(first)
	b := singleRegionObject(second)
	merged := MergeObjects([]*Object{a, b})

	if len(merged.Regions) != 1 {
		t.Fatalf("merged %d regions, want 1", len(merged.Regions))
	}
	code := merged.Regions[0]

	if !bytes.Equal(code.Data, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("data = %#v", code.Data)
	}

	symB := code.Symbols[1]
	if symB.Name != "b" || symB.Value != 4 || symB.DefinedAt != 4 {
		t.Errorf("second unit's symbol not shifted: %+v", symB)
	}

	imm := code.Immediates[0]
	if imm.Offset != 4 || imm.InstructionAddress != 3 || imm.BaseAddress != 4 {
		t.Errorf("second unit's immediate not shifted: %+v", imm)
	}

	if code.SourceMap[0].Address != 3 {
		t.Errorf("source map not shifted: %+v", code.SourceMap[0])
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	build := func() []*Object {
		r1 := NewRegion("CODE")
		r1.Data = []byte{1}
		r2 := NewRegion("DATA")
		r2.Data = []byte{2}
		r3 := NewRegion("CODE")
		r3.Data = []byte{3}
		return []*Object{singleRegionObject(r1), singleRegionObject(r2), singleRegionObject(r3)}
	}

	m1 := MergeObjects(build())
	m2 := MergeObjects(build())

	if len(m1.Regions) != len(m2.Regions) {
		t.Fatal("merge result depends on more than input order")
	}
	for i := range m1.Regions {
		if m1.Regions[i].Name != m2.Regions[i].Name ||
			!bytes.Equal(m1.Regions[i].Data, m2.Regions[i].Data) {
			t.Fatal("merge result differs between identical runs")
		}
	}
}
