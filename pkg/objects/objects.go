// Package objects reads and writes assembled object units: the on-disk
// container the linker consumes. The format is a little-endian record
// stream, one record group per region.
package objects

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/aviallon/scas/pkg/expression"
	"github.com/aviallon/scas/pkg/linker"
	"github.com/aviallon/scas/pkg/utils"
)

const (
	magic   = "SCASOBJ"
	version = 1
)

// WriteObject serializes obj. Layout, all little-endian:
//
//	magic "SCASOBJ", version byte
//	u32 region count, then per region:
//	  u16-prefixed name
//	  u32 symbol count    { u8 kind, u8 exported, name, u64 value, u64 definedAt }
//	  u32 immediate count { u8 kind, u8 width, u64 offset, u64 instrAddr,
//	                        u64 baseAddr, u16-prefixed expression source }
//	  u32 source mappings { u16-prefixed file, u32 line, u64 address, u64 length }
//	  u32 data length, data bytes
func WriteObject(w *bytes.Buffer, obj *linker.Object) error {
	w.WriteString(magic)
	w.WriteByte(version)

	put := func(v any) {
		// bytes.Buffer never fails to grow; encoding errors here would mean
		// a non-fixed-size type slipped in, which is a programming error.
		utils.MustNo(binary.Write(w, binary.LittleEndian, v))
	}
	putString := func(s string) {
		if len(s) > 0xFFFF {
			s = s[:0xFFFF]
		}
		put(uint16(len(s)))
		w.WriteString(s)
	}
	putBool := func(b bool) {
		v := uint8(0)
		if b {
			v = 1
		}
		put(v)
	}

	put(uint32(len(obj.Regions)))
	for _, region := range obj.Regions {
		putString(region.Name)

		put(uint32(len(region.Symbols)))
		for _, sym := range region.Symbols {
			put(uint8(sym.Kind))
			putBool(sym.Exported)
			putString(sym.Name)
			put(sym.Value)
			put(sym.DefinedAt)
		}

		put(uint32(len(region.Immediates)))
		for _, imm := range region.Immediates {
			if imm.Expression == nil {
				return fmt.Errorf("region '%s': immediate at %#x has no expression",
					region.Name, imm.Offset)
			}
			put(uint8(imm.Kind))
			put(imm.Width)
			put(imm.Offset)
			put(imm.InstructionAddress)
			put(imm.BaseAddress)
			putString(imm.Expression.String())
		}

		put(uint32(len(region.SourceMap)))
		for _, m := range region.SourceMap {
			putString(m.FileName)
			put(uint32(m.Line))
			put(m.Address)
			put(m.Length)
		}

		put(uint32(len(region.Data)))
		w.Write(region.Data)
	}

	return nil
}

// decoder walks a byte buffer, remembering the first failure so call sites
// can decode a whole record group and check once.
type decoder struct {
	data []byte
	pos  int
	err  error
}

func (d *decoder) fail() {
	if d.err == nil {
		d.err = fmt.Errorf("object file truncated at offset %d", d.pos)
	}
}

func (d *decoder) take(n int) []byte {
	if d.err != nil || d.pos+n > len(d.data) {
		d.fail()
		return nil
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *decoder) u8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u16() uint16 {
	if b := d.take(2); b != nil {
		return utils.Read[uint16](b)
	}
	return 0
}

func (d *decoder) u32() uint32 {
	if b := d.take(4); b != nil {
		return utils.Read[uint32](b)
	}
	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.take(8); b != nil {
		return utils.Read[uint64](b)
	}
	return 0
}

func (d *decoder) str() string {
	return string(d.take(int(d.u16())))
}

// ReadObject parses one object unit out of contents. Any malformation is a
// structural error: the linker never sees a partial unit.
func ReadObject(contents []byte) (*linker.Object, error) {
	if len(contents) < len(magic)+1 || string(contents[:len(magic)]) != magic {
		return nil, fmt.Errorf("not an scas object file")
	}
	if contents[len(magic)] != version {
		return nil, fmt.Errorf("unsupported object file version %d", contents[len(magic)])
	}

	d := &decoder{data: contents, pos: len(magic) + 1}
	obj := linker.NewObject()

	regionCount := d.u32()
	for r := uint32(0); r < regionCount && d.err == nil; r++ {
		region := linker.NewRegion(d.str())

		symbolCount := d.u32()
		for i := uint32(0); i < symbolCount && d.err == nil; i++ {
			sym := &linker.Symbol{
				Kind:     linker.SymbolKind(d.u8()),
				Exported: d.u8() != 0,
				Name:     d.str(),
			}
			sym.Value = d.u64()
			sym.DefinedAt = d.u64()
			region.Symbols = append(region.Symbols, sym)
		}

		immediateCount := d.u32()
		for i := uint32(0); i < immediateCount && d.err == nil; i++ {
			imm := &linker.DeferredImmediate{
				Kind:   linker.ImmediateKind(d.u8()),
				Width:  d.u8(),
				Offset: d.u64(),
			}
			imm.InstructionAddress = d.u64()
			imm.BaseAddress = d.u64()

			src := d.str()
			if d.err != nil {
				break
			}
			expr, err := expression.Parse(src)
			if err != nil {
				return nil, fmt.Errorf("region '%s': %w", region.Name, err)
			}
			imm.Expression = expr

			if imm.Width == 0 || imm.Width%8 != 0 {
				return nil, fmt.Errorf("region '%s': immediate width %d is not a positive multiple of 8",
					region.Name, imm.Width)
			}
			region.Immediates = append(region.Immediates, imm)
		}

		mappingCount := d.u32()
		for i := uint32(0); i < mappingCount && d.err == nil; i++ {
			m := linker.SourceMapping{
				FileName: d.str(),
				Line:     int(d.u32()),
			}
			m.Address = d.u64()
			m.Length = d.u64()
			region.SourceMap = append(region.SourceMap, m)
		}

		region.Data = append(region.Data, d.take(int(d.u32()))...)
		obj.Regions = append(obj.Regions, region)
	}

	if d.err != nil {
		return nil, d.err
	}
	return obj, nil
}

func ReadFile(path string) (*linker.Object, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	obj, err := ReadObject(contents)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obj, nil
}

func WriteFile(path string, obj *linker.Object) error {
	var buf bytes.Buffer
	if err := WriteObject(&buf, obj); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
