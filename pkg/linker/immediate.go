package linker

import (
	"errors"
	"fmt"

	"github.com/aviallon/scas/pkg/expression"
	"github.com/aviallon/scas/pkg/log"
)

type ImmediateKind uint8

const (
	// ImmediateAbsolute fields are unsigned; values whose bits above the
	// field are all ones are tolerated so that e.g. -1 lands in one byte as
	// 0xFF without complaint.
	ImmediateAbsolute ImmediateKind = iota
	// ImmediateRelative fields are signed displacements measured from
	// BaseAddress.
	ImmediateRelative
)

// DeferredImmediate is an instruction operand whose bytes could not be
// produced at assembly time. Offset is always buffer-local;
// InstructionAddress and BaseAddress start region-relative and are rewritten
// to absolute exactly once, by the resolver pass.
type DeferredImmediate struct {
	Expression         *expression.Expression
	Width              uint8 // bits, a positive multiple of 8
	Kind               ImmediateKind
	Offset             uint64
	InstructionAddress uint64
	BaseAddress        uint64
}

// signExtend reinterprets the low width bits of v as a two's-complement
// value, using bit width-1 as the sign bit.
func signExtend(v uint64, width uint8) uint64 {
	if width >= 64 {
		return v
	}
	shift := 64 - uint(width)
	return uint64(int64(v<<shift) >> shift)
}

// fits reports whether v survives truncation to width bits. Relative
// immediates are signed: the low bits must sign-extend back to v. Absolute
// immediates accept any value whose bits above the field are all zero or all
// one.
func fits(v uint64, width uint8, kind ImmediateKind) bool {
	if width >= 64 {
		return true
	}
	if kind == ImmediateRelative {
		return signExtend(v, width) == v
	}
	high := v >> width
	return high == 0 || high == ^uint64(0)>>width
}

// writeImmediate ORs the low width bits of v into buf at offset,
// least-significant byte first. OR rather than assignment: opcode bits
// sharing a byte with the immediate field are already in the buffer.
func writeImmediate(buf []byte, offset uint64, v uint64, width uint8) {
	for i := uint64(0); i < uint64(width)/8; i++ {
		buf[offset+i] |= byte(v)
		v >>= 8
	}
}

// evaluateImmediate runs the expression with '$' bound to the instruction's
// absolute address. The binding is the symbol table's override slot and is
// released on every path out.
func evaluateImmediate(syms *SymbolTable, imm *DeferredImmediate) (uint64, error) {
	syms.SetOverride(&Symbol{
		Name:  "$",
		Kind:  SymbolLabel,
		Value: imm.InstructionAddress,
	})
	defer syms.ClearOverride()

	return imm.Expression.Evaluate(syms)
}

// ResolveImmediates patches every deferred immediate of one region, in list
// order. Diagnostics accumulate on the context and never stop the pass; the
// returned error is reserved for structural failures (an immediate with no
// expression attached).
func (ctx *Context) ResolveImmediates(region *Region) error {
	log.Printf(log.Debug, "resolving immediate values for region '%s' at %08x",
		region.Name, region.FinalAddress)
	log.Indent()
	defer log.Dedent()

	for _, imm := range region.Immediates {
		if imm.Expression == nil {
			return fmt.Errorf("region '%s': deferred immediate at %#x has no expression",
				region.Name, imm.Offset)
		}
		if imm.Offset+uint64(imm.Width)/8 > uint64(len(region.Data)) {
			return fmt.Errorf("region '%s': %d-bit immediate at %#x overruns the %d-byte buffer",
				region.Name, imm.Width, imm.Offset, len(region.Data))
		}

		imm.InstructionAddress += region.FinalAddress
		imm.BaseAddress += region.FinalAddress

		value, err := evaluateImmediate(ctx.Symbols, imm)
		if err != nil {
			var unknown *expression.UnknownSymbolError
			if errors.As(err, &unknown) {
				log.Printf(log.Error, "unable to find symbol '%s'", unknown.Name)
				ctx.addError(ErrorUnknownSymbol, region, imm.InstructionAddress, unknown.Name)
			} else {
				ctx.addError(ErrorInvalidSyntax, region, imm.InstructionAddress, "")
			}
			continue
		}

		if imm.Kind == ImmediateRelative {
			value -= imm.BaseAddress
		}

		log.Printf(log.Debug, "immediate value result: %#x (width %d, base address %#x)",
			value, imm.Width, imm.BaseAddress)

		if !fits(value, imm.Width, imm.Kind) {
			// Non-fatal: the masked value is still written below.
			ctx.addError(ErrorValueTruncated, region, imm.InstructionAddress, "")
		}

		writeImmediate(region.Data, imm.Offset, value, imm.Width)
	}

	return nil
}
