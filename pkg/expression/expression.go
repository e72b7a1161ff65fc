// Package expression evaluates the operand expressions an assembler could
// not finish: integer arithmetic over symbols whose values are only known
// once the linker has assigned final addresses.
//
// Parse compiles the source text to RPN with the shunting-yard algorithm;
// Evaluate runs the RPN against a symbol provider. The two failure modes the
// linker cares about are distinct types: *SyntaxError and *UnknownSymbolError.
package expression

import (
	"fmt"

	"github.com/japanoise/numparse"
)

// SymbolProvider supplies symbol values during evaluation. Lookups are
// expected to be case-insensitive.
type SymbolProvider interface {
	GetSymbol(name string) (uint64, bool)
}

type SyntaxError struct {
	Source string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed expression '%s'", e.Source)
}

type UnknownSymbolError struct {
	Name string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown symbol '%s'", e.Name)
}

type operator uint8

const (
	opNone operator = iota
	opOr
	opXor
	opAnd
	opShl
	opShr
	opAdd
	opSub
	opMul
	opDiv
	opMod
	opNeg
	opNot
	opLparen
)

// precedence table, higher binds tighter
var precedence = [...]int{
	opOr:  2,
	opXor: 3,
	opAnd: 4,
	opShl: 5,
	opShr: 5,
	opAdd: 6,
	opSub: 6,
	opMul: 7,
	opDiv: 7,
	opMod: 7,
	opNeg: 8,
	opNot: 8,
}

func unary(op operator) bool {
	return op == opNeg || op == opNot
}

type tokenKind uint8

const (
	tokenNumber tokenKind = iota
	tokenSymbol
	tokenOperator
)

type token struct {
	kind  tokenKind
	value uint64
	name  string
	op    operator
}

// Expression is a parsed operand expression. The token list is in RPN order.
type Expression struct {
	source string
	tokens []token
}

func (e *Expression) String() string {
	return e.source
}

// Symbols returns every symbol name the expression references, in source
// order. Used by dead-region elimination to build the reference graph.
func (e *Expression) Symbols() []string {
	var names []string
	for _, tok := range e.tokens {
		if tok.kind == tokenSymbol {
			names = append(names, tok.name)
		}
	}
	return names
}

func symbolStart(c byte) bool {
	return c == '_' || c == '.' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func symbolChar(c byte) bool {
	return symbolStart(c) || (c >= '0' && c <= '9')
}

func hexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Parse compiles src. The grammar is the usual assembler operand grammar:
// integer literals in any base numparse accepts ($FF, %1010, 0x1F, 31),
// symbol references, parentheses, unary - and ~, and the binary operators
// + - * / % << >> & | ^ with C precedence.
func Parse(src string) (*Expression, error) {
	expr := &Expression{source: src}
	var stack []operator

	pushOut := func(tok token) {
		expr.tokens = append(expr.tokens, tok)
	}
	pushOp := func(op operator) {
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top == opLparen || precedence[top] < precedence[op] ||
				(precedence[top] == precedence[op] && unary(op)) {
				break
			}
			pushOut(token{kind: tokenOperator, op: top})
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, op)
	}

	// lastValue is true when the previous token could end an operand, which
	// disambiguates binary minus from unary minus and '%' modulo from a
	// binary literal.
	lastValue := false

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++

		case c >= '0' && c <= '9',
			c == '$' && i+1 < len(src) && hexDigit(src[i+1]),
			c == '%' && !lastValue && i+1 < len(src) && (src[i+1] == '0' || src[i+1] == '1'):
			start := i
			i++
			for i < len(src) && (hexDigit(src[i]) || src[i] == 'x' || src[i] == 'X' ||
				src[i] == 'o' || src[i] == 'O') {
				i++
			}
			n, err := numparse.UNumParse(src[start:i])
			if err != nil {
				return nil, &SyntaxError{Source: src}
			}
			pushOut(token{kind: tokenNumber, value: uint64(n)})
			lastValue = true

		case symbolStart(c):
			start := i
			i++
			if c != '$' {
				for i < len(src) && symbolChar(src[i]) {
					i++
				}
			}
			pushOut(token{kind: tokenSymbol, name: src[start:i]})
			lastValue = true

		case c == '(':
			stack = append(stack, opLparen)
			i++
			lastValue = false

		case c == ')':
			for len(stack) > 0 && stack[len(stack)-1] != opLparen {
				pushOut(token{kind: tokenOperator, op: stack[len(stack)-1]})
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				return nil, &SyntaxError{Source: src}
			}
			stack = stack[:len(stack)-1]
			i++
			lastValue = true

		default:
			op := opNone
			switch c {
			case '+':
				op = opAdd
			case '-':
				op = opSub
				if !lastValue {
					op = opNeg
				}
			case '~':
				op = opNot
			case '*':
				op = opMul
			case '/':
				op = opDiv
			case '%':
				op = opMod
			case '&':
				op = opAnd
			case '|':
				op = opOr
			case '^':
				op = opXor
			case '<', '>':
				if i+1 >= len(src) || src[i+1] != c {
					return nil, &SyntaxError{Source: src}
				}
				i++
				op = opShl
				if c == '>' {
					op = opShr
				}
			default:
				return nil, &SyntaxError{Source: src}
			}
			if !lastValue && !unary(op) {
				return nil, &SyntaxError{Source: src}
			}
			pushOp(op)
			i++
			lastValue = false
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top == opLparen {
			return nil, &SyntaxError{Source: src}
		}
		pushOut(token{kind: tokenOperator, op: top})
		stack = stack[:len(stack)-1]
	}

	if len(expr.tokens) == 0 {
		return nil, &SyntaxError{Source: src}
	}
	return expr, nil
}

// Evaluate runs the expression against syms. All arithmetic is 64-bit and
// wraps; negative intermediate results are two's-complement uint64 values,
// which is what the linker's truncation rules expect.
func (e *Expression) Evaluate(syms SymbolProvider) (uint64, error) {
	var stack []uint64

	pop := func() (uint64, bool) {
		if len(stack) == 0 {
			return 0, false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, true
	}

	for _, tok := range e.tokens {
		switch tok.kind {
		case tokenNumber:
			stack = append(stack, tok.value)

		case tokenSymbol:
			value, ok := syms.GetSymbol(tok.name)
			if !ok {
				return 0, &UnknownSymbolError{Name: tok.name}
			}
			stack = append(stack, value)

		case tokenOperator:
			if unary(tok.op) {
				v, ok := pop()
				if !ok {
					return 0, &SyntaxError{Source: e.source}
				}
				if tok.op == opNeg {
					stack = append(stack, -v)
				} else {
					stack = append(stack, ^v)
				}
				continue
			}

			b, okb := pop()
			a, oka := pop()
			if !oka || !okb {
				return 0, &SyntaxError{Source: e.source}
			}
			var v uint64
			switch tok.op {
			case opAdd:
				v = a + b
			case opSub:
				v = a - b
			case opMul:
				v = a * b
			case opDiv:
				if b == 0 {
					return 0, &SyntaxError{Source: e.source}
				}
				v = a / b
			case opMod:
				if b == 0 {
					return 0, &SyntaxError{Source: e.source}
				}
				v = a % b
			case opShl:
				v = a << (b & 63)
			case opShr:
				v = a >> (b & 63)
			case opAnd:
				v = a & b
			case opOr:
				v = a | b
			case opXor:
				v = a ^ b
			}
			stack = append(stack, v)
		}
	}

	if len(stack) != 1 {
		return 0, &SyntaxError{Source: e.source}
	}
	return stack[0], nil
}

// MustParse is a convenience for synthesized expressions whose source is a
// compile-time constant.
func MustParse(src string) *Expression {
	expr, err := Parse(src)
	if err != nil {
		panic(fmt.Sprintf("expression.MustParse: %v", err))
	}
	return expr
}
