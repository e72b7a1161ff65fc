package linker

import "fmt"

type ErrorKind uint8

const (
	ErrorDuplicateSymbol ErrorKind = iota
	ErrorUnknownSymbol
	ErrorInvalidSyntax
	ErrorValueTruncated
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorDuplicateSymbol:
		return "duplicate symbol"
	case ErrorUnknownSymbol:
		return "unknown symbol"
	case ErrorInvalidSyntax:
		return "invalid syntax"
	case ErrorValueTruncated:
		return "value truncated"
	}
	return "unknown error"
}

// LinkError is one accumulated diagnostic. All four kinds are non-fatal: the
// link runs to completion and the caller decides what a non-empty error list
// means.
type LinkError struct {
	Kind    ErrorKind
	Region  string
	Address uint64
	File    string // empty when the region has no source map entry here
	Line    int
	Detail  string // offending symbol name, when relevant
}

func (e *LinkError) Error() string {
	loc := fmt.Sprintf("%s+%#x", e.Region, e.Address)
	if e.File != "" {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s '%s'", loc, e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s", loc, e.Kind)
}

func (ctx *Context) addError(kind ErrorKind, region *Region, address uint64, detail string) {
	err := &LinkError{
		Kind:    kind,
		Region:  region.Name,
		Address: address,
		Detail:  detail,
	}
	if file, line, ok := region.LocateSource(address); ok {
		err.File = file
		err.Line = line
	}
	ctx.Errors = append(ctx.Errors, err)
}
