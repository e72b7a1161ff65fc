package log

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

type Level uint8

const (
	Silent Level = iota
	Error
	Info
	Debug
)

var (
	verbosity = Error
	indent    int
	colored   = term.IsTerminal(int(os.Stderr.Fd()))
)

func SetVerbosity(level Level) {
	if level > Debug {
		level = Debug
	}
	verbosity = level
}

// Indent increases the nesting of subsequent messages. Passes use it to
// group per-region detail under the pass banner.
func Indent() {
	indent++
}

func Dedent() {
	if indent > 0 {
		indent--
	}
}

func Printf(level Level, format string, args ...any) {
	if level > verbosity || level == Silent {
		return
	}

	prefix := ""
	if level == Error {
		if colored {
			prefix = "\033[0;1;31merror\033[0m: "
		} else {
			prefix = "error: "
		}
	}

	fmt.Fprintf(os.Stderr, "%s%s%s\n",
		strings.Repeat("  ", indent), prefix, fmt.Sprintf(format, args...))
}
