//go:build !windows

package config

import (
	"os"

	"golang.org/x/term"
)

// characters not allowed in file names in addition to path separators
const reservedChars = ""

// EnableColorOutput checks if colorized output is possible.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
