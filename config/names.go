package config

import (
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// most file systems limit name to 255 bytes
const maxFileName = 255

// CleanFileName makes name taken from URL or template usable as a single file
// name: separators, reserved and control characters are removed, leading dots
// and spaces trimmed and long names cut.
func CleanFileName(in string) string {
	out := strings.Map(func(sym rune) rune {
		if unicode.IsControl(sym) || strings.ContainsRune(reservedChars+string(os.PathSeparator)+string(os.PathListSeparator), sym) {
			return -1
		}
		return sym
	}, in)
	out = strings.TrimRight(strings.TrimLeft(out, ". "), " ")
	if len(out) > maxFileName {
		cut := maxFileName
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	if out == "" {
		out = "_bad_file_name_"
	}
	return out
}
