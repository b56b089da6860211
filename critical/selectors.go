package critical

import (
	"regexp"
	"strings"
)

// pseudo-classes and pseudo-elements which never match in a freshly loaded
// page or cannot be passed to querySelectorAll
var (
	pseudoElement = regexp.MustCompile(`::[a-zA-Z-]+(\([^)]*\))?`)
	pseudoState   = regexp.MustCompile(`:(?i:hover|focus-within|focus-visible|focus|active|visited|target|before|after|first-line|first-letter|-webkit-[a-z-]+|-moz-[a-z-]+|-ms-[a-z-]+)\b(\([^)]*\))?`)
	dangling      = regexp.MustCompile(`\s*[>+~]\s*$`)
)

// Matchable reduces selector to the form querySelectorAll can evaluate in a
// static page. Empty string means selector has nothing left to match.
func Matchable(selector string) string {
	s := strings.TrimSpace(strip(selector))
	for {
		t := dangling.ReplaceAllString(s, "")
		if t == s {
			break
		}
		s = strings.TrimSpace(t)
	}
	return s
}

// strip removes pseudo-elements and state pseudo-classes. Functional
// pseudo-classes are dropped as a whole when their argument holds one of
// them, so ":not(:hover)" goes away instead of leaving ":not()".
func strip(selector string) string {
	var (
		sb   strings.Builder
		from int
	)
	for i := 0; i < len(selector); i++ {
		switch c := selector[i]; c {
		case '"', '\'':
			if j := strings.IndexByte(selector[i+1:], c); j >= 0 {
				i += j + 1
			} else {
				i = len(selector)
			}
		case '(':
			name := pseudoName(selector[from:i])
			end := closingParen(selector, i)
			start := i - len(name)
			sb.WriteString(stripPlain(selector[from:start]))
			arg := selector[i+1 : min(end, len(selector))]
			switch {
			case name == "":
				sb.WriteString(selector[start:min(end+1, len(selector))])
			case strings.HasPrefix(name, "::"), whole(pseudoState, name), strip(arg) != arg:
				// dropped
			default:
				sb.WriteString(selector[start:min(end+1, len(selector))])
			}
			from, i = min(end+1, len(selector)), end
		}
	}
	sb.WriteString(stripPlain(selector[from:]))
	return sb.String()
}

func stripPlain(s string) string {
	s = pseudoElement.ReplaceAllString(s, "")
	return pseudoState.ReplaceAllString(s, "")
}

// pseudoName returns ":name" or "::name" ending s, empty when s does not end
// with pseudo-class name.
func pseudoName(s string) string {
	i := len(s)
	for i > 0 && isNameChar(s[i-1]) {
		i--
	}
	if i == len(s) || i == 0 || s[i-1] != ':' {
		return ""
	}
	i--
	if i > 0 && s[i-1] == ':' {
		i--
	}
	return s[i:]
}

func isNameChar(c byte) bool {
	return c == '-' || c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// closingParen returns index of parenthesis closing the one at open or
// len(s) when selector ends first.
func closingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\'':
			if j := strings.IndexByte(s[i+1:], c); j >= 0 {
				i += j + 1
			} else {
				return len(s)
			}
		case '(':
			depth++
		case ')':
			if depth--; depth == 0 {
				return i
			}
		}
	}
	return len(s)
}

func whole(re *regexp.Regexp, s string) bool {
	loc := re.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}
