package css

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

var errInvalidUTF8 = errors.New("text is not valid UTF-8")

// at-rules parser descends into, bodies of others are parsed separately.
var knownBlocks = map[string]bool{
	"font-face": true,
	"page":      true,
	"document":  true,
	"keyframes": true,
	"layer":     true,
	"media":     true,
	"supports":  true,
}

// Parser parses stylesheets into node trees and serializes them back.
type Parser struct {
	log    *zap.Logger
	minify bool
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// WithMinify switches Format to compact output.
func (p *Parser) WithMinify(on bool) *Parser {
	p.minify = on
	return p
}

// Parse parses text into a Sheet. Malformed fragments are dropped and parsing
// continues, unterminated blocks are closed at the end of text. Source
// identifies what is being parsed for logging. ParseError is returned only
// when text cannot be tokenized at all.
func (p *Parser) Parse(source, text string) (sheet *Sheet, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Debug("CSS parser panic", zap.String("source", source), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			sheet, err = nil, &ParseError{Source: source, Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	if !utf8.ValidString(text) {
		return nil, &ParseError{Source: source, Err: errInvalidUTF8}
	}
	if kind, _ := filetype.Match([]byte(text)); kind != filetype.Unknown {
		return nil, &ParseError{Source: source, Err: fmt.Errorf("binary content detected (%s)", kind.MIME.Value)}
	}

	p.log.Debug("Parsing CSS", zap.String("source", source), zap.Int("bytes", len(text)))

	sheet = &Sheet{Source: source, Text: text}
	sheet.Nodes = p.parseFragment(sheet, text, 0, false)
	return sheet, nil
}

type frame struct {
	node      *Node
	raw       bool
	bodyStart int
}

type builder struct {
	p     *Parser
	sheet *Sheet
	text  string
	base  int
	roots []*Node
	stack []frame
}

func (b *builder) add(n *Node) {
	if len(b.stack) > 0 {
		top := b.stack[len(b.stack)-1].node
		top.Children = append(top.Children, n)
		return
	}
	b.roots = append(b.roots, n)
}

func (b *builder) push(n *Node, raw bool, bodyStart int) {
	b.add(n)
	b.stack = append(b.stack, frame{node: n, raw: raw, bodyStart: bodyStart})
}

func (b *builder) pop(end int) {
	if len(b.stack) == 0 {
		return
	}
	f := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	f.node.End = b.base + end

	if f.raw {
		bodyEnd := end
		if bodyEnd > f.bodyStart && b.text[bodyEnd-1] == '}' {
			bodyEnd--
		}
		if body := b.text[f.bodyStart:bodyEnd]; strings.TrimSpace(body) != "" {
			f.node.Children = b.p.parseFragment(b.sheet, body, b.base+f.bodyStart, !strings.Contains(body, "{"))
		}
	}
}

func (b *builder) warn(err error, pos int) {
	msg := fmt.Sprintf("offset %d: %v", b.base+pos, err)
	b.sheet.Warnings = append(b.sheet.Warnings, msg)
	b.p.log.Debug("Skipping malformed CSS fragment", zap.String("source", b.sheet.Source), zap.String("details", msg))
}

// parseFragment parses text located at base offset of the sheet. When inline
// is set text is treated as declaration list.
func (p *Parser) parseFragment(sheet *Sheet, text string, base int, inline bool) []*Node {
	b := &builder{p: p, sheet: sheet, text: text, base: base}
	parser := css.NewParser(parse.NewInputString(text), inline)

	var stalled int
	for {
		pos := parser.Offset()
		gt, _, data := parser.Next()
		end := parser.Offset()

		if end == pos && gt == css.ErrorGrammar {
			if stalled++; stalled > 2 {
				break
			}
		} else {
			stalled = 0
		}

		switch gt {
		case css.ErrorGrammar:
			if !parser.HasParseError() {
				for len(b.stack) > 0 {
					b.pop(len(text))
				}
				return b.roots
			}
			b.warn(parser.Err(), pos)

		case css.CommentGrammar:
			start := skipTrivia(text, pos, false)
			b.add(&Node{Kind: KindComment, Text: string(data), Start: base + start, End: base + end})

		case css.AtRuleGrammar:
			start := skipTrivia(text, pos, true)
			b.add(&Node{
				Kind:   KindAtRule,
				Name:   atRuleName(data),
				Params: tokensText(parser.Values()),
				Start:  base + start,
				End:    base + statementEnd(text, start, end),
			})

		case css.BeginAtRuleGrammar:
			start := skipTrivia(text, pos, true)
			n := &Node{
				Kind:   KindAtRule,
				Name:   atRuleName(data),
				Params: tokensText(parser.Values()),
				Block:  true,
				Start:  base + start,
			}
			b.push(n, !knownBlocks[unprefixed(n.Name)], end)

		case css.BeginRulesetGrammar:
			start := skipTrivia(text, pos, true)
			b.push(&Node{Kind: KindRule, Selector: tokensText(parser.Values()), Start: base + start}, false, end)

		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			b.pop(end)

		case css.DeclarationGrammar:
			start := skipTrivia(text, pos, true)
			b.add(&Node{
				Kind:     KindDeclaration,
				Property: string(data),
				Value:    spaceImportant(tokensText(parser.Values())),
				Start:    base + start,
				End:      base + statementEnd(text, start, end),
			})

		case css.CustomPropertyGrammar:
			start := skipTrivia(text, pos, true)
			var value string
			if values := parser.Values(); len(values) > 0 {
				value = strings.TrimSpace(string(values[0].Data))
			}
			b.add(&Node{
				Kind:     KindDeclaration,
				Property: string(data),
				Value:    value,
				Start:    base + start,
				End:      base + statementEnd(text, start, end),
			})

		case css.TokenGrammar:
			// raw at-rule bodies and CDO/CDC markers
		}
	}

	p.log.Debug("CSS parser made no progress, stopping", zap.String("source", sheet.Source), zap.Int("offset", base+parser.Offset()))
	for len(b.stack) > 0 {
		b.pop(len(text))
	}
	return b.roots
}

func atRuleName(data []byte) string {
	return strings.TrimPrefix(string(data), "@")
}

// unprefixed strips vendor prefix: "-webkit-keyframes" -> "keyframes".
func unprefixed(name string) string {
	if strings.HasPrefix(name, "-") {
		if i := strings.IndexByte(name[1:], '-'); i != -1 {
			return name[i+2:]
		}
	}
	return name
}

func tokensText(tokens []css.Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.Write(t.Data)
	}
	return strings.TrimSpace(sb.String())
}

// spaceImportant restores space the tokenizer drops before "!important".
func spaceImportant(value string) string {
	const important = "!important"
	i := len(value) - len(important)
	if i > 0 && strings.EqualFold(value[i:], important) && value[i-1] != ' ' {
		return value[:i] + " " + value[i:]
	}
	return value
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// skipTrivia moves pos past whitespace and, optionally, comments and stray
// semicolons the parser consumes before the next grammar element.
func skipTrivia(text string, pos int, comments bool) int {
	for pos < len(text) {
		switch {
		case isSpace(text[pos]):
			pos++
		case comments && text[pos] == ';':
			pos++
		case comments && strings.HasPrefix(text[pos:], "/*"):
			i := strings.Index(text[pos+2:], "*/")
			if i < 0 {
				return len(text)
			}
			pos += i + 4
		default:
			return pos
		}
	}
	return pos
}

// statementEnd excludes closing brace of the enclosing block the parser
// consumes together with the last statement.
func statementEnd(text string, start, end int) int {
	if end > start && text[end-1] == '}' {
		end--
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return end
}
