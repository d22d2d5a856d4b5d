// Package bibtex parses BibTeX source text into a papershelf Library.
//
// The parser is a grammar-driven walk over the entry syntax: a file is a
// sequence of entries, each entry a type, an id, and zero or more
// `property = {value}` pairs. Attribute values are preserved as raw strings;
// no macro expansion or escape decoding is applied. Malformed syntax is a
// hard parse failure.
package bibtex

import (
	"fmt"
	"os"
	"sort"

	"github.com/papershelf/papershelf"
)

// Document is the result of parsing one BibTeX source.
type Document struct {
	// Library holds one entry per id. When an id occurs more than once in
	// the source, the last occurrence wins.
	Library papershelf.Library

	// Duplicates lists ids that occurred more than once, most frequent
	// first. Duplicates are diagnostics, not errors; parsing still
	// succeeds.
	Duplicates []string
}

// SyntaxError describes a hard parse failure with its source line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("bibtex: line %d: %s", e.Line, e.Msg)
}

// Parse parses BibTeX source text.
func Parse(src []byte) (*Document, error) {
	p := &parser{src: src, line: 1}

	var order []string
	counts := make(map[string]int)
	library := make(papershelf.Library)

	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		entry, err := p.parseEntry()
		if err != nil {
			return nil, err
		}
		if counts[entry.ID] == 0 {
			order = append(order, entry.ID)
		}
		counts[entry.ID]++
		library[entry.ID] = entry
	}

	var duplicates []string
	for _, id := range order {
		if counts[id] > 1 {
			duplicates = append(duplicates, id)
		}
	}
	sort.SliceStable(duplicates, func(i, j int) bool {
		return counts[duplicates[i]] > counts[duplicates[j]]
	})

	return &Document{Library: library, Duplicates: duplicates}, nil
}

// ParseFile parses the BibTeX file at the given path.
func ParseFile(path string) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(src)
}

type parser struct {
	src  []byte
	pos  int
	line int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	return p.src[p.pos]
}

func (p *parser) advance() byte {
	c := p.src[p.pos]
	p.pos++
	if c == '\n' {
		p.line++
	}
	return c
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\r', '\n':
			p.advance()
		default:
			return
		}
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(c byte) error {
	if p.eof() {
		return p.errorf("expected %q, got end of input", c)
	}
	if p.peek() != c {
		return p.errorf("expected %q, got %q", c, p.peek())
	}
	p.advance()
	return nil
}

// parseEntry parses one `@type {id, key = {value}, ...}` block.
func (p *parser) parseEntry() (*papershelf.Entry, error) {
	if err := p.expect('@'); err != nil {
		return nil, err
	}

	entryType := p.takeWhile(isLetter)
	if entryType == "" {
		return nil, p.errorf("expected entry type after '@'")
	}

	p.skipSpace()
	if err := p.expect('{'); err != nil {
		return nil, err
	}

	p.skipSpace()
	id := p.takeWhile(isIDChar)
	if id == "" {
		return nil, p.errorf("expected entry id")
	}

	entry := &papershelf.Entry{
		ID:         id,
		Type:       entryType,
		Attributes: make(map[string]string),
	}

	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("unterminated entry %q", id)
		}
		switch p.peek() {
		case '}':
			p.advance()
			return entry, nil
		case ',':
			p.advance()
			p.skipSpace()
			if !p.eof() && p.peek() == '}' {
				// Trailing comma.
				p.advance()
				return entry, nil
			}
			name, value, err := p.parseProperty()
			if err != nil {
				return nil, err
			}
			entry.Attributes[name] = value
		default:
			return nil, p.errorf("expected ',' or '}' in entry %q, got %q", id, p.peek())
		}
	}
}

// parseProperty parses one `name = {value}` pair.
func (p *parser) parseProperty() (string, string, error) {
	name := p.takeWhile(isPropertyChar)
	if name == "" {
		return "", "", p.errorf("expected property name")
	}

	p.skipSpace()
	if err := p.expect('='); err != nil {
		return "", "", err
	}
	p.skipSpace()

	value, err := p.parseValue()
	if err != nil {
		return "", "", err
	}
	return name, value, nil
}

// parseValue parses a braced value, preserving nested braces and content
// verbatim.
func (p *parser) parseValue() (string, error) {
	if err := p.expect('{'); err != nil {
		return "", err
	}
	start := p.pos
	depth := 1
	for !p.eof() {
		switch p.advance() {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return string(p.src[start : p.pos-1]), nil
			}
		}
	}
	return "", p.errorf("unterminated value")
}

func (p *parser) takeWhile(pred func(byte) bool) string {
	start := p.pos
	for !p.eof() && pred(p.peek()) {
		p.advance()
	}
	return string(p.src[start:p.pos])
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIDChar(c byte) bool {
	switch c {
	case ',', '{', '}', '=', ' ', '\t', '\r', '\n':
		return false
	}
	return true
}

func isPropertyChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}
