package selector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/specialistvlad/quire/internal/location"
	"github.com/zclconf/go-cty/cty"
)

// SyntaxError reports a malformed selector.
type SyntaxError struct {
	Input  string
	Offset int
	Msg    string
}

// Error implements the error interface for SyntaxError.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid selector %q at offset %d: %s", e.Input, e.Offset, e.Msg)
}

// Parse reads a selector written in the selector language.
func Parse(input string) (Selector, error) {
	p := &parser{input: input}
	p.next()
	s, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %s", p.tok)
	}
	return s, nil
}

// MustParse is like Parse but panics on malformed input. It is meant for
// selectors built into the program.
func MustParse(input string) Selector {
	s, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return s
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokLabel
	tokLocation
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind  tokenKind
	text  string
	start int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return strconv.Quote(t.text)
}

type parser struct {
	input string
	pos   int
	tok   token
	err   *SyntaxError
}

func (p *parser) errorf(format string, args ...any) error {
	if p.err != nil {
		return p.err
	}
	return &SyntaxError{Input: p.input, Offset: p.tok.start, Msg: fmt.Sprintf(format, args...)}
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || c >= '0' && c <= '9'
}

func isLabelPart(c byte) bool {
	return isIdentPart(c) || c == '.' || c == ':'
}

// next advances to the following token. Lexing errors are recorded and
// surface through the next errorf call.
func (p *parser) next() {
	for p.pos < len(p.input) && strings.ContainsRune(" \t\r\n", rune(p.input[p.pos])) {
		p.pos++
	}
	start := p.pos
	if p.pos >= len(p.input) {
		p.tok = token{kind: tokEOF, start: start}
		return
	}

	c := p.input[p.pos]
	switch {
	case isIdentStart(c):
		for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
			p.pos++
		}
		p.tok = token{kind: tokIdent, text: p.input[start:p.pos], start: start}
	case c == '-' || c >= '0' && c <= '9':
		p.pos++
		for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
			p.pos++
		}
		p.tok = token{kind: tokNumber, text: p.input[start:p.pos], start: start}
	case c == '<':
		p.pos++
		for p.pos < len(p.input) && isLabelPart(p.input[p.pos]) {
			p.pos++
		}
		if p.pos >= len(p.input) || p.input[p.pos] != '>' || p.pos == start+1 {
			p.fail(start, "unterminated label")
			return
		}
		p.pos++
		p.tok = token{kind: tokLabel, text: p.input[start+1 : p.pos-1], start: start}
	case c == '@':
		p.pos++
		for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
			p.pos++
		}
		p.tok = token{kind: tokLocation, text: p.input[start:p.pos], start: start}
	case c == '"':
		p.pos++
		for p.pos < len(p.input) && p.input[p.pos] != '"' {
			if p.input[p.pos] == '\\' {
				p.pos++
			}
			p.pos++
		}
		if p.pos >= len(p.input) {
			p.fail(start, "unterminated string")
			return
		}
		p.pos++
		p.tok = token{kind: tokString, text: p.input[start:p.pos], start: start}
	case strings.IndexByte("[]=,()|&!", c) >= 0:
		p.pos++
		p.tok = token{kind: tokPunct, text: string(c), start: start}
	default:
		p.fail(start, fmt.Sprintf("unexpected character %q", c))
	}
}

func (p *parser) fail(offset int, msg string) {
	if p.err == nil {
		p.err = &SyntaxError{Input: p.input, Offset: offset, Msg: msg}
	}
	p.pos = len(p.input)
	p.tok = token{kind: tokEOF, start: offset}
}

func (p *parser) isPunct(text string) bool {
	return p.tok.kind == tokPunct && p.tok.text == text
}

func (p *parser) expect(text string) error {
	if !p.isPunct(text) {
		return p.errorf("expected %q, found %s", text, p.tok)
	}
	p.next()
	return nil
}

func (p *parser) parseOr() (Selector, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	items := []Selector{first}
	for p.isPunct("|") {
		p.next()
		item, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if len(items) == 1 {
		return first, nil
	}
	return Or{Items: items}, nil
}

func (p *parser) parseAnd() (Selector, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	items := []Selector{first}
	for p.isPunct("&") {
		p.next()
		item, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if len(items) == 1 {
		return first, nil
	}
	return And{Items: items}, nil
}

func (p *parser) parseUnary() (Selector, error) {
	if p.isPunct("!") {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Selector, error) {
	tok := p.tok
	switch tok.kind {
	case tokLabel:
		p.next()
		return Label{Name: tok.text}, nil
	case tokLocation:
		loc, err := location.Parse(tok.text)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		p.next()
		return Loc{Location: loc}, nil
	case tokIdent:
		p.next()
		if (tok.text == "before" || tok.text == "after") && p.isPunct("(") {
			return p.parseTemporal(tok.text)
		}
		s := Elem{Kind: tok.text}
		if p.isPunct("[") {
			p.next()
			where, err := p.parseFields()
			if err != nil {
				return nil, err
			}
			s.Where = where
		}
		return s, nil
	case tokPunct:
		if tok.text == "(" {
			p.next()
			inner, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, p.errorf("expected a selector, found %s", tok)
}

func (p *parser) parseTemporal(which string) (Selector, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	inner, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	target, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	inclusive := true
	if p.isPunct(",") {
		p.next()
		if p.tok.kind != tokIdent || (p.tok.text != "inclusive" && p.tok.text != "exclusive") {
			return nil, p.errorf("expected 'inclusive' or 'exclusive', found %s", p.tok)
		}
		inclusive = p.tok.text == "inclusive"
		p.next()
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if which == "before" {
		return Before{Inner: inner, Target: target, Inclusive: inclusive}, nil
	}
	return After{Inner: inner, Target: target, Inclusive: inclusive}, nil
}

func (p *parser) parseFields() ([]Field, error) {
	var fields []Field
	for {
		if p.tok.kind != tokIdent {
			return nil, p.errorf("expected a field name, found %s", p.tok)
		}
		name := p.tok.text
		p.next()
		if err := p.expect("="); err != nil {
			return nil, err
		}
		value, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: name, Value: value})

		if p.isPunct(",") {
			p.next()
			continue
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return fields, nil
	}
}

func (p *parser) parseLiteral() (cty.Value, error) {
	tok := p.tok
	switch tok.kind {
	case tokString:
		s, err := strconv.Unquote(tok.text)
		if err != nil {
			return cty.NilVal, p.errorf("invalid string literal: %v", err)
		}
		p.next()
		return cty.StringVal(s), nil
	case tokNumber:
		v, err := cty.ParseNumberVal(tok.text)
		if err != nil {
			return cty.NilVal, p.errorf("invalid number %s", tok)
		}
		p.next()
		return v, nil
	case tokIdent:
		p.next()
		switch tok.text {
		case "true":
			return cty.True, nil
		case "false":
			return cty.False, nil
		}
		return cty.StringVal(tok.text), nil
	}
	return cty.NilVal, p.errorf("expected a value, found %s", tok)
}
