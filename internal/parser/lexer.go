package parser

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// tokenKind enumerates the lexical token types of the DSL surface syntax.
type tokenKind int

const (
	tokLParen   tokenKind = iota // (
	tokRParen                    // )
	tokLBracket                  // [
	tokRBracket                  // ]
	tokLBrace                    // {
	tokRBrace                    // }
	tokKeyword                   // :name
	tokSymbol                    // @name
	tokAttrRef                   // @attr{uuid}
	tokArrow                     // ->
	tokString                    // "..."
	tokNumber                    // 42, -3.5
	tokBool                      // true / false
	tokUUID                      // bare uuid literal
	tokIdent                     // verb names and other bare identifiers
	tokEOF
)

// token is one lexical unit with its 1-based source position.
type token struct {
	kind tokenKind
	text string // decoded text (string contents unescaped, keyword without ':')
	uuid uuid.UUID
	line int
	col  int
}

// lexer produces tokens from DSL source text. It tracks line/column so every
// downstream diagnostic carries a precise position.
type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

// skipSpace consumes whitespace (commas included) and ;; comments.
func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == ',':
			l.advance()
		case c == ';':
			// Comment runs to end of line.
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

// next returns the next token or a positioned ParseError.
func (l *lexer) next() (token, *ParseError) {
	l.skipSpace()
	line, col := l.line, l.col

	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: line, col: col}, nil
	}

	c := l.peek()
	switch c {
	case '(':
		l.advance()
		return token{kind: tokLParen, line: line, col: col}, nil
	case ')':
		l.advance()
		return token{kind: tokRParen, line: line, col: col}, nil
	case '[':
		l.advance()
		return token{kind: tokLBracket, line: line, col: col}, nil
	case ']':
		l.advance()
		return token{kind: tokRBracket, line: line, col: col}, nil
	case '{':
		l.advance()
		return token{kind: tokLBrace, line: line, col: col}, nil
	case '}':
		l.advance()
		return token{kind: tokRBrace, line: line, col: col}, nil
	case ':':
		l.advance()
		name := l.scanIdent()
		if name == "" {
			return token{}, errAt(ErrUnexpectedToken, line, col, "expected argument name after ':'")
		}
		return token{kind: tokKeyword, text: name, line: line, col: col}, nil
	case '@':
		return l.scanRef(line, col)
	case '"':
		return l.scanString(line, col)
	case '-':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '>' {
			l.advance()
			l.advance()
			return token{kind: tokArrow, line: line, col: col}, nil
		}
		return l.scanNumber(line, col)
	}

	if c >= '0' && c <= '9' {
		// A bare UUID starts with hex digits; disambiguate before numbers.
		if tok, ok := l.tryScanUUID(line, col); ok {
			return tok, nil
		}
		return l.scanNumber(line, col)
	}

	if isIdentStart(rune(c)) {
		if tok, ok := l.tryScanUUID(line, col); ok {
			return tok, nil
		}
		word := l.scanIdent()
		switch word {
		case "true":
			return token{kind: tokBool, text: "true", line: line, col: col}, nil
		case "false":
			return token{kind: tokBool, text: "false", line: line, col: col}, nil
		}
		return token{kind: tokIdent, text: word, line: line, col: col}, nil
	}

	return token{}, errAt(ErrUnexpectedToken, line, col, "unexpected character %q", string(c))
}

// scanRef scans @name or @attr{uuid}.
func (l *lexer) scanRef(line, col int) (token, *ParseError) {
	l.advance() // consume '@'
	name := l.scanIdent()
	if name == "" {
		return token{}, errAt(ErrUnexpectedToken, line, col, "expected name after '@'")
	}

	if name == "attr" && l.peek() == '{' {
		l.advance() // consume '{'
		start := l.pos
		for l.pos < len(l.src) && l.peek() != '}' {
			l.advance()
		}
		if l.pos >= len(l.src) {
			return token{}, errAt(ErrUnexpectedEOF, line, col, "unterminated @attr{...} reference")
		}
		raw := l.src[start:l.pos]
		l.advance() // consume '}'

		// Tolerate the legacy "uuid:display-name" form; the name part is
		// advisory only.
		if i := strings.IndexByte(raw, ':'); i >= 0 {
			raw = raw[:i]
		}
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return token{}, errAt(ErrInvalidUUID, line, col, "invalid UUID in @attr{%s}", raw)
		}
		return token{kind: tokAttrRef, uuid: id, line: line, col: col}, nil
	}

	return token{kind: tokSymbol, text: name, line: line, col: col}, nil
}

// scanString scans a double-quoted string with backslash escapes.
func (l *lexer) scanString(line, col int) (token, *ParseError) {
	l.advance() // consume opening quote
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token{}, errAt(ErrUnterminatedString, line, col, "unterminated string literal")
		}
		c := l.advance()
		switch c {
		case '"':
			return token{kind: tokString, text: b.String(), line: line, col: col}, nil
		case '\\':
			if l.pos >= len(l.src) {
				return token{}, errAt(ErrUnterminatedString, line, col, "unterminated string literal")
			}
			esc := l.advance()
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				return token{}, errAt(ErrUnexpectedToken, l.line, l.col-1, "unknown escape \\%s", string(esc))
			}
		default:
			b.WriteByte(c)
		}
	}
}

// scanNumber scans an integer or decimal literal, optionally negative.
func (l *lexer) scanNumber(line, col int) (token, *ParseError) {
	start := l.pos
	if l.peek() == '-' {
		l.advance()
	}
	digits := 0
	for l.pos < len(l.src) {
		c := l.peek()
		if (c >= '0' && c <= '9') || c == '.' {
			if c >= '0' && c <= '9' {
				digits++
			}
			l.advance()
			continue
		}
		break
	}
	text := l.src[start:l.pos]
	if digits == 0 {
		return token{}, errAt(ErrBadNumber, line, col, "malformed number %q", text)
	}
	return token{kind: tokNumber, text: text, line: line, col: col}, nil
}

// tryScanUUID attempts to read a bare 36-char UUID literal at the current
// position. Does not consume input on failure.
func (l *lexer) tryScanUUID(line, col int) (token, bool) {
	const uuidLen = 36
	if l.pos+uuidLen > len(l.src) {
		return token{}, false
	}
	candidate := l.src[l.pos : l.pos+uuidLen]
	id, err := uuid.Parse(candidate)
	if err != nil {
		return token{}, false
	}
	// Must end at a token boundary, not run into an identifier tail.
	if l.pos+uuidLen < len(l.src) && isIdentPart(rune(l.src[l.pos+uuidLen])) {
		return token{}, false
	}
	for i := 0; i < uuidLen; i++ {
		l.advance()
	}
	return token{kind: tokUUID, uuid: id, line: line, col: col}, true
}

// scanIdent scans an identifier: letters, digits, '-', '_', '.'.
func (l *lexer) scanIdent() string {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(rune(l.peek())) {
		l.advance()
	}
	return l.src[start:l.pos]
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.'
}
