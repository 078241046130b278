// Package parser converts onboarding-DSL source text into an AST.
//
// The surface syntax is S-expression verb calls:
//
//	(cbu.create :name "Acme Corp" :jurisdiction "US" -> @c)
//	(entity.set-attribute :entity-id @c :attribute @attr{3020d46f-...} :value "Jane")
//
// Parsing is a pure function from text to ast.Program or *ParseError; it has
// no side effects and validates syntax only. Verb validity, argument schemas,
// and symbol reference ordering are the compiler's concern.
//
// Commas are whitespace, so generated sheets may separate list elements and
// map entries either way: [1, 2] and [1 2] parse identically.
//
// Every error carries a 1-based line/column for user-facing diagnostics.
package parser

import (
	"strconv"
	"strings"

	"github.com/halcyonfs/obdsl/internal/ast"
)

// Parse parses DSL source text into a Program.
func Parse(src string) (ast.Program, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.bump(); err != nil {
		return nil, err
	}

	var prog ast.Program
	for p.cur.kind != tokEOF {
		call, err := p.parseCall()
		if err != nil {
			return nil, err
		}
		prog = append(prog, call)
	}
	return prog, nil
}

type parser struct {
	lex *lexer
	cur token
}

// bump advances to the next token.
func (p *parser) bump() error {
	tok, perr := p.lex.next()
	if perr != nil {
		return perr
	}
	p.cur = tok
	return nil
}

// parseCall parses one top-level (domain.verb :arg value ... [-> @name]) form.
func (p *parser) parseCall() (ast.VerbCall, error) {
	var call ast.VerbCall

	if p.cur.kind != tokLParen {
		return call, errAt(ErrUnexpectedToken, p.cur.line, p.cur.col, "expected '(' to start a verb call")
	}
	call.Line, call.Col = p.cur.line, p.cur.col
	if err := p.bump(); err != nil {
		return call, err
	}

	if p.cur.kind == tokEOF {
		return call, errAt(ErrUnexpectedEOF, p.cur.line, p.cur.col, "unterminated verb call")
	}
	if p.cur.kind != tokIdent {
		return call, errAt(ErrUnexpectedToken, p.cur.line, p.cur.col, "expected verb name")
	}
	domain, verb, ok := splitVerb(p.cur.text)
	if !ok {
		return call, errAt(ErrBadVerbName, p.cur.line, p.cur.col,
			"verb name must be domain.verb, got %q", p.cur.text)
	}
	call.Domain, call.Verb = domain, verb
	if err := p.bump(); err != nil {
		return call, err
	}

	for {
		switch p.cur.kind {
		case tokRParen:
			if err := p.bump(); err != nil {
				return call, err
			}
			return call, nil

		case tokEOF:
			return call, errAt(ErrUnexpectedEOF, call.Line, call.Col, "unterminated verb call %q", call.FullVerb())

		case tokArrow:
			// Trailing capture: -> @name
			if err := p.bump(); err != nil {
				return call, err
			}
			if p.cur.kind != tokSymbol {
				return call, errAt(ErrUnexpectedToken, p.cur.line, p.cur.col, "expected @name after '->'")
			}
			call.Binding = p.cur.text
			if err := p.bump(); err != nil {
				return call, err
			}

		case tokKeyword:
			name := p.cur.text
			if err := p.bump(); err != nil {
				return call, err
			}
			// Legacy capture spelling: :as @name. Normalized to Binding so
			// downstream code sees one representation.
			if name == "as" && p.cur.kind == tokSymbol {
				call.Binding = p.cur.text
				if err := p.bump(); err != nil {
					return call, err
				}
				continue
			}
			val, err := p.parseValue()
			if err != nil {
				return call, err
			}
			call.Args = append(call.Args, ast.Arg{Name: name, Value: val})

		default:
			return call, errAt(ErrUnexpectedToken, p.cur.line, p.cur.col,
				"expected :argument, '->', or ')' in %q", call.FullVerb())
		}
	}
}

// parseValue parses one value: literal, reference, list, or map.
func (p *parser) parseValue() (ast.Value, error) {
	tok := p.cur
	switch tok.kind {
	case tokString:
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.String(tok.text), nil

	case tokNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, errAt(ErrBadNumber, tok.line, tok.col, "malformed number %q", tok.text)
		}
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.Number(f), nil

	case tokBool:
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.Bool(tok.text == "true"), nil

	case tokSymbol:
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.SymbolRef(tok.text), nil

	case tokAttrRef:
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.AttrRef(tok.uuid), nil

	case tokUUID:
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.RawUUID(tok.uuid), nil

	case tokIdent:
		// Bare identifiers are accepted as string values (enum shorthand:
		// :role DIRECTOR is equivalent to :role "DIRECTOR").
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.String(tok.text), nil

	case tokLBracket:
		return p.parseList()

	case tokLBrace:
		return p.parseMap()

	case tokEOF:
		return nil, errAt(ErrUnexpectedEOF, tok.line, tok.col, "expected value")

	default:
		return nil, errAt(ErrUnexpectedToken, tok.line, tok.col, "expected value")
	}
}

// parseList parses [v1 v2 ...].
func (p *parser) parseList() (ast.Value, error) {
	open := p.cur
	if err := p.bump(); err != nil {
		return nil, err
	}
	list := ast.List{}
	for {
		switch p.cur.kind {
		case tokRBracket:
			if err := p.bump(); err != nil {
				return nil, err
			}
			return list, nil
		case tokEOF:
			return nil, errAt(ErrUnexpectedEOF, open.line, open.col, "unterminated list")
		default:
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
	}
}

// parseMap parses {:key value ...}.
func (p *parser) parseMap() (ast.Value, error) {
	open := p.cur
	if err := p.bump(); err != nil {
		return nil, err
	}
	m := ast.Map{}
	for {
		switch p.cur.kind {
		case tokRBrace:
			if err := p.bump(); err != nil {
				return nil, err
			}
			return m, nil
		case tokEOF:
			return nil, errAt(ErrUnexpectedEOF, open.line, open.col, "unterminated map")
		case tokKeyword:
			key := p.cur.text
			if err := p.bump(); err != nil {
				return nil, err
			}
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			m[key] = v
		default:
			return nil, errAt(ErrUnexpectedToken, p.cur.line, p.cur.col, "expected :key in map")
		}
	}
}

// splitVerb splits "domain.verb" at the first dot. Verb names may themselves
// contain dashes (entity.create-person) but not further dots.
func splitVerb(s string) (domain, verb string, ok bool) {
	i := strings.IndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	domain, verb = s[:i], s[i+1:]
	if strings.ContainsRune(verb, '.') {
		return "", "", false
	}
	return domain, verb, true
}
