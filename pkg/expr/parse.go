package expr

import (
	"fmt"
	"strconv"
	"unicode"
)

// SyntaxError reports a malformed condition string.
type SyntaxError struct {
	Input  string
	Offset int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("condition %q: offset %d: %s", e.Input, e.Offset, e.Reason)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokOp
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// Parse converts a condition string into an AST.
func Parse(input string) (Expr, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
	return e, nil
}

// MustParse is like Parse but panics on error. Intended for tests and literals.
func MustParse(input string) Expr {
	e, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return e
}

// IsMetricName reports whether name can appear as a metric in a condition string:
// a letter or '_' followed by letters, digits, '_', '.' or '-'.
func IsMetricName(name string) bool {
	for i, r := range name {
		if (i == 0 && !identStart(r)) || !identPart(r) {
			return false
		}
	}
	return name != ""
}

func identStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func identPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-'
}

func lex(input string) ([]token, error) {
	var toks []token
	rs := []rune(input)
	i := 0
	for i < len(rs) {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case r == '&' || r == '|':
			if i+1 >= len(rs) || rs[i+1] != r {
				return nil, &SyntaxError{Input: input, Offset: i, Reason: fmt.Sprintf("expected %q", string([]rune{r, r}))}
			}
			kind := tokAnd
			if r == '|' {
				kind = tokOr
			}
			toks = append(toks, token{kind, string([]rune{r, r}), i})
			i += 2
		case r == '>' || r == '<':
			op := string(r)
			if i+1 < len(rs) && rs[i+1] == '=' {
				op += "="
			}
			toks = append(toks, token{tokOp, op, i})
			i += len(op)
		case r == '!':
			toks = append(toks, token{tokNot, "!", i})
			i++
		case identStart(r):
			start := i
			for i < len(rs) && identPart(rs[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, string(rs[start:i]), start})
		case unicode.IsDigit(r) || r == '-' || r == '+' || r == '.':
			start := i
			i++
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.' || rs[i] == 'e' || rs[i] == 'E' ||
				((rs[i] == '-' || rs[i] == '+') && (rs[i-1] == 'e' || rs[i-1] == 'E'))) {
				i++
			}
			toks = append(toks, token{tokNumber, string(rs[start:i]), start})
		default:
			return nil, &SyntaxError{Input: input, Offset: i, Reason: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	toks = append(toks, token{tokEOF, "", len(rs)})
	return toks, nil
}

type parser struct {
	input string
	toks  []token
	pos   int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Input: p.input, Offset: t.pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (Expr, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for p.peek().kind == tokOr {
		p.next()
		t, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return AnyOf(terms...), nil
}

func (p *parser) parseAnd() (Expr, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for p.peek().kind == tokAnd {
		p.next()
		t, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return AllOf(terms...), nil
}

func (p *parser) parseUnary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNot:
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Term: inner}, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ')'")
		}
		return inner, nil
	case tokIdent:
		op := p.next()
		if op.kind != tokOp {
			return nil, p.errorf(op, "expected comparison operator after %q", t.text)
		}
		num := p.next()
		if num.kind != tokNumber {
			return nil, p.errorf(num, "expected number after %q", op.text)
		}
		v, err := strconv.ParseFloat(num.text, 64)
		if err != nil {
			return nil, p.errorf(num, "invalid number %q", num.text)
		}
		return Comparison{Metric: t.text, Op: Op(op.text), Value: v}, nil
	case tokEOF:
		return nil, p.errorf(t, "unexpected end of condition")
	}
	return nil, p.errorf(t, "unexpected %q", t.text)
}
