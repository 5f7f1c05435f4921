package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/3yekn/coinstr/descriptor"
)

// ParseExpr parses a script-path policy expression in the grammar this
// package compiles to and reads back: `pk(K)`, `multi_a(k,K1,...,Kn)`,
// `thresh(k,E1,...,En)`, `and(E1,E2)`, `or(E1,E2)`, `after(n)`, `older(n)`,
// with arbitrary nesting. This is not the full rust-miniscript grammar; it
// is the compact subset this port's policy compiler emits and consumes.
// The String form of a parsed tree parses back to the same tree; and/or
// are parsed as threshold nodes and so render as thresh(2,...) and
// thresh(1,...).
func ParseExpr(s string) (SatisfiableItem, error) {
	p := &exprParser{s: strings.TrimSpace(s)}
	item, err := p.parse()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("%w: trailing input %q", ErrInvalidPolicy, p.s[p.pos:])
	}
	return item, nil
}

type exprParser struct {
	s   string
	pos int
}

func (p *exprParser) parse() (SatisfiableItem, error) {
	name, err := p.readIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expect('('); err != nil {
		return nil, err
	}
	args, err := p.readArgs()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}

	switch name {
	case "pk":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: pk() takes 1 argument", ErrInvalidPolicy)
		}
		key, err := descriptor.ParsePublicKey(args[0])
		if err != nil {
			return nil, err
		}
		return Schnorr{Key: key}, nil

	case "multi_a":
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: multi_a() needs a threshold and at least one key", ErrInvalidPolicy)
		}
		k, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: multi_a threshold: %v", ErrInvalidPolicy, err)
		}
		keys := make([]descriptor.PublicKey, len(args)-1)
		for i, a := range args[1:] {
			key, err := descriptor.ParsePublicKey(a)
			if err != nil {
				return nil, err
			}
			keys[i] = key
		}
		return Multisig{Threshold: k, Keys: keys}, nil

	case "thresh":
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: thresh() needs a threshold and at least one item", ErrInvalidPolicy)
		}
		k, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: thresh threshold: %v", ErrInvalidPolicy, err)
		}
		items := make([]SatisfiableItem, len(args)-1)
		for i, a := range args[1:] {
			item, err := ParseExpr(a)
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return Thresh{Threshold: k, Items: items}, nil

	case "and":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: and() takes 2 arguments", ErrInvalidPolicy)
		}
		a, err := ParseExpr(args[0])
		if err != nil {
			return nil, err
		}
		b, err := ParseExpr(args[1])
		if err != nil {
			return nil, err
		}
		return Thresh{Threshold: 2, Items: []SatisfiableItem{a, b}}, nil

	case "or":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: or() takes 2 arguments", ErrInvalidPolicy)
		}
		a, err := ParseExpr(args[0])
		if err != nil {
			return nil, err
		}
		b, err := ParseExpr(args[1])
		if err != nil {
			return nil, err
		}
		return Thresh{Threshold: 1, Items: []SatisfiableItem{a, b}}, nil

	case "after":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: after() takes 1 argument", ErrInvalidPolicy)
		}
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: after() value: %v", ErrInvalidPolicy, err)
		}
		return AbsoluteTimelock{Value: uint32(n)}, nil

	case "older":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: older() takes 1 argument", ErrInvalidPolicy)
		}
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: older() value: %v", ErrInvalidPolicy, err)
		}
		return RelativeTimelock{Value: uint32(n)}, nil

	default:
		return nil, fmt.Errorf("%w: unknown fragment %q", ErrInvalidPolicy, name)
	}
}

func (p *exprParser) readIdent() (string, error) {
	start := p.pos
	for p.pos < len(p.s) && (isAlpha(p.s[p.pos]) || p.s[p.pos] == '_') {
		p.pos++
	}
	if start == p.pos {
		return "", fmt.Errorf("%w: expected identifier at %q", ErrInvalidPolicy, p.s[p.pos:])
	}
	return p.s[start:p.pos], nil
}

func (p *exprParser) expect(c byte) error {
	if p.pos >= len(p.s) || p.s[p.pos] != c {
		return fmt.Errorf("%w: expected %q", ErrInvalidPolicy, string(c))
	}
	p.pos++
	return nil
}

// readArgs splits the comma-separated argument list up to the matching
// close paren, respecting nested parens so that e.g. and(pk(A),pk(B)) splits
// into two arguments rather than four.
func (p *exprParser) readArgs() ([]string, error) {
	var args []string
	start := p.pos
	depth := 0
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				args = append(args, p.s[start:p.pos])
				return args, nil
			}
			depth--
		case ',':
			if depth == 0 {
				args = append(args, p.s[start:p.pos])
				start = p.pos + 1
			}
		}
		p.pos++
	}
	return nil, fmt.Errorf("%w: unterminated argument list", ErrInvalidPolicy)
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
