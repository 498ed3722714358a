package sulpher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/evalgo/rserv/rerr"
)

type parser struct {
	tokens []Token
	pos    int
	src    string
}

// Parse lexes and parses a Sulpher query string into an execution Plan.
// Parse errors are reported as rerr.InvalidArgument faults quoting the
// offending substring, per the grammar's error-reporting contract.
func Parse(query string) (*Plan, error) {
	tokens, err := lex(query)
	if err != nil {
		return nil, rerr.InvalidArgumentf("%v", err)
	}
	p := &parser{tokens: tokens, src: query}
	return p.parseQuery()
}

func (p *parser) cur() Token  { return p.tokens[p.pos] }
func (p *parser) advance() Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return rerr.InvalidArgumentf("sulpher: "+format+" near %q", append(args, p.cur().Text)...)
}

func (p *parser) expectSymbol(sym string) error {
	if p.cur().Kind != TokSymbol || p.cur().Text != sym {
		return p.errorf("expected %q", sym)
	}
	p.advance()
	return nil
}

func (p *parser) expectKeyword(kw string) error {
	if p.cur().Kind != TokIdent || !strings.EqualFold(p.cur().Text, kw) {
		return p.errorf("expected %q", kw)
	}
	p.advance()
	return nil
}

func (p *parser) isKeyword(kw string) bool {
	return p.cur().Kind == TokIdent && strings.EqualFold(p.cur().Text, kw)
}

func (p *parser) parseQuery() (*Plan, error) {
	plan := &Plan{Algorithm: AlgorithmBFS}

	if p.isKeyword("BFS") {
		plan.Algorithm = AlgorithmBFS
		p.advance()
	} else if p.isKeyword("DFS") {
		plan.Algorithm = AlgorithmDFS
		p.advance()
	}

	if err := p.expectKeyword("MATCH"); err != nil {
		return nil, err
	}

	path, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	plan.Path = path

	if p.isKeyword("WHERE") {
		p.advance()
		conds, err := p.parseConds()
		if err != nil {
			return nil, err
		}
		plan.Where = conds
	}

	if err := p.expectKeyword("RETURN"); err != nil {
		return nil, err
	}
	items, err := p.parseItems()
	if err != nil {
		return nil, err
	}
	plan.Return = items

	return plan, nil
}

func (p *parser) parsePattern() ([]PathStep, error) {
	var steps []PathStep

	first, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	steps = append(steps, PathStep{Node: first})

	for p.cur().Kind == TokSymbol && p.cur().Text == "-[" {
		p.advance()
		rel, err := p.parseRel()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("]->"); err != nil {
			return nil, err
		}
		node, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		steps = append(steps, PathStep{Node: node, InRel: rel})
	}

	return steps, nil
}

func (p *parser) parseNode() (NodePattern, error) {
	if err := p.expectSymbol("("); err != nil {
		return NodePattern{}, err
	}
	n := NodePattern{}
	if p.cur().Kind == TokIdent {
		n.Var = p.advance().Text
	}
	if p.cur().Kind == TokSymbol && p.cur().Text == ":" {
		p.advance()
		if p.cur().Kind != TokIdent {
			return NodePattern{}, p.errorf("expected type name")
		}
		n.Type = p.advance().Text
	}
	if p.cur().Kind == TokSymbol && p.cur().Text == "{" {
		props, err := p.parseProps()
		if err != nil {
			return NodePattern{}, err
		}
		n.Props = props
	}
	if err := p.expectSymbol(")"); err != nil {
		return NodePattern{}, err
	}
	return n, nil
}

func (p *parser) parseRel() (*RelPattern, error) {
	r := &RelPattern{}
	if p.cur().Kind == TokIdent {
		r.Var = p.advance().Text
	}
	if p.cur().Kind == TokSymbol && p.cur().Text == ":" {
		p.advance()
		if p.cur().Kind != TokIdent {
			return nil, p.errorf("expected relationship type")
		}
		r.Type = p.advance().Text
	}
	if p.cur().Kind == TokSymbol && p.cur().Text == "{" {
		props, err := p.parseProps()
		if err != nil {
			return nil, err
		}
		r.Props = props
	}
	return r, nil
}

func (p *parser) parseProps() (map[string]interface{}, error) {
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	props := make(map[string]interface{})
	for {
		if p.cur().Kind == TokSymbol && p.cur().Text == "}" {
			break
		}
		if p.cur().Kind != TokIdent {
			return nil, p.errorf("expected property key")
		}
		key := p.advance().Text
		if err := p.expectSymbol(":"); err != nil {
			return nil, err
		}
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		props[key] = val
		if p.cur().Kind == TokSymbol && p.cur().Text == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}
	return props, nil
}

func (p *parser) parseLiteral() (interface{}, error) {
	t := p.cur()
	switch t.Kind {
	case TokString:
		p.advance()
		return t.Text, nil
	case TokNumber:
		p.advance()
		if strings.Contains(t.Text, ".") {
			f, err := strconv.ParseFloat(t.Text, 64)
			if err != nil {
				return nil, p.errorf("invalid number %q", t.Text)
			}
			return f, nil
		}
		n, err := strconv.Atoi(t.Text)
		if err != nil {
			return nil, p.errorf("invalid number %q", t.Text)
		}
		return n, nil
	case TokIdent:
		if strings.EqualFold(t.Text, "true") {
			p.advance()
			return true, nil
		}
		if strings.EqualFold(t.Text, "false") {
			p.advance()
			return false, nil
		}
		p.advance()
		return t.Text, nil
	default:
		return nil, p.errorf("expected literal")
	}
}

func (p *parser) parseConds() ([]Cond, error) {
	var conds []Cond
	for {
		c, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
		if p.isKeyword("AND") {
			p.advance()
			continue
		}
		break
	}
	return conds, nil
}

func (p *parser) parseCond() (Cond, error) {
	if p.cur().Kind != TokIdent {
		return Cond{}, p.errorf("expected variable")
	}
	v := p.advance().Text
	if err := p.expectSymbol("."); err != nil {
		return Cond{}, err
	}
	if p.cur().Kind != TokIdent {
		return Cond{}, p.errorf("expected field")
	}
	field := p.advance().Text

	op, err := p.parseOp()
	if err != nil {
		return Cond{}, err
	}

	lit, err := p.parseLiteral()
	if err != nil {
		return Cond{}, err
	}

	return Cond{Var: v, Field: field, Op: op, Literal: lit}, nil
}

func (p *parser) parseOp() (CondOp, error) {
	if p.cur().Kind != TokSymbol {
		return "", p.errorf("expected comparison operator")
	}
	switch p.cur().Text {
	case "=":
		p.advance()
		return OpEq, nil
	case "!=":
		p.advance()
		return OpNeq, nil
	case "<":
		p.advance()
		return OpLt, nil
	case ">":
		p.advance()
		return OpGt, nil
	case "<=":
		p.advance()
		return OpLte, nil
	case ">=":
		p.advance()
		return OpGte, nil
	default:
		return "", p.errorf("unknown operator %q", p.cur().Text)
	}
}

func (p *parser) parseItems() ([]Item, error) {
	var items []Item
	for {
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur().Kind == TokSymbol && p.cur().Text == "," {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

var aggNames = map[string]AggFunc{
	"COUNT": AggCount, "SUM": AggSum, "AVG": AggAvg, "MIN": AggMin, "MAX": AggMax,
}

func (p *parser) parseItem() (Item, error) {
	if p.cur().Kind != TokIdent {
		return Item{}, p.errorf("expected return item")
	}
	first := p.cur().Text

	if agg, ok := aggNames[strings.ToUpper(first)]; ok && p.tokens[p.pos+1].Kind == TokSymbol && p.tokens[p.pos+1].Text == "(" {
		p.advance()
		p.advance()
		if p.cur().Kind != TokIdent {
			return Item{}, p.errorf("expected variable inside aggregate")
		}
		v := p.advance().Text
		if err := p.expectSymbol(")"); err != nil {
			return Item{}, err
		}
		text := fmt.Sprintf("%s(%s)", agg, v)
		return Item{Text: text, Agg: agg, Var: v}, nil
	}

	v := p.advance().Text
	if p.cur().Kind == TokSymbol && p.cur().Text == "." {
		p.advance()
		if p.cur().Kind != TokIdent {
			return Item{}, p.errorf("expected field after '.'")
		}
		field := p.advance().Text
		return Item{Text: v + "." + field, Var: v, Field: field}, nil
	}

	return Item{Text: v, Var: v}, nil
}
