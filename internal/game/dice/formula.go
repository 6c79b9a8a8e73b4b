package dice

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Bindings maps variable paths (e.g. "dexterity.mod") to numeric values for
// formula substitution. Variables absent from the map evaluate to zero so one
// malformed skill definition cannot block an entire resolution.
type Bindings map[string]float64

// FormulaResult holds the outcome of evaluating one formula string.
type FormulaResult struct {
	Expression string
	Total      float64
	Rolls      []int // every individual die rolled during evaluation, in order
}

// EvalFormula evaluates a formula string supporting +, -, *, /, parentheses,
// numeric literals, dice tokens (NdM), and @variable substitution from vars.
//
// Precondition: src must be non-nil when the formula contains dice tokens.
// Postcondition: Returns a FormulaResult, or an error describing the first
// syntax problem. Unknown variables evaluate to 0, never an error.
func EvalFormula(expr string, vars Bindings, src Source) (FormulaResult, error) {
	p := &formulaParser{input: expr, vars: vars, src: src}
	total, err := p.parseExpr()
	if err != nil {
		return FormulaResult{}, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return FormulaResult{}, fmt.Errorf("dice: unexpected %q at offset %d in formula %q", p.input[p.pos], p.pos, expr)
	}
	return FormulaResult{Expression: expr, Total: total, Rolls: p.rolls}, nil
}

// formulaParser is a single-use recursive descent parser over one formula string.
type formulaParser struct {
	input string
	pos   int
	vars  Bindings
	src   Source
	rolls []int
}

func (p *formulaParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *formulaParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// parseExpr handles + and - at the lowest precedence.
func (p *formulaParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

// parseTerm handles * and /.
func (p *formulaParser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("dice: division by zero in formula %q", p.input)
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *formulaParser) parseUnary() (float64, error) {
	p.skipSpace()
	if p.peek() == '-' {
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	}
	return p.parsePrimary()
}

func (p *formulaParser) parsePrimary() (float64, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("dice: missing ')' in formula %q", p.input)
		}
		p.pos++
		return v, nil
	case c == '@':
		p.pos++
		return p.parseVariable()
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumberOrDice()
	case c == 'd' || c == 'D':
		return p.parseDice(1)
	default:
		return 0, fmt.Errorf("dice: unexpected %q at offset %d in formula %q", c, p.pos, p.input)
	}
}

// parseVariable reads a dot-separated identifier path after '@'.
func (p *formulaParser) parseVariable() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := rune(p.input[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return 0, fmt.Errorf("dice: empty variable name at offset %d in formula %q", start, p.input)
	}
	name := strings.ToLower(p.input[start:p.pos])
	// Unknown variables resolve to zero: a missing binding degrades the single
	// formula, not the whole activation.
	return p.vars[name], nil
}

// parseNumberOrDice reads digits and decides whether they are a plain number
// or the count prefix of a dice token.
func (p *formulaParser) parseNumberOrDice() (float64, error) {
	start := p.pos
	sawDot := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' && !sawDot {
			sawDot = true
			p.pos++
			continue
		}
		break
	}
	digits := p.input[start:p.pos]

	if !sawDot && (p.peek() == 'd' || p.peek() == 'D') && p.diceFollows() {
		count, err := strconv.Atoi(digits)
		if err != nil || count < 1 {
			return 0, fmt.Errorf("dice: invalid die count %q in formula %q", digits, p.input)
		}
		return p.parseDice(count)
	}

	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, fmt.Errorf("dice: invalid number %q in formula %q", digits, p.input)
	}
	return v, nil
}

// diceFollows reports whether the character after the pending 'd' is a digit,
// distinguishing "4d6" from a variable-adjacent "4 d" typo.
func (p *formulaParser) diceFollows() bool {
	next := p.pos + 1
	return next < len(p.input) && p.input[next] >= '0' && p.input[next] <= '9'
}

// parseDice consumes "d<sides>" and rolls count dice through the source.
func (p *formulaParser) parseDice(count int) (float64, error) {
	p.pos++ // consume 'd'
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
		p.pos++
	}
	sides, err := strconv.Atoi(p.input[start:p.pos])
	if err != nil || sides < 2 {
		return 0, fmt.Errorf("dice: invalid die sides at offset %d in formula %q", start, p.input)
	}
	if p.src == nil {
		return 0, fmt.Errorf("dice: formula %q contains dice but no source was provided", p.input)
	}
	total := 0
	for i := 0; i < count; i++ {
		d := p.src.Intn(sides) + 1
		p.rolls = append(p.rolls, d)
		total += d
	}
	return float64(total), nil
}
