package toml

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parser builds a nested map[string]any from tokens
// Tables become map[string]any, scalars are string, int64, float64 or bool
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	root      map[string]any
	current   map[string]any
	defined   map[string]bool
}

func NewParser(input []byte) *Parser {
	p := &Parser{
		lexer:   NewLexer(input),
		root:    make(map[string]any),
		defined: make(map[string]bool),
	}
	p.current = p.root
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	for p.peekToken.Type == TokenComment {
		p.peekToken = p.lexer.NextToken()
	}
}

// Parse consumes the whole input
func (p *Parser) Parse() (map[string]any, error) {
	for p.curToken.Type == TokenComment {
		p.nextToken()
	}
	for p.curToken.Type != TokenEOF {
		if p.curToken.Type == TokenNewline {
			p.nextToken()
			continue
		}
		if err := p.parseStatement(); err != nil {
			return nil, err
		}
	}
	return p.root, nil
}

func (p *Parser) parseStatement() error {
	switch p.curToken.Type {
	case TokenLBracket:
		return p.parseTable()
	case TokenIdent, TokenString, TokenInteger, TokenBool:
		return p.parseKeyValue()
	case TokenError:
		return fmt.Errorf("%w: line %d: %s", ErrSyntax, p.curToken.Line, p.curToken.Literal)
	default:
		return fmt.Errorf("%w: line %d: unexpected %s", ErrSyntax, p.curToken.Line, p.curToken)
	}
}

// parseTable handles a [dotted.table] header
func (p *Parser) parseTable() error {
	line := p.curToken.Line
	p.nextToken()
	keys, err := p.parseKey()
	if err != nil {
		return err
	}
	if p.curToken.Type != TokenRBracket {
		return fmt.Errorf("%w: line %d: expected ] after table name", ErrSyntax, line)
	}
	p.nextToken()
	if err := p.endOfLine(); err != nil {
		return err
	}

	path := strings.Join(keys, ".")
	if p.defined[path] {
		return fmt.Errorf("%w: line %d: table [%s] defined twice", ErrDuplicateKey, line, path)
	}
	p.defined[path] = true

	m, err := descend(p.root, keys)
	if err != nil {
		return fmt.Errorf("line %d: %w", line, err)
	}
	p.current = m
	return nil
}

// parseKeyValue handles key = value, dotted keys create implicit tables
func (p *Parser) parseKeyValue() error {
	line := p.curToken.Line
	keys, err := p.parseKey()
	if err != nil {
		return err
	}
	if p.curToken.Type != TokenEqual {
		return fmt.Errorf("%w: line %d: expected = after key", ErrSyntax, line)
	}
	p.nextToken()

	value, err := p.parseValue()
	if err != nil {
		return err
	}
	p.nextToken()
	if err := p.endOfLine(); err != nil {
		return err
	}

	target, err := descend(p.current, keys[:len(keys)-1])
	if err != nil {
		return fmt.Errorf("line %d: %w", line, err)
	}
	last := keys[len(keys)-1]
	if _, exists := target[last]; exists {
		return fmt.Errorf("%w: line %d: %s", ErrDuplicateKey, line, strings.Join(keys, "."))
	}
	target[last] = value
	return nil
}

func (p *Parser) parseKey() ([]string, error) {
	var keys []string
	for {
		switch p.curToken.Type {
		case TokenIdent, TokenString, TokenInteger, TokenBool:
			keys = append(keys, p.curToken.Literal)
		default:
			return nil, fmt.Errorf("%w: line %d: expected key, got %s", ErrSyntax, p.curToken.Line, p.curToken)
		}
		p.nextToken()
		if p.curToken.Type != TokenDot {
			return keys, nil
		}
		p.nextToken()
	}
}

func (p *Parser) parseValue() (any, error) {
	tok := p.curToken
	lit := strings.ReplaceAll(tok.Literal, "_", "")
	switch tok.Type {
	case TokenString:
		return tok.Literal, nil
	case TokenBool:
		return tok.Literal == "true", nil
	case TokenInteger:
		n, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrSyntax, tok.Line, err)
		}
		return n, nil
	case TokenFloat:
		switch strings.TrimPrefix(lit, "+") {
		case "inf":
			return math.Inf(1), nil
		case "-inf":
			return math.Inf(-1), nil
		case "nan", "-nan":
			return math.NaN(), nil
		}
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrSyntax, tok.Line, err)
		}
		return f, nil
	case TokenError:
		return nil, fmt.Errorf("%w: line %d: %s", ErrSyntax, tok.Line, tok.Literal)
	default:
		return nil, fmt.Errorf("%w: line %d: unsupported value %s", ErrSyntax, tok.Line, tok)
	}
}

func (p *Parser) endOfLine() error {
	switch p.curToken.Type {
	case TokenNewline:
		p.nextToken()
		return nil
	case TokenEOF:
		return nil
	default:
		return fmt.Errorf("%w: line %d: expected end of line, got %s", ErrSyntax, p.curToken.Line, p.curToken)
	}
}

// descend walks or creates nested tables along keys
func descend(m map[string]any, keys []string) (map[string]any, error) {
	for _, key := range keys {
		next, exists := m[key]
		if !exists {
			child := make(map[string]any)
			m[key] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s is a value, not a table", ErrDuplicateKey, key)
		}
		m = child
	}
	return m, nil
}
