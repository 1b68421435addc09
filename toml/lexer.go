package toml

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Lexer splits patch documents into tokens
// Supported: comments, bare and quoted keys, basic strings, numbers, booleans, table headers
type Lexer struct {
	input []byte
	pos   int
	line  int
	col   int
}

func NewLexer(input []byte) *Lexer {
	return &Lexer{input: input, line: 1}
}

// NextToken returns the next token, TokenEOF at end of input
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()
	if l.pos >= len(l.input) {
		return l.token(TokenEOF, "")
	}

	line, col := l.line, l.col
	ch := l.peek()
	switch ch {
	case '\n':
		l.advance()
		return Token{Type: TokenNewline, Literal: "\n", Line: line, Col: col}
	case '#':
		return l.readComment()
	case '=':
		l.advance()
		return Token{Type: TokenEqual, Literal: "=", Line: line, Col: col}
	case '.':
		l.advance()
		return Token{Type: TokenDot, Literal: ".", Line: line, Col: col}
	case '[':
		l.advance()
		return Token{Type: TokenLBracket, Literal: "[", Line: line, Col: col}
	case ']':
		l.advance()
		return Token{Type: TokenRBracket, Literal: "]", Line: line, Col: col}
	case '"':
		return l.readString()
	}

	if isDigit(ch) || isAlpha(ch) || ch == '_' || ch == '-' || ch == '+' {
		return l.readBareOrNumber()
	}

	l.advance()
	return l.token(TokenError, fmt.Sprintf("unexpected character: %c", ch))
}

func (l *Lexer) token(typ TokenType, literal string) Token {
	return Token{Type: typ, Literal: literal, Line: l.line, Col: l.col}
}

func (l *Lexer) advance() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, w := utf8.DecodeRune(l.input[l.pos:])
	l.pos += w
	if r == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRune(l.input[l.pos:])
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		switch l.peek() {
		case ' ', '\t', '\r':
			l.advance()
		default:
			return
		}
	}
}

func (l *Lexer) readComment() Token {
	l.advance()
	start := l.pos
	for l.pos < len(l.input) && l.peek() != '\n' {
		l.advance()
	}
	return l.token(TokenComment, string(l.input[start:l.pos]))
}

func (l *Lexer) readString() Token {
	start := l.pos
	l.advance()
	escaped := false
	for l.pos < len(l.input) {
		ch := l.peek()
		if ch == '\n' {
			return l.token(TokenError, "unterminated string")
		}
		l.advance()
		if ch == '"' && !escaped {
			s, err := strconv.Unquote(string(l.input[start:l.pos]))
			if err != nil {
				return l.token(TokenError, fmt.Sprintf("invalid string: %v", err))
			}
			return l.token(TokenString, s)
		}
		escaped = ch == '\\' && !escaped
	}
	return l.token(TokenError, "unterminated string")
}

func (l *Lexer) readBareOrNumber() Token {
	start := l.pos
	first := l.peek()
	numeric := isDigit(first) || first == '+' || first == '-'

	for l.pos < len(l.input) {
		ch := l.peek()
		if isAlpha(ch) || isDigit(ch) || ch == '_' || ch == '-' || ch == '+' || (ch == '.' && numeric) {
			l.advance()
			continue
		}
		break
	}
	lit := string(l.input[start:l.pos])

	switch lit {
	case "true", "false":
		return l.token(TokenBool, lit)
	case "inf", "+inf", "-inf", "nan", "+nan", "-nan":
		return l.token(TokenFloat, lit)
	}

	if numeric {
		clean := strings.ReplaceAll(lit, "_", "")
		if _, err := strconv.ParseInt(clean, 0, 64); err == nil {
			return l.token(TokenInteger, lit)
		}
		if _, err := strconv.ParseFloat(clean, 64); err == nil {
			return l.token(TokenFloat, lit)
		}
	}
	if strings.ContainsAny(lit, ".+") {
		return l.token(TokenError, fmt.Sprintf("invalid bare value: %s", lit))
	}
	return l.token(TokenIdent, lit)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
