package toml

import "fmt"

// TokenType classifies a lexical token
type TokenType int

const (
	TokenError TokenType = iota
	TokenEOF
	TokenComment

	TokenIdent   // bare key
	TokenString  // "basic string"
	TokenInteger // 123
	TokenFloat   // 1.5, 1e-3
	TokenBool    // true, false

	TokenEqual    // =
	TokenDot      // .
	TokenLBracket // [
	TokenRBracket // ]
	TokenNewline  // \n
)

// Token is a lexeme with its source position
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Col     int
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return fmt.Sprintf("Error(%s)", t.Literal)
	case TokenNewline:
		return "Newline"
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%q...", t.Literal[:20])
	}
	return fmt.Sprintf("%q", t.Literal)
}
