package trigger

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenString
	TokenNumber
	TokenVariable
	TokenLParen
	TokenRParen
	TokenComma
	TokenAnd
	TokenOr
	TokenQuestion
	TokenColon
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "end of script"
	case TokenIdent:
		return "identifier"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenVariable:
		return "variable"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenComma:
		return "','"
	case TokenAnd:
		return "'&&'"
	case TokenOr:
		return "'||'"
	case TokenQuestion:
		return "'?'"
	case TokenColon:
		return "':'"
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a lexical unit. Text holds the identifier, variable name (without
// '$') or decoded string contents. Pos is the rune offset of the first rune.
type Token struct {
	Kind   TokenKind
	Text   string
	Number int64
	Pos    int
}

// Builders often type scripts on phones that replace quotes with typographic ones.
var quoteNormalizer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", `'`,
	"’", `'`,
)

var symbols = map[rune]TokenKind{
	'(': TokenLParen,
	')': TokenRParen,
	',': TokenComma,
	'?': TokenQuestion,
	':': TokenColon,
}

type lexer struct {
	src    []rune
	pos    int
	tokens []Token
}

// Tokenize converts a script into tokens terminated by a TokenEOF token.
func Tokenize(script string) ([]Token, error) {
	l := &lexer{src: []rune(quoteNormalizer.Replace(script))}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.tokens = append(l.tokens, Token{Kind: TokenEOF, Pos: l.pos})
			return l.tokens, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
}

func (l *lexer) peekAt(offset int) rune {
	if l.pos+offset < len(l.src) {
		return l.src[l.pos+offset]
	}
	return 0
}

func (l *lexer) emit(kind TokenKind, start int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Pos: start})
}

func (l *lexer) next() error {
	start := l.pos
	r := l.src[l.pos]
	if kind, found := symbols[r]; found {
		l.pos++
		l.emit(kind, start)
		return nil
	}
	switch {
	case r == '&' || r == '|':
		if l.peekAt(1) != r {
			return syntaxErrorf(start, "expected '%c%c'", r, r)
		}
		l.pos += 2
		if r == '&' {
			l.emit(TokenAnd, start)
		} else {
			l.emit(TokenOr, start)
		}
		return nil
	case r == '"' || r == '\'':
		return l.str(r)
	case r == '$':
		l.pos++
		name := l.word()
		if name == "" {
			return syntaxErrorf(start, "expected variable name after '$'")
		}
		l.tokens = append(l.tokens, Token{Kind: TokenVariable, Text: name, Pos: start})
		return nil
	case r >= '0' && r <= '9':
		return l.number()
	case isIdentStart(r):
		name := l.word()
		l.tokens = append(l.tokens, Token{Kind: TokenIdent, Text: name, Pos: start})
		return nil
	}
	return syntaxErrorf(start, "unexpected character %q", r)
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

func (l *lexer) number() error {
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
		l.pos++
	}
	text := string(l.src[start:l.pos])
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return syntaxErrorf(start, "number %s out of range", text)
	}
	l.tokens = append(l.tokens, Token{Kind: TokenNumber, Text: text, Number: n, Pos: start})
	return nil
}

func (l *lexer) str(quote rune) error {
	start := l.pos
	l.pos++
	buf := &strings.Builder{}
	for l.pos < len(l.src) {
		r := l.src[l.pos]
		switch {
		case r == quote:
			l.pos++
			l.tokens = append(l.tokens, Token{Kind: TokenString, Text: buf.String(), Pos: start})
			return nil
		case r == '\\' && l.pos+1 < len(l.src):
			l.pos++
			switch escaped := l.src[l.pos]; escaped {
			case 'n':
				buf.WriteRune('\n')
			case 't':
				buf.WriteRune('\t')
			default:
				buf.WriteRune(escaped)
			}
		default:
			buf.WriteRune(r)
		}
		l.pos++
	}
	return syntaxErrorf(start, "unterminated string")
}
