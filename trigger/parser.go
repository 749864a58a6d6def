package trigger

import (
	"fmt"
	"unicode/utf8"

	"github.com/zond/meshmush/lang"
)

type parser struct {
	tokens []Token
	pos    int
}

// Parse tokenizes and parses a script into an expression tree. Builtin names
// and arities are resolved here, so evaluation never sees an unknown function.
func Parse(script string) (Node, error) {
	tokens, err := Tokenize(script)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.expr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokenEOF {
		return nil, syntaxErrorf(tok.Pos, "unexpected %s after expression", tok.Kind)
	}
	return node, nil
}

// Validate checks that script would be accepted by Execute without running it.
func Validate(script string) error {
	if script == "" {
		return &ScriptError{Kind: SyntaxError, Pos: -1, Msg: "Script cannot be empty"}
	}
	_, err := compile(script)
	return err
}

// compile runs the whole-script checks before parsing.
func compile(script string) (Node, error) {
	if n := utf8.RuneCountInString(script); n > MaxScriptLength {
		return nil, &ScriptError{Kind: SyntaxError, Pos: -1, Msg: tooLong(n)}
	}
	tokens, err := Tokenize(script)
	if err != nil {
		return nil, err
	}
	depth := 0
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenLParen:
			depth++
		case TokenRParen:
			depth--
			if depth < 0 {
				return nil, &ScriptError{Kind: SyntaxError, Pos: -1, Msg: "Unbalanced parentheses: too many ')'"}
			}
		}
	}
	if depth > 0 {
		return nil, &ScriptError{Kind: SyntaxError, Pos: -1, Msg: "Unbalanced parentheses: unclosed '('"}
	}
	return Parse(script)
}

func tooLong(n int) string {
	return fmt.Sprintf("Script too long: %d characters (max %d)", n, MaxScriptLength)
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return tok, syntaxErrorf(tok.Pos, "expected %s, got %s", kind, tok.Kind)
	}
	return p.advance(), nil
}

// expr := or_expr ('?' expr ':' expr)?
func (p *parser) expr() (Node, error) {
	cond, err := p.orExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != TokenQuestion {
		return cond, nil
	}
	p.advance()
	then, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenColon); err != nil {
		return nil, err
	}
	els, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &TernaryNode{Cond: cond, Then: then, Else: els}, nil
}

// or_expr := and_expr ('||' and_expr)*
func (p *parser) orExpr() (Node, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == TokenOr {
		p.advance()
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &OrNode{Left: left, Right: right}
	}
	return left, nil
}

// and_expr := primary ('&&' primary)*
func (p *parser) andExpr() (Node, error) {
	left, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == TokenAnd {
		p.advance()
		right, err := p.primary()
		if err != nil {
			return nil, err
		}
		left = &AndNode{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) primary() (Node, error) {
	tok := p.advance()
	switch tok.Kind {
	case TokenString:
		return &StringLit{Value: tok.Text, At: tok.Pos}, nil
	case TokenNumber:
		return &NumberLit{Value: tok.Number, At: tok.Pos}, nil
	case TokenVariable:
		v, found := variableNames[tok.Text]
		if !found {
			return nil, syntaxErrorf(tok.Pos, "unknown variable $%s", tok.Text)
		}
		return &VariableNode{Name: v, At: tok.Pos}, nil
	case TokenLParen:
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case TokenIdent:
		switch tok.Text {
		case "true":
			return &BoolLit{Value: true, At: tok.Pos}, nil
		case "false":
			return &BoolLit{Value: false, At: tok.Pos}, nil
		}
		return p.call(tok)
	case TokenEOF:
		return nil, syntaxErrorf(tok.Pos, "unexpected end of script")
	}
	return nil, syntaxErrorf(tok.Pos, "unexpected %s", tok.Kind)
}

func (p *parser) call(name Token) (Node, error) {
	if p.peek().Kind != TokenLParen {
		if _, found := builtinsByName[name.Text]; !found {
			return nil, &ScriptError{Kind: UnknownFunction, Pos: name.Pos, Msg: name.Text}
		}
		return nil, syntaxErrorf(p.peek().Pos, "expected '(' after %s", name.Text)
	}
	p.advance()
	builtin, found := builtinsByName[name.Text]
	if !found {
		return nil, &ScriptError{Kind: UnknownFunction, Pos: name.Pos, Msg: name.Text}
	}
	result := &CallNode{Builtin: builtin, At: name.Pos}
	if p.peek().Kind != TokenRParen {
		for {
			arg, err := p.expr()
			if err != nil {
				return nil, err
			}
			result.Args = append(result.Args, arg)
			if p.peek().Kind != TokenComma {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	if want := builtins[builtin].arity; len(result.Args) != want {
		return nil, syntaxErrorf(name.Pos, "%s() expects %s, got %d", name.Text, lang.Count(want, "argument"), len(result.Args))
	}
	return result, nil
}
