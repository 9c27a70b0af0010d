package lexer

import "fmt"

// Kind classifies a token produced by the lexer.
type Kind int

const (
	// KindKeyword is one of the reserved M Language words (swarm, agent, ...).
	KindKeyword Kind = iota
	// KindIdent is an identifier: [A-Za-z_][A-Za-z0-9_]*.
	KindIdent
	// KindString is a quoted string literal, lexeme stored without quotes.
	KindString
	// KindNumber is an integer or float literal.
	KindNumber
	// KindPunct is one of { } ( ) : , [ ].
	KindPunct
	// KindEOF terminates every token stream.
	KindEOF
)

// String returns the human-readable kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindKeyword:
		return "keyword"
	case KindIdent:
		return "identifier"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindPunct:
		return "punctuation"
	case KindEOF:
		return "end of input"
	default:
		return "unknown"
	}
}

// Position locates a token in the source text. Lines and columns are 1-based.
type Position struct {
	Line   int
	Column int
}

// String implements fmt.Stringer.
func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// Token is a single lexical unit. Tokens are never mutated after creation.
type Token struct {
	Kind   Kind
	Lexeme string
	Pos    Position
}

// String returns a compact representation for diagnostics.
func (t Token) String() string {
	if t.Kind == KindEOF {
		return "end of input"
	}
	return fmt.Sprintf("%s %q", t.Kind, t.Lexeme)
}

// keywords is the fixed reserved word set of the M Language.
var keywords = map[string]bool{
	"swarm":        true,
	"agent":        true,
	"workflow":     true,
	"role":         true,
	"capabilities": true,
	"inputs":       true,
	"outputs":      true,
	"config":       true,
	"sequential":   true,
	"parallel":     true,
	"conditional":  true,
	"loop":         true,
}

// IsKeyword reports whether word is reserved.
func IsKeyword(word string) bool { return keywords[word] }
