// Package lexer turns M Language source text into an ordered token stream.
//
// The scanner recognizes the fixed keyword set, identifiers, quoted string
// literals, integer and float literals, and the punctuation used by swarm
// definitions. Whitespace, line comments (# and //) and block comments are
// skipped. The stream always ends with a single EOF token.
package lexer

import "fmt"

// LexError reports an unrecognized or unterminated construct in the source.
type LexError struct {
	Pos  Position
	Char rune
	Msg  string
}

// Error implements the error interface.
func (e *LexError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s at %s", e.Msg, e.Pos)
	}
	return fmt.Sprintf("unexpected character %q at %s", e.Char, e.Pos)
}

// Tokenize scans source and returns the full token stream terminated by an
// EOF token. It fails on the first unrecognized character.
func Tokenize(source string) ([]Token, error) {
	s := &scanner{src: []rune(source), line: 1, col: 1}
	return s.scan()
}

type scanner struct {
	src  []rune
	pos  int
	line int
	col  int
}

func (s *scanner) scan() ([]Token, error) {
	var tokens []Token
	for !s.eof() {
		s.skipBlanks()
		if s.eof() {
			break
		}
		start := s.position()
		r := s.peek()

		switch {
		case isIdentStart(r):
			word := s.readWhile(isIdentPart)
			kind := KindIdent
			if IsKeyword(word) {
				kind = KindKeyword
			}
			tokens = append(tokens, Token{Kind: kind, Lexeme: word, Pos: start})
		case isDigit(r):
			tokens = append(tokens, Token{Kind: KindNumber, Lexeme: s.readNumber(), Pos: start})
		case r == '"' || r == '\'':
			lit, err := s.readString(r)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Kind: KindString, Lexeme: lit, Pos: start})
		case isPunct(r):
			s.next()
			tokens = append(tokens, Token{Kind: KindPunct, Lexeme: string(r), Pos: start})
		default:
			return nil, &LexError{Pos: start, Char: r}
		}
	}
	tokens = append(tokens, Token{Kind: KindEOF, Pos: s.position()})
	return tokens, nil
}

// skipBlanks consumes whitespace and comments until the next significant rune.
func (s *scanner) skipBlanks() {
	for !s.eof() {
		switch r := s.peek(); {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			s.next()
		case r == '#':
			s.skipLine()
		case r == '/' && s.peekAt(1) == '/':
			s.skipLine()
		case r == '/' && s.peekAt(1) == '*':
			s.skipBlockComment()
		default:
			return
		}
	}
}

func (s *scanner) skipLine() {
	for !s.eof() && s.peek() != '\n' {
		s.next()
	}
}

// skipBlockComment consumes through the closing */ or end of input. An
// unterminated block comment silently swallows the remainder; the parser
// reports the resulting premature EOF.
func (s *scanner) skipBlockComment() {
	s.next() // '/'
	s.next() // '*'
	for !s.eof() {
		if s.peek() == '*' && s.peekAt(1) == '/' {
			s.next()
			s.next()
			return
		}
		s.next()
	}
}

// readString consumes a quoted literal and returns it without the quotes.
// There are no escape sequences; the literal runs to the matching quote.
func (s *scanner) readString(quote rune) (string, error) {
	start := s.position()
	s.next() // opening quote
	var runes []rune
	for {
		if s.eof() {
			return "", &LexError{Pos: start, Char: quote, Msg: "unterminated string literal"}
		}
		r := s.next()
		if r == quote {
			return string(runes), nil
		}
		runes = append(runes, r)
	}
}

// readNumber consumes an integer or float literal.
func (s *scanner) readNumber() string {
	lit := s.readWhile(isDigit)
	if !s.eof() && s.peek() == '.' && isDigit(s.peekAt(1)) {
		s.next()
		lit += "." + s.readWhile(isDigit)
	}
	return lit
}

func (s *scanner) readWhile(pred func(rune) bool) string {
	start := s.pos
	for !s.eof() && pred(s.peek()) {
		s.next()
	}
	return string(s.src[start:s.pos])
}

func (s *scanner) position() Position { return Position{Line: s.line, Column: s.col} }

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() rune { return s.src[s.pos] }

func (s *scanner) peekAt(offset int) rune {
	if s.pos+offset >= len(s.src) {
		return 0
	}
	return s.src[s.pos+offset]
}

func (s *scanner) next() rune {
	r := s.src[s.pos]
	s.pos++
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool { return isIdentStart(r) || isDigit(r) }

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isPunct(r rune) bool {
	switch r {
	case '{', '}', '(', ')', ':', ',', '[', ']':
		return true
	}
	return false
}
