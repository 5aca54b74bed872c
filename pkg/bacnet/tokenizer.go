package bacnet

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type TokenKind int

const (
	TokenNumber TokenKind = iota
	TokenString
	TokenQuoted
	TokenHash
	TokenOpenGroup
	TokenCloseGroup
	TokenOpenTuple
	TokenCloseTuple
	TokenOpenBracket
	TokenCloseBracket
	TokenComma
	TokenColon
	TokenEOL
	TokenNull
	TokenBool
)

var tokenKindNames = [...]string{
	TokenNumber:       "number",
	TokenString:       "string",
	TokenQuoted:       "quoted",
	TokenHash:         "hash",
	TokenOpenGroup:    "{",
	TokenCloseGroup:   "}",
	TokenOpenTuple:    "(",
	TokenCloseTuple:   ")",
	TokenOpenBracket:  "[",
	TokenCloseBracket: "]",
	TokenComma:        ",",
	TokenColon:        ":",
	TokenEOL:          "eol",
	TokenNull:         "null",
	TokenBool:         "bool",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Token is one lexical unit of tool output. Start and End are byte offsets
// into the scanned text.
type Token struct {
	Kind  TokenKind
	Value any
	Start int
	End   int
}

// IsScalar reports whether the token can stand as a value on its own.
func (t Token) IsScalar() bool {
	switch t.Kind {
	case TokenNumber, TokenString, TokenQuoted, TokenHash, TokenNull, TokenBool:
		return true
	}
	return false
}

// scanner tries to read a token at pos. It never consumes on failure.
type scanner func(src string, pos int) (Token, bool)

// scanners run in order; the first match wins. scanAny matches every
// remaining rune so the chain cannot stall.
var scanners = []scanner{
	scanEOL,
	scanPunct,
	scanHash,
	scanWord,
	scanQuoted,
	scanAny,
}

// Tokenize splits tool output into tokens. Whitespace other than newlines
// is dropped; everything else is covered by some token.
func Tokenize(text string) []Token {
	var out []Token
	pos := 0
	for {
		pos = skipBlank(text, pos)
		if pos >= len(text) {
			return out
		}
		for _, scan := range scanners {
			if tok, ok := scan(text, pos); ok {
				out = append(out, tok)
				pos = tok.End
				break
			}
		}
	}
}

func skipBlank(src string, pos int) int {
	for pos < len(src) {
		r, size := utf8.DecodeRuneInString(src[pos:])
		if r == '\n' || !unicode.IsSpace(r) {
			break
		}
		pos += size
	}
	return pos
}

func scanEOL(src string, pos int) (Token, bool) {
	if src[pos] != '\n' {
		return Token{}, false
	}
	return Token{Kind: TokenEOL, Start: pos, End: pos + 1}, true
}

var punct = map[byte]TokenKind{
	':': TokenColon,
	',': TokenComma,
	'{': TokenOpenGroup,
	'}': TokenCloseGroup,
	'(': TokenOpenTuple,
	')': TokenCloseTuple,
	'[': TokenOpenBracket,
	']': TokenCloseBracket,
}

func scanPunct(src string, pos int) (Token, bool) {
	kind, ok := punct[src[pos]]
	if !ok {
		return Token{}, false
	}
	return Token{Kind: kind, Start: pos, End: pos + 1}, true
}

func scanHash(src string, pos int) (Token, bool) {
	if src[pos] != '#' {
		return Token{}, false
	}
	end := pos + 1
	for end < len(src) && isDigit(src[end]) {
		end++
	}
	if end == pos+1 {
		return Token{}, false
	}
	n, err := strconv.Atoi(src[pos+1 : end])
	if err != nil {
		return Token{}, false
	}
	return Token{Kind: TokenHash, Value: n, Start: pos, End: end}, true
}

func scanWord(src string, pos int) (Token, bool) {
	end := pos
	for end < len(src) {
		r, size := utf8.DecodeRuneInString(src[end:])
		if !isWordRune(r) {
			break
		}
		end += size
	}
	if end == pos {
		return Token{}, false
	}
	word := src[pos:end]
	tok := Token{Start: pos, End: end}
	switch strings.ToLower(word) {
	case "null":
		tok.Kind = TokenNull
		return tok, true
	case "true", "false":
		tok.Kind, tok.Value = TokenBool, strings.EqualFold(word, "true")
		return tok, true
	case "inf":
		tok.Kind, tok.Value = TokenNumber, posInf
		return tok, true
	case "-inf":
		tok.Kind, tok.Value = TokenNumber, negInf
		return tok, true
	}
	if word[0] == '-' || isDigit(word[0]) {
		if f, err := strconv.ParseFloat(word, 64); err == nil {
			tok.Kind, tok.Value = TokenNumber, f
			return tok, true
		}
	}
	tok.Kind, tok.Value = TokenString, word
	return tok, true
}

func scanQuoted(src string, pos int) (Token, bool) {
	if src[pos] != '"' {
		return Token{}, false
	}
	var b strings.Builder
	end := pos + 1
	for end < len(src) {
		c := src[end]
		if c == '\\' && end+1 < len(src) {
			b.WriteByte(src[end+1])
			end += 2
			continue
		}
		end++
		if c == '"' {
			return Token{Kind: TokenQuoted, Value: b.String(), Start: pos, End: end}, true
		}
		b.WriteByte(c)
	}
	// unterminated: the string runs to the end of input
	return Token{Kind: TokenQuoted, Value: b.String(), Start: pos, End: end}, true
}

func scanAny(src string, pos int) (Token, bool) {
	_, size := utf8.DecodeRuneInString(src[pos:])
	return Token{Kind: TokenString, Value: src[pos : pos+size], Start: pos, End: pos + size}, true
}

var posInf, negInf = math.Inf(1), math.Inf(-1)

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordRune(r rune) bool {
	return r == '-' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
