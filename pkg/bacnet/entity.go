package bacnet

import (
	"strings"
)

// Entity is one key/value pair read from tool output. Value is a scalar
// token value or []any for bracketed lists.
type Entity struct {
	Key   string
	Value any
}

// Extractor walks a token stream and yields entities one line at a time.
// Lines that do not form a key/value pair are skipped.
type Extractor struct {
	src  string
	toks []Token
	pos  int
}

// strategy reads a value for key starting at the cursor. On failure the
// caller rewinds the cursor.
type strategy func(e *Extractor, key string) ([]Entity, bool)

var strategies = []strategy{
	(*Extractor).objectIdentifierPair,
	(*Extractor).arrayPair,
	(*Extractor).scalarPair,
}

func NewExtractor(src string) *Extractor {
	return &Extractor{src: src, toks: Tokenize(src)}
}

func (e *Extractor) Tell() int { return e.pos }

func (e *Extractor) Seek(pos int) { e.pos = pos }

func (e *Extractor) done() bool { return e.pos >= len(e.toks) }

func (e *Extractor) peek() Token { return e.toks[e.pos] }

// Extract returns every entity found in text, in order.
func Extract(text string) []Entity {
	e := NewExtractor(text)
	var out []Entity
	for {
		ents, ok := e.Next()
		if !ok {
			return out
		}
		out = append(out, ents...)
	}
}

// Next returns the entities of the next line that holds a key/value pair.
// The object identifier pair expands into two entities.
func (e *Extractor) Next() ([]Entity, bool) {
	for !e.done() {
		key, ok := e.key()
		if !ok || key == "" {
			e.skipLine()
			continue
		}
		mark := e.Tell()
		for _, s := range strategies {
			if ents, ok := s(e, key); ok {
				e.skipLine()
				return ents, true
			}
			e.Seek(mark)
		}
		e.skipLine()
	}
	return nil, false
}

// key reads the tokens up to the colon of the current line and leaves the
// cursor after the colon.
func (e *Extractor) key() (string, bool) {
	start := e.pos
	for i := start; i < len(e.toks); i++ {
		switch e.toks[i].Kind {
		case TokenEOL:
			return "", false
		case TokenColon:
			e.pos = i + 1
			if i == start {
				return "", true
			}
			return strings.ToLower(e.span(start, i)), true
		}
	}
	e.pos = len(e.toks)
	return "", false
}

func (e *Extractor) skipLine() {
	for !e.done() {
		kind := e.peek().Kind
		e.pos++
		if kind == TokenEOL {
			return
		}
	}
}

// span returns the trimmed source text covered by toks[from:to].
func (e *Extractor) span(from, to int) string {
	return strings.TrimSpace(e.src[e.toks[from].Start:e.toks[to-1].End])
}

// join turns a run of value tokens into a single value: one token keeps
// its typed value, several become the text they cover.
func (e *Extractor) join(from, to int) any {
	if to-from == 1 && e.toks[from].IsScalar() {
		return e.toks[from].Value
	}
	return e.span(from, to)
}

func (e *Extractor) objectIdentifierPair(key string) ([]Entity, bool) {
	if key != "object-identifier" && key != "object identifier" {
		return nil, false
	}
	list, ok := e.array()
	if !ok || len(list) != 2 {
		return nil, false
	}
	return []Entity{
		{Key: "object-type", Value: list[0]},
		{Key: "object-identifier", Value: list[1]},
	}, true
}

func (e *Extractor) arrayPair(key string) ([]Entity, bool) {
	list, ok := e.array()
	if !ok {
		return nil, false
	}
	return []Entity{{Key: key, Value: list}}, true
}

// scalarPair skips a property the tool could not read, printed inline as
// "name: BACnet Error: property: unknown-property".
func (e *Extractor) scalarPair(key string) ([]Entity, bool) {
	if failure(e.toks[e.pos:]) {
		return nil, false
	}
	v, ok := e.scalar()
	if !ok || v == "" {
		return nil, false
	}
	return []Entity{{Key: key, Value: v}}, true
}

// Value reads a bare value at the cursor, as printed for a single property.
// Leading blank lines are skipped.
func (e *Extractor) Value() (any, bool) {
	for !e.done() && e.peek().Kind == TokenEOL {
		e.pos++
	}
	mark := e.Tell()
	if list, ok := e.array(); ok {
		return list, true
	}
	e.Seek(mark)
	return e.scalar()
}

var closerOf = map[TokenKind]TokenKind{
	TokenOpenGroup:   TokenCloseGroup,
	TokenOpenTuple:   TokenCloseTuple,
	TokenOpenBracket: TokenCloseBracket,
}

func isBracket(k TokenKind) bool {
	switch k {
	case TokenOpenGroup, TokenCloseGroup, TokenOpenTuple, TokenCloseTuple, TokenOpenBracket, TokenCloseBracket:
		return true
	}
	return false
}

// array reads a bracketed, comma separated list of scalars. Newlines
// inside the brackets are ignored; nested or mismatched brackets fail.
func (e *Extractor) array() ([]any, bool) {
	if e.done() {
		return nil, false
	}
	closer, ok := closerOf[e.peek().Kind]
	if !ok {
		return nil, false
	}
	e.pos++
	list := []any{}
	from := -1
	flush := func(to int) {
		if from >= 0 {
			list = append(list, e.join(from, to))
			from = -1
		}
	}
	for ; !e.done(); e.pos++ {
		tok := e.peek()
		switch {
		case tok.Kind == closer:
			flush(e.pos)
			e.pos++
			return list, true
		case tok.Kind == TokenComma:
			flush(e.pos)
		case tok.Kind == TokenEOL:
			flush(e.pos)
		case isBracket(tok.Kind):
			return nil, false
		default:
			if from < 0 {
				from = e.pos
			}
		}
	}
	return nil, false
}

// scalar reads the value tokens up to the end of the line.
func (e *Extractor) scalar() (any, bool) {
	from := e.pos
	for !e.done() && e.peek().Kind != TokenEOL {
		e.pos++
	}
	if e.pos == from {
		return nil, false
	}
	return e.join(from, e.pos), true
}
