package bacnet

import (
	"strings"
)

// BuildPropertyMap folds entities into a property map. Unknown names are
// dropped, later entities overwrite earlier ones and the default
// reliability is left out.
func BuildPropertyMap(entities []Entity) PropertyMap {
	out := PropertyMap{}
	for _, ent := range entities {
		id, ok := LookupProperty(ent.Key)
		if !ok {
			continue
		}
		out[id] = ent.Value
	}
	suppressDefaults(out)
	return out
}

func suppressDefaults(m PropertyMap) {
	if s, ok := m[PropReliability].(string); ok && strings.EqualFold(s, NoFaultDetected) {
		delete(m, PropReliability)
	}
}

// ParseMultiple parses the output of a multi-property read of one object.
func ParseMultiple(text string) PropertyMap {
	return BuildPropertyMap(Extract(text))
}

// ParseSingle parses the output of a single-property read. A rejected,
// aborted or failed request yields an empty map.
func ParseSingle(text string, prop PropertyID) PropertyMap {
	e := NewExtractor(text)
	if rejected(e.toks) {
		return PropertyMap{}
	}
	v, ok := e.Value()
	if !ok {
		return PropertyMap{}
	}
	if list, isList := v.([]any); isList && prop == PropObjectIdentifier && len(list) == 2 {
		return BuildPropertyMap([]Entity{
			{Key: "object-type", Value: list[0]},
			{Key: "object-identifier", Value: list[1]},
		})
	}
	out := PropertyMap{prop: v}
	suppressDefaults(out)
	return out
}

// rejected reports whether the output starts with a protocol level
// failure such as "Reject: Unrecognized Service" or "BACnet Error: ...".
func rejected(toks []Token) bool {
	for i, tok := range toks {
		if tok.Kind != TokenEOL {
			return failure(toks[i:])
		}
	}
	return false
}

// failure reports whether the line starting at toks[0] reads "Reject:",
// "Abort:" or "Error:", optionally behind one word such as "BACnet".
func failure(toks []Token) bool {
	for j := 0; j < len(toks) && j <= 2; j++ {
		switch toks[j].Kind {
		case TokenEOL:
			return false
		case TokenColon:
			if j == 0 {
				return false
			}
			word, _ := toks[j-1].Value.(string)
			switch strings.ToLower(word) {
			case "reject", "abort", "error":
				return true
			}
			return false
		}
	}
	return false
}
