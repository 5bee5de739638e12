// Package markers implements the inline citation marker grammar: the lexical
// format the generator embeds in LLM-facing text and the parser recovers from
// LLM-produced text. Generator and parser share one Grammar value; the token
// shape is fixed as turn<N><sourceKey><M> with decimal turn and index numbers
// around a lowercase source key.
package markers

import (
	"strings"
)

// Ref addresses one citation inside an accumulator store.
type Ref struct {
	Turn      int
	SourceKey string
	Index     int
}

// Marker is one parsed occurrence of the marker syntax in free text.
type Marker struct {
	// Text is the full matched marker, delimiters included.
	Text string
	// Offset is the byte offset of the marker in the scanned text.
	Offset int
	// Refs holds the successfully parsed index expressions, in marker order.
	// Expressions that failed to parse are omitted.
	Refs []Ref
}

// Grammar fixes the marker delimiter pair. The open and close sentinels must
// be distinct non-ASCII sequences that cannot occur inside a token.
type Grammar struct {
	Open  string
	Close string
}

// Default is the canonical bracket-sentinel grammar.
var Default = Grammar{Open: "【", Close: "】"}

// Scan finds every marker in text, in document order. A bracket pair whose
// body yields zero valid index expressions is not a marker and is omitted.
// Scan is total: it never fails, whatever the input.
func (g Grammar) Scan(text string) []Marker {
	if g.Open == "" || g.Close == "" || g.Open == g.Close {
		return nil
	}

	var found []Marker
	pos := 0
	for pos < len(text) {
		open := strings.Index(text[pos:], g.Open)
		if open < 0 {
			break
		}
		open += pos

		rest := text[open+len(g.Open):]
		close := strings.Index(rest, g.Close)
		if close < 0 {
			break
		}
		// An inner open sentinel before the close means the outer one was
		// stray text; resume from the inner occurrence.
		if inner := strings.Index(rest[:close], g.Open); inner >= 0 {
			pos = open + len(g.Open) + inner
			continue
		}

		body := rest[:close]
		end := open + len(g.Open) + close + len(g.Close)

		var refs []Ref
		for _, token := range strings.Split(body, ",") {
			if ref, ok := ParseToken(strings.TrimSpace(token)); ok {
				refs = append(refs, ref)
			}
		}
		if len(refs) > 0 {
			found = append(found, Marker{
				Text:   text[open:end],
				Offset: open,
				Refs:   refs,
			})
		}
		pos = end
	}
	return found
}

// ParseToken decodes a single index expression of the form
// turn<N><sourceKey><M>. The leading digit run after "turn" is the turn
// number, the trailing digit run is the index, and the source key is whatever
// separates them. Returns false, never an error, on anything malformed.
func ParseToken(token string) (Ref, bool) {
	const prefix = "turn"
	if !strings.HasPrefix(token, prefix) {
		return Ref{}, false
	}
	body := token[len(prefix):]

	// Leading digits: the turn number.
	i := 0
	for i < len(body) && isDigit(body[i]) {
		i++
	}
	if i == 0 {
		return Ref{}, false
	}
	turn, ok := parseUint(body[:i])
	if !ok {
		return Ref{}, false
	}

	// Trailing digits: the index.
	j := len(body)
	for j > i && isDigit(body[j-1]) {
		j--
	}
	if j == len(body) {
		return Ref{}, false
	}
	index, ok := parseUint(body[j:])
	if !ok {
		return Ref{}, false
	}

	// Whatever remains is the source key; it cannot border on digits because
	// both digit runs were consumed greedily.
	key := body[i:j]
	if !validSourceKey(key) {
		return Ref{}, false
	}

	return Ref{Turn: turn, SourceKey: key, Index: index}, true
}

func validSourceKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'a' && c <= 'z' || c == '_' || isDigit(c) {
			continue
		}
		return false
	}
	// Greedy digit capture guarantees non-digit boundaries for parsed tokens;
	// reject explicitly for direct callers.
	return !isDigit(key[0]) && !isDigit(key[len(key)-1])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// parseUint avoids strconv's error allocation on the hot scan path and caps
// values well below overflow.
func parseUint(s string) (int, bool) {
	if s == "" || len(s) > 9 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	return n, true
}
