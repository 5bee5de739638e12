package markers

import (
	"fmt"
	"strings"

	"github.com/helixchat/citations/internal/citations"
)

// Token renders one index expression. Token and ParseToken are exact
// inverses for any ref with a sanitized source key.
func (g Grammar) Token(ref Ref) string {
	return fmt.Sprintf("turn%d%s%d", ref.Turn, ref.SourceKey, ref.Index)
}

// Marker renders a full marker for one or more refs, comma-joining the
// tokens inside the delimiter pair. Zero refs yields the empty string.
func (g Grammar) Marker(refs ...Ref) string {
	if len(refs) == 0 {
		return ""
	}
	tokens := make([]string, len(refs))
	for i, ref := range refs {
		tokens[i] = g.Token(ref)
	}
	return g.Open + strings.Join(tokens, ",") + g.Close
}

// RefOf is the marker address of a canonical citation.
func RefOf(c citations.Citation) Ref {
	return Ref{Turn: c.Turn, SourceKey: c.SourceKey, Index: c.Index}
}

// SanitizeSourceKey converts a tool or server name into a key safe to embed
// in marker tokens: lowercased, every run of non-alphanumeric characters
// collapsed to a single underscore, edge underscores trimmed. Keys that would
// start or end with a digit get an underscore guard so the turn/index digit
// boundaries stay unambiguous. A name with no usable characters at all falls
// back to "source".
func SanitizeSourceKey(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	key := b.String()
	if key == "" {
		// Non-ASCII names can sanitize away entirely; an empty key would
		// render tokens the grammar cannot parse back.
		return "source"
	}
	if isDigit(key[0]) {
		key = "_" + key
	}
	if isDigit(key[len(key)-1]) {
		key += "_"
	}
	return key
}

// RenderInstructions produces the instructional block injected into LLM
// context: one line per source with its display name and the exact marker the
// model should reproduce, plus a trailing multi-source example when the group
// has more than one source. Deterministic; iteration order is input order.
func (g Grammar) RenderInstructions(sources []citations.Citation, turn int, sourceKey, displayName string) string {
	if len(sources) == 0 {
		return ""
	}
	if displayName == "" {
		displayName = sourceKey
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sources from %s (turn %d). Cite a source by reproducing its marker verbatim, immediately after the sentence it supports:\n", displayName, turn)
	for _, src := range sources {
		fmt.Fprintf(&b, "- %s: %s\n", sourceLabel(src), g.Marker(RefOf(src)))
	}
	if len(sources) >= 2 {
		multi := g.Marker(RefOf(sources[0]), RefOf(sources[1]))
		fmt.Fprintf(&b, "To cite several sources at one point, join them in a single marker: %s\n", multi)
	}
	return b.String()
}

// RenderSourceContext formats a citation group as the sectioned context block
// shipped alongside tool results, one heading per source with its marker,
// URL, summary, and attribution.
func (g Grammar) RenderSourceContext(group []citations.Citation, turn int, sourceKey string) string {
	if len(group) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s, Turn %d ===\n", sectionTitle(group[0].Origin), turn)
	for _, src := range group {
		title := src.Title
		if title == "" {
			title = "(no title)"
		}
		fmt.Fprintf(&b, "\n# Result %d: %q\n", src.Index, title)
		fmt.Fprintf(&b, "Marker: %s\n", g.Marker(RefOf(src)))
		if src.URL != "" {
			fmt.Fprintf(&b, "URL: %s\n", src.URL)
		}
		if src.FileName != "" {
			fmt.Fprintf(&b, "File: %s\n", src.FileName)
		}
		if src.Snippet != "" {
			fmt.Fprintf(&b, "Summary: %s\n", src.Snippet)
		}
		if src.Attribution != "" {
			fmt.Fprintf(&b, "Source: %s\n", src.Attribution)
		}
	}
	return b.String()
}

func sourceLabel(c citations.Citation) string {
	switch {
	case c.Title != "":
		return c.Title
	case c.FileName != "":
		return c.FileName
	case c.URL != "":
		return c.URL
	default:
		return c.ID
	}
}

func sectionTitle(origin citations.Origin) string {
	switch origin {
	case citations.OriginWebSearch:
		return "Web Results"
	case citations.OriginFileSearch:
		return "File Results"
	case citations.OriginCloudStore:
		return "Document Store Results"
	case citations.OriginConnector:
		return "Connector Results"
	default:
		return "Results"
	}
}
