// Package export renders a message containing inline citation markers as
// plain text for clipboard use: markers become sequential bracket numbers and
// the resolved links are appended as a numbered reference list.
package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/helixchat/citations/internal/citations"
	"github.com/helixchat/citations/internal/markers"
)

// Groups is the per-turn citation data the formatter resolves markers
// against: turn -> sourceKey -> ordered citations.
type Groups map[int]map[string][]citations.Citation

// GroupsFromAttachments builds the resolution index from persisted
// attachments.
func GroupsFromAttachments(atts []citations.Attachment) Groups {
	groups := make(Groups)
	for _, att := range atts {
		byKey := groups[att.Turn]
		if byKey == nil {
			byKey = make(map[string][]citations.Citation)
			groups[att.Turn] = byKey
		}
		byKey[att.SourceKey] = append(byKey[att.SourceKey], att.Sources...)
	}
	return groups
}

// Formatter renders clipboard text with a fixed marker grammar.
type Formatter struct {
	Grammar markers.Grammar
}

// Format renders text with the default grammar.
func Format(text string, groups Groups) string {
	return Formatter{Grammar: markers.Default}.Format(text, groups)
}

// trailingBareRefs matches a final line consisting only of bracket-number
// tokens, a stray reference list left behind with no Citations block.
var trailingBareRefs = regexp.MustCompile(`(?:^|\n)[ \t]*(?:\[\d+\][ \t]*)+$`)

// Stats reports what one Format call did, for observability at the caller.
type Stats struct {
	// MarkersFound is the number of markers parsed from the text.
	MarkersFound int
	// MarkersStripped counts markers replaced with nothing because no
	// reference resolved.
	MarkersStripped int
	// Links is the number of distinct reference-list entries.
	Links int
}

// Format replaces every marker in text with its sequence numbers and appends
// the numbered reference list. Markers with no resolvable reference are
// stripped. Pure and deterministic: the same inputs always yield the same
// bytes.
func (f Formatter) Format(text string, groups Groups) string {
	out, _ := f.FormatWithStats(text, groups)
	return out
}

// FormatWithStats is Format plus a report of markers found, markers stripped,
// and links emitted.
func (f Formatter) FormatWithStats(text string, groups Groups) (string, Stats) {
	found := f.Grammar.Scan(text)

	// A resolved link keeps the sequence number it was first assigned for the
	// whole document.
	seqByURL := make(map[string]int)
	var links []string

	stats := Stats{MarkersFound: len(found)}

	var b strings.Builder
	pos := 0
	for _, m := range found {
		b.WriteString(text[pos:m.Offset])
		pos = m.Offset + len(m.Text)

		seenInMarker := make(map[int]bool)
		for _, ref := range m.Refs {
			link, ok := resolveLink(groups, ref)
			if !ok {
				continue
			}
			seq, assigned := seqByURL[link]
			if !assigned {
				seq = len(links) + 1
				seqByURL[link] = seq
				links = append(links, link)
			}
			if seenInMarker[seq] {
				continue
			}
			seenInMarker[seq] = true
			fmt.Fprintf(&b, "[%d]", seq)
		}
		if len(seenInMarker) == 0 {
			stats.MarkersStripped++
		}
	}
	b.WriteString(text[pos:])
	stats.Links = len(links)

	out := b.String()
	if len(links) == 0 {
		return trailingBareRefs.ReplaceAllString(out, ""), stats
	}

	b.Reset()
	b.WriteString(out)
	b.WriteString("\n\nCitations:\n")
	for i, link := range links {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, link)
	}
	return b.String(), stats
}

// resolveLink looks a marker reference up in the group data. Unknown turns,
// unknown source keys, out-of-range indices, and sources without a link all
// resolve to nothing.
func resolveLink(groups Groups, ref markers.Ref) (string, bool) {
	byKey, ok := groups[ref.Turn]
	if !ok {
		return "", false
	}
	group, ok := byKey[ref.SourceKey]
	if !ok {
		return "", false
	}
	if ref.Index < 0 || ref.Index >= len(group) {
		return "", false
	}
	link := group[ref.Index].URL
	if link == "" {
		return "", false
	}
	return link, true
}
