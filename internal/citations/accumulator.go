package citations

// Accumulator owns the per-turn, per-source-group citation store for one
// in-flight response. Merging new tool results into an existing group appends
// rather than overwrites, so a second tool call against the same group can
// never clobber the first.
//
// An Accumulator is not safe for concurrent use; the caller serializes access
// (one accumulator per in-flight response, or an external mutex when tool
// calls run in parallel).
type Accumulator struct {
	groups map[groupKey][]Citation
	order  []groupKey
}

type groupKey struct {
	turn int
	key  string
}

// NewAccumulator creates an empty accumulator. Construct one per
// response-processing lifetime; reuse across turns goes through Clear.
func NewAccumulator() *Accumulator {
	return &Accumulator{groups: make(map[groupKey][]Citation)}
}

// AddSources normalizes raw sources and merges them into the (turn, sourceKey)
// group, returning the full updated group. Indices continue from the current
// group length; duplicates by file identity are skipped. A nil or empty input
// is a no-op returning the unchanged group.
func (a *Accumulator) AddSources(raw []RawSource, turn int, sourceKey string) []Citation {
	gk := groupKey{turn: turn, key: sourceKey}
	if len(raw) == 0 {
		return a.snapshot(gk)
	}

	group := a.groups[gk]
	seen := seenKeys(group)

	for _, src := range raw {
		c := Normalize(src, turn, sourceKey, len(group))
		key := dedupKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		group = append(group, c)
	}

	a.put(gk, group)
	return a.snapshot(gk)
}

// AddCitations merges already-normalized sources from an attachment. The
// caller's indices are discarded: each appended citation is re-indexed to
// continue after the existing group length, and its id recomputed.
func (a *Accumulator) AddCitations(att Attachment) []Citation {
	gk := groupKey{turn: att.Turn, key: att.SourceKey}
	if len(att.Sources) == 0 {
		return a.snapshot(gk)
	}

	group := a.groups[gk]
	seen := seenKeys(group)

	for _, src := range att.Sources {
		c := src
		c.Turn = att.Turn
		c.SourceKey = att.SourceKey
		c.Index = len(group)
		c.ID = CitationID(att.Turn, att.SourceKey, c.Index)
		key := dedupKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		group = append(group, c)
	}

	a.put(gk, group)
	return a.snapshot(gk)
}

// GetCitations returns a copy of one group, or nil when the group is absent.
func (a *Accumulator) GetCitations(turn int, sourceKey string) []Citation {
	return a.snapshot(groupKey{turn: turn, key: sourceKey})
}

// GetAllCitations returns every stored citation in group insertion order.
func (a *Accumulator) GetAllCitations() []Citation {
	var all []Citation
	for _, gk := range a.order {
		all = append(all, a.groups[gk]...)
	}
	return all
}

// GetCitationsByTurn reconstructs attachments for one turn, skipping empty
// groups.
func (a *Accumulator) GetCitationsByTurn(turn int) []Attachment {
	var atts []Attachment
	for _, gk := range a.order {
		if gk.turn != turn {
			continue
		}
		if att, ok := a.attachment(gk); ok {
			atts = append(atts, att)
		}
	}
	return atts
}

// GetAllAttachments reconstructs attachments for every non-empty group in
// insertion order.
func (a *Accumulator) GetAllAttachments() []Attachment {
	var atts []Attachment
	for _, gk := range a.order {
		if att, ok := a.attachment(gk); ok {
			atts = append(atts, att)
		}
	}
	return atts
}

// IsEmpty reports whether the accumulator holds no citations.
func (a *Accumulator) IsEmpty() bool {
	return a.Count() == 0
}

// Count returns the total number of stored citations across all groups.
func (a *Accumulator) Count() int {
	n := 0
	for _, group := range a.groups {
		n += len(group)
	}
	return n
}

// Clear resets the accumulator for reuse in a new response cycle.
func (a *Accumulator) Clear() {
	a.groups = make(map[groupKey][]Citation)
	a.order = nil
}

func (a *Accumulator) attachment(gk groupKey) (Attachment, bool) {
	group := a.groups[gk]
	if len(group) == 0 {
		return Attachment{}, false
	}
	return Attachment{
		Type:      AttachmentType,
		Turn:      gk.turn,
		SourceKey: gk.key,
		Sources:   append([]Citation(nil), group...),
	}, true
}

func (a *Accumulator) put(gk groupKey, group []Citation) {
	if _, exists := a.groups[gk]; !exists {
		a.order = append(a.order, gk)
	}
	a.groups[gk] = group
}

func (a *Accumulator) snapshot(gk groupKey) []Citation {
	group := a.groups[gk]
	if group == nil {
		return nil
	}
	return append([]Citation(nil), group...)
}

// dedupKey is the merge identity of a citation: file id when present,
// otherwise the assigned id. Since ids embed a monotonically increasing
// index, non-file sources effectively never collide.
func dedupKey(c Citation) string {
	if c.FileID != "" {
		return "file:" + c.FileID
	}
	return "id:" + c.ID
}

func seenKeys(group []Citation) map[string]bool {
	seen := make(map[string]bool, len(group))
	for _, c := range group {
		seen[dedupKey(c)] = true
	}
	return seen
}
