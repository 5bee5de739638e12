// Package pipeline ties the citation core together for one in-flight
// response: tool results come in, normalized citation groups and LLM-facing
// marker instructions go out, and the finished response can be flushed to the
// attachment store and rendered as plain text.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helixchat/citations/internal/citations"
	"github.com/helixchat/citations/internal/config"
	"github.com/helixchat/citations/internal/export"
	"github.com/helixchat/citations/internal/markers"
	"github.com/helixchat/citations/internal/metrics"
	"github.com/helixchat/citations/internal/store"
	"github.com/helixchat/citations/internal/tracing"
)

// ToolResult is what one tool call contributes to the response: the updated
// citation group plus the text blocks handed back to the orchestration layer.
type ToolResult struct {
	SourceKey string
	// Group is the full merged (turn, sourceKey) group after this call.
	Group []citations.Citation
	// Instructions is the marker listing injected into LLM context.
	Instructions string
	// Context is the sectioned source-content block for the tool transcript.
	Context string
}

// Processor owns the citation state for one in-flight response. Construct one
// per response; tool calls running in parallel may share it, merges are
// serialized internally.
type Processor struct {
	mu      sync.Mutex
	acc     *citations.Accumulator
	grammar markers.Grammar
	aliases *config.Aliases
	logger  *zap.Logger

	attachments    store.AttachmentStore
	conversationID string
	maxPerGroup    int
}

// Option configures a Processor.
type Option func(*Processor)

// WithGrammar overrides the default marker grammar.
func WithGrammar(g markers.Grammar) Option {
	return func(p *Processor) { p.grammar = g }
}

// WithAliases installs source-key aliases for tool names.
func WithAliases(a *config.Aliases) Option {
	return func(p *Processor) { p.aliases = a }
}

// WithStore enables attachment persistence on Flush.
func WithStore(s store.AttachmentStore) Option {
	return func(p *Processor) { p.attachments = s }
}

// WithMaxSourcesPerGroup caps each group's size. Zero means no cap.
func WithMaxSourcesPerGroup(n int) Option {
	return func(p *Processor) { p.maxPerGroup = n }
}

// New creates a processor for one response of the given conversation.
func New(conversationID string, logger *zap.Logger, opts ...Option) *Processor {
	p := &Processor{
		acc:            citations.NewAccumulator(),
		grammar:        markers.Default,
		logger:         logger,
		conversationID: conversationID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnToolResult normalizes and accumulates the raw sources a tool call
// produced, returning the merged group and the text blocks for the LLM.
// Invalid sources are filtered, duplicates merged away; neither is an error.
func (p *Processor) OnToolResult(ctx context.Context, turn int, toolName string, raw []citations.RawSource) ToolResult {
	sourceKey := p.sourceKey(toolName)

	_, span := tracing.StartGroupSpan(ctx, "citations.on_tool_result", turn, sourceKey)
	defer span.End()

	valid := raw[:0:0]
	for _, src := range raw {
		if citations.Attachable(src) {
			valid = append(valid, src)
		} else {
			metrics.SourcesFiltered.Inc()
		}
	}

	p.mu.Lock()
	existing := p.acc.GetCitations(turn, sourceKey)
	before := len(existing)
	if p.maxPerGroup > 0 {
		valid = capToGroup(valid, existing, p.maxPerGroup)
	}
	group := p.acc.AddSources(valid, turn, sourceKey)
	p.mu.Unlock()

	appended := len(group) - before
	for _, c := range group[before:] {
		metrics.SourcesNormalized.WithLabelValues(string(c.Origin)).Inc()
	}
	metrics.CitationsAccumulated.WithLabelValues(sourceKey).Add(float64(appended))
	if skipped := len(valid) - appended; skipped > 0 {
		metrics.DuplicatesSkipped.Add(float64(skipped))
	}
	metrics.GroupSize.Observe(float64(len(group)))

	p.logger.Debug("Accumulated tool sources",
		zap.String("conversation_id", p.conversationID),
		zap.String("tool", toolName),
		zap.String("source_key", sourceKey),
		zap.Int("turn", turn),
		zap.Int("raw", len(raw)),
		zap.Int("appended", appended),
		zap.Int("group_size", len(group)),
	)

	return ToolResult{
		SourceKey:    sourceKey,
		Group:        group,
		Instructions: p.grammar.RenderInstructions(group, turn, sourceKey, p.displayName(sourceKey)),
		Context:      p.grammar.RenderSourceContext(group, turn, sourceKey),
	}
}

// Hydrate merges previously persisted attachments for a message back into
// the processor, re-indexing as needed. Used when a conversation resumes.
func (p *Processor) Hydrate(ctx context.Context, messageID string) error {
	if p.attachments == nil {
		return nil
	}
	atts, err := p.attachments.LoadAttachments(ctx, p.conversationID, messageID)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	for _, att := range atts {
		p.acc.AddCitations(att)
	}
	p.mu.Unlock()

	p.logger.Debug("Hydrated attachments",
		zap.String("conversation_id", p.conversationID),
		zap.String("message_id", messageID),
		zap.Int("groups", len(atts)),
	)
	return nil
}

// Flush stamps every accumulated attachment with the conversation and message
// ids and persists them when a store is configured. A blank messageID gets a
// generated one. Returns the stamped attachments.
func (p *Processor) Flush(ctx context.Context, messageID string) ([]citations.Attachment, error) {
	if messageID == "" {
		messageID = uuid.New().String()
	}

	p.mu.Lock()
	atts := p.acc.GetAllAttachments()
	p.mu.Unlock()

	for i := range atts {
		atts[i].ConversationID = p.conversationID
		atts[i].MessageID = messageID
	}

	if p.attachments != nil && len(atts) > 0 {
		if err := p.attachments.SaveAttachments(ctx, p.conversationID, messageID, atts); err != nil {
			return nil, err
		}
	}
	return atts, nil
}

// ExportText renders the response text for the clipboard: markers become
// sequence numbers backed by a trailing reference list.
func (p *Processor) ExportText(ctx context.Context, text string) string {
	_, span := tracing.StartSpan(ctx, "citations.export")
	defer span.End()
	start := time.Now()

	p.mu.Lock()
	groups := export.GroupsFromAttachments(p.acc.GetAllAttachments())
	p.mu.Unlock()

	out, stats := export.Formatter{Grammar: p.grammar}.FormatWithStats(text, groups)

	metrics.ExportsTotal.Inc()
	metrics.ExportDuration.Observe(time.Since(start).Seconds())
	metrics.MarkersParsed.Add(float64(stats.MarkersFound))
	metrics.MarkersStripped.Add(float64(stats.MarkersStripped))

	p.logger.Debug("Rendered export",
		zap.String("conversation_id", p.conversationID),
		zap.Int("markers", stats.MarkersFound),
		zap.Int("stripped", stats.MarkersStripped),
		zap.Int("links", stats.Links),
	)
	return out
}

// Citations returns one accumulated group.
func (p *Processor) Citations(turn int, sourceKey string) []citations.Citation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acc.GetCitations(turn, sourceKey)
}

// Attachments returns every accumulated attachment, unstamped.
func (p *Processor) Attachments() []citations.Attachment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acc.GetAllAttachments()
}

// Count returns the number of accumulated citations.
func (p *Processor) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acc.Count()
}

// Clear resets the processor for the next response cycle.
func (p *Processor) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acc.Clear()
}

// capToGroup drops sources that would grow the group past max. Duplicates of
// already-stored files pass through without spending budget; the accumulator
// merges them away.
func capToGroup(raw []citations.RawSource, existing []citations.Citation, max int) []citations.RawSource {
	budget := max - len(existing)
	files := make(map[string]bool, len(existing))
	for _, c := range existing {
		if c.FileID != "" {
			files[c.FileID] = true
		}
	}

	kept := raw[:0:0]
	for _, src := range raw {
		if src.FileID != "" && files[src.FileID] {
			kept = append(kept, src)
			continue
		}
		if budget <= 0 {
			continue
		}
		budget--
		if src.FileID != "" {
			files[src.FileID] = true
		}
		kept = append(kept, src)
	}
	return kept
}

func (p *Processor) sourceKey(toolName string) string {
	if p.aliases != nil {
		if key := p.aliases.SourceKey(toolName); key != "" {
			return key
		}
	}
	return markers.SanitizeSourceKey(toolName)
}

func (p *Processor) displayName(sourceKey string) string {
	if p.aliases != nil {
		return p.aliases.DisplayName(sourceKey)
	}
	return ""
}
