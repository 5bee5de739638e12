package citations

import "fmt"

// Origin categorizes where a citation came from.
type Origin string

const (
	OriginFileSearch Origin = "file_search"
	OriginWebSearch  Origin = "web_search"
	OriginConnector  Origin = "connector"
	OriginCloudStore Origin = "cloud_document_store"
)

// AttachmentType marks citation attachments on persisted messages.
const AttachmentType = "citations"

// RawSource is one loosely-structured result record produced by a tool call.
// Known fields are explicit; Metadata carries everything else and is passed
// through normalization unchanged.
type RawSource struct {
	FileID        string          `json:"fileId,omitempty"`
	FileName      string          `json:"fileName,omitempty"`
	Relevance     *float64        `json:"relevance,omitempty"`
	Snippet       string          `json:"snippet,omitempty"`
	Title         string          `json:"title,omitempty"`
	Link          string          `json:"link,omitempty"`
	Attribution   string          `json:"attribution,omitempty"`
	Origin        Origin          `json:"origin,omitempty"`
	SourceType    string          `json:"sourceType,omitempty"`
	Pages         []int           `json:"pages,omitempty"`
	PageRelevance map[int]float64 `json:"pageRelevance,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// Citation is the canonical record produced by normalization. ID is derived
// from (Turn, SourceKey, Index) and is unique within one accumulator.
type Citation struct {
	ID        string `json:"id"`
	Turn      int    `json:"turn"`
	SourceKey string `json:"sourceKey"`
	Index     int    `json:"index"`
	Origin    Origin `json:"origin"`

	Title       string `json:"title,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Attribution string `json:"attribution,omitempty"`
	URL         string `json:"url,omitempty"`

	FileID        string          `json:"fileId,omitempty"`
	FileName      string          `json:"fileName,omitempty"`
	Pages         []int           `json:"pages,omitempty"`
	PageRelevance map[int]float64 `json:"pageRelevance,omitempty"`

	Relevance *float64       `json:"relevance,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Attachment wraps one (turn, sourceKey) citation group for persistence.
type Attachment struct {
	Type           string     `json:"type"`
	Turn           int        `json:"turn"`
	SourceKey      string     `json:"sourceKey"`
	Sources        []Citation `json:"sources"`
	ToolCallID     string     `json:"toolCallId,omitempty"`
	MessageID      string     `json:"messageId,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
	Name           string     `json:"name,omitempty"`
}

// CitationID derives the stable identifier for a citation at the given
// position. Two calls with the same arguments always produce the same id.
func CitationID(turn int, sourceKey string, index int) string {
	return fmt.Sprintf("%d_%s_%d", turn, sourceKey, index)
}
