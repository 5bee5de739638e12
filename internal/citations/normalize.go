package citations

import (
	"net/url"
	"strings"
)

// cloudStoreHosts are URL substrings that identify documents living in a
// cloud document store rather than on the open web.
var cloudStoreHosts = []string{
	"sharepoint.com",
	"onedrive.live.com",
	"drive.google.com",
	"docs.google.com",
	"dropbox.com",
}

// Normalize converts one raw tool-result record into a canonical citation at
// the given position. It is a pure function: no I/O, no shared state, and the
// input record is never mutated.
func Normalize(raw RawSource, turn int, sourceKey string, index int) Citation {
	c := Citation{
		ID:        CitationID(turn, sourceKey, index),
		Turn:      turn,
		SourceKey: sourceKey,
		Index:     index,
		Origin:    inferOrigin(raw),

		Title:       raw.Title,
		Snippet:     raw.Snippet,
		Attribution: raw.Attribution,
		URL:         sourceURL(raw),

		FileID:    raw.FileID,
		FileName:  raw.FileName,
		Relevance: raw.Relevance,
	}

	if len(raw.Pages) > 0 {
		c.Pages = append([]int(nil), raw.Pages...)
	}
	if len(raw.PageRelevance) > 0 {
		c.PageRelevance = make(map[int]float64, len(raw.PageRelevance))
		for page, score := range raw.PageRelevance {
			c.PageRelevance[page] = score
		}
	}
	if len(raw.Metadata) > 0 {
		// Unknown keys pass through untouched; the normalizer is not an
		// allow-list filter.
		c.Metadata = make(map[string]any, len(raw.Metadata))
		for k, v := range raw.Metadata {
			c.Metadata[k] = v
		}
	}

	if c.Attribution == "" && c.URL != "" {
		c.Attribution = RegistrableDomain(c.URL)
	}

	return c
}

// Attachable reports whether a raw source carries enough identity to enter an
// attachment: a file identifier with a relevance score, or a search-engine
// result with a link. Sources failing this are filtered, not errored on.
func Attachable(raw RawSource) bool {
	if raw.FileID != "" && raw.Relevance != nil {
		return true
	}
	return raw.Link != ""
}

// sourceURL picks the clickable URL for a source: the explicit link, falling
// back to a url key in the metadata bag.
func sourceURL(raw RawSource) string {
	if raw.Link != "" {
		return raw.Link
	}
	if u, ok := raw.Metadata["url"].(string); ok {
		return u
	}
	return ""
}

// inferOrigin decides the citation category. Precedence: explicit origin,
// cloud-document-store markers, link without file identity, connector tag,
// then file search as the default.
func inferOrigin(raw RawSource) Origin {
	if raw.Origin != "" {
		return raw.Origin
	}
	if isCloudStored(raw) {
		return OriginCloudStore
	}
	if sourceURL(raw) != "" && raw.FileID == "" {
		return OriginWebSearch
	}
	if strings.EqualFold(raw.SourceType, "connector") {
		return OriginConnector
	}
	return OriginFileSearch
}

func isCloudStored(raw RawSource) bool {
	if tag, ok := raw.Metadata["storageType"].(string); ok && tag != "" {
		return true
	}
	u := strings.ToLower(sourceURL(raw))
	if u == "" {
		return false
	}
	for _, host := range cloudStoreHosts {
		if strings.Contains(u, host) {
			return true
		}
	}
	return false
}

// RegistrableDomain returns the host of a URL with any port and a leading
// "www." removed, preserving other subdomains. Returns "" when the input does
// not parse as a URL with a host.
func RegistrableDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Host)
	if host == "" && !strings.Contains(rawURL, "://") {
		// Bare "example.com/path" style links have no scheme; reparse.
		if parsed, err = url.Parse("https://" + rawURL); err != nil {
			return ""
		}
		host = strings.ToLower(parsed.Host)
	}
	if colon := strings.Index(host, ":"); colon != -1 {
		host = host[:colon]
	}
	host = strings.TrimPrefix(host, "www.")
	return host
}
