package citations

import (
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestInferOrigin(t *testing.T) {
	tests := []struct {
		name     string
		raw      RawSource
		expected Origin
	}{
		{
			name:     "explicit origin wins",
			raw:      RawSource{Origin: OriginConnector, Link: "https://example.com"},
			expected: OriginConnector,
		},
		{
			name:     "storage type tag means cloud store",
			raw:      RawSource{FileID: "f1", Metadata: map[string]any{"storageType": "drive"}},
			expected: OriginCloudStore,
		},
		{
			name:     "cloud host in url",
			raw:      RawSource{Link: "https://drive.google.com/file/d/abc"},
			expected: OriginCloudStore,
		},
		{
			name:     "link without file id is web search",
			raw:      RawSource{Link: "https://example.com/article"},
			expected: OriginWebSearch,
		},
		{
			name:     "metadata url counts as link",
			raw:      RawSource{Metadata: map[string]any{"url": "https://example.com"}},
			expected: OriginWebSearch,
		},
		{
			name:     "link with file id is not web search",
			raw:      RawSource{Link: "https://example.com/doc", FileID: "f1"},
			expected: OriginFileSearch,
		},
		{
			name:     "connector source type",
			raw:      RawSource{SourceType: "connector", FileID: "f1"},
			expected: OriginConnector,
		},
		{
			name:     "default is file search",
			raw:      RawSource{FileID: "f1", FileName: "doc.pdf"},
			expected: OriginFileSearch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(tt.raw, 0, "search", 0)
			if c.Origin != tt.expected {
				t.Errorf("expected origin %q, got %q", tt.expected, c.Origin)
			}
		})
	}
}

func TestNormalizeIdentity(t *testing.T) {
	raw := RawSource{Title: "A", Link: "https://example.com/a"}

	c := Normalize(raw, 3, "search", 7)
	if c.ID != "3_search_7" {
		t.Errorf("expected id 3_search_7, got %q", c.ID)
	}
	if c.Turn != 3 || c.SourceKey != "search" || c.Index != 7 {
		t.Errorf("unexpected position: turn=%d key=%q index=%d", c.Turn, c.SourceKey, c.Index)
	}

	// Re-normalizing the same raw source at the same position is stable.
	again := Normalize(raw, 3, "search", 7)
	if again.ID != c.ID || again.Index != c.Index {
		t.Errorf("normalization not stable: %q/%d vs %q/%d", c.ID, c.Index, again.ID, again.Index)
	}
}

func TestNormalizeAttribution(t *testing.T) {
	tests := []struct {
		name     string
		raw      RawSource
		expected string
	}{
		{
			name:     "explicit attribution kept",
			raw:      RawSource{Attribution: "Example News", Link: "https://www.example.com/a"},
			expected: "Example News",
		},
		{
			name:     "falls back to registrable domain",
			raw:      RawSource{Link: "https://www.example.com/path?x=1"},
			expected: "example.com",
		},
		{
			name:     "subdomains preserved",
			raw:      RawSource{Link: "https://blog.example.com/post"},
			expected: "blog.example.com",
		},
		{
			name:     "port stripped",
			raw:      RawSource{Link: "http://example.com:8080/x"},
			expected: "example.com",
		},
		{
			name:     "no url leaves attribution unset",
			raw:      RawSource{FileID: "f1"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(tt.raw, 0, "search", 0)
			if c.Attribution != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, c.Attribution)
			}
		})
	}
}

func TestNormalizeMetadataPassthrough(t *testing.T) {
	raw := RawSource{
		Link: "https://example.com",
		Metadata: map[string]any{
			"year":           2024,
			"contentsubtype": "news",
			"imageUrl":       "https://example.com/t.png",
			"x-custom-key":   "kept",
		},
	}

	c := Normalize(raw, 0, "search", 0)
	if len(c.Metadata) != 4 {
		t.Fatalf("expected 4 metadata keys, got %d", len(c.Metadata))
	}
	if c.Metadata["x-custom-key"] != "kept" {
		t.Errorf("unknown metadata key dropped")
	}

	// The copy is independent of the input bag.
	c.Metadata["x-custom-key"] = "mutated"
	if raw.Metadata["x-custom-key"] != "kept" {
		t.Errorf("normalization mutated the input record")
	}
}

func TestAttachable(t *testing.T) {
	tests := []struct {
		name     string
		raw      RawSource
		expected bool
	}{
		{"file with relevance", RawSource{FileID: "f1", Relevance: floatPtr(0.8)}, true},
		{"file without relevance", RawSource{FileID: "f1"}, false},
		{"search result with link", RawSource{Link: "https://example.com"}, true},
		{"relevance without identity", RawSource{Relevance: floatPtr(0.5)}, false},
		{"empty source", RawSource{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Attachable(tt.raw); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://www.example.com/path", "example.com"},
		{"http://example.com:443/", "example.com"},
		{"https://docs.blog.example.co.uk/a", "docs.blog.example.co.uk"},
		{"example.com/bare", "example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := RegistrableDomain(tt.input); got != tt.expected {
			t.Errorf("RegistrableDomain(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
