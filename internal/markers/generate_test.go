package markers

import (
	"strings"
	"testing"

	"github.com/helixchat/citations/internal/citations"
)

func TestRenderInstructions(t *testing.T) {
	group := []citations.Citation{
		{ID: "0_search_0", Turn: 0, SourceKey: "search", Index: 0, Title: "First Article", URL: "https://a.com"},
		{ID: "0_search_1", Turn: 0, SourceKey: "search", Index: 1, Title: "Second Article", URL: "https://b.com"},
	}

	out := Default.RenderInstructions(group, 0, "search", "Web Search")

	for _, want := range []string{
		"Web Search",
		"First Article: \u3010turn0search0\u3011",
		"Second Article: \u3010turn0search1\u3011",
		"\u3010turn0search0,turn0search1\u3011",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("instructions missing %q:\n%s", want, out)
		}
	}

	// Every marker in the block must re-parse to a ref in the group.
	for _, m := range Default.Scan(out) {
		for _, ref := range m.Refs {
			if ref.Turn != 0 || ref.SourceKey != "search" || ref.Index > 1 {
				t.Errorf("generated unparseable or out-of-group ref: %+v", ref)
			}
		}
	}
}

func TestRenderInstructionsDeterministic(t *testing.T) {
	group := []citations.Citation{
		{Turn: 2, SourceKey: "file_search", Index: 0, Title: "A"},
		{Turn: 2, SourceKey: "file_search", Index: 1, FileName: "b.pdf"},
		{Turn: 2, SourceKey: "file_search", Index: 2, URL: "https://c.com"},
	}
	first := Default.RenderInstructions(group, 2, "file_search", "")
	second := Default.RenderInstructions(group, 2, "file_search", "")
	if first != second {
		t.Error("instructions are not deterministic")
	}
	if !strings.Contains(first, "file_search") {
		t.Error("display name should fall back to source key")
	}
}

func TestRenderInstructionsEmpty(t *testing.T) {
	if out := Default.RenderInstructions(nil, 0, "search", ""); out != "" {
		t.Errorf("expected empty output, got %q", out)
	}
}

func TestRenderSourceContext(t *testing.T) {
	group := []citations.Citation{
		{
			Turn: 1, SourceKey: "search", Index: 0,
			Origin: citations.OriginWebSearch, Title: "Article",
			URL: "https://example.com/a", Snippet: "A summary.", Attribution: "example.com",
		},
	}

	out := Default.RenderSourceContext(group, 1, "search")

	for _, want := range []string{
		"=== Web Results, Turn 1 ===",
		`# Result 0: "Article"`,
		"Marker: \u3010turn1search0\u3011",
		"URL: https://example.com/a",
		"Summary: A summary.",
		"Source: example.com",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("context block missing %q:\n%s", want, out)
		}
	}
}
