package markers

import (
	"testing"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected Ref
		ok       bool
	}{
		{"simple", "turn0search0", Ref{0, "search", 0}, true},
		{"multi digit", "turn12search34", Ref{12, "search", 34}, true},
		{"underscored key", "turn0file_search1", Ref{0, "file_search", 1}, true},
		{"digits inside key", "turn0my_2nd_server_3", Ref{0, "my_2nd_server_", 3}, true},
		{"missing prefix", "tur0search0", Ref{}, false},
		{"no turn digits", "turnsearch0", Ref{}, false},
		{"no index digits", "turn0search", Ref{}, false},
		{"empty key", "turn00", Ref{}, false},
		{"uppercase key", "turn0Search0", Ref{}, false},
		{"illegal char", "turn0sea-rch0", Ref{}, false},
		{"empty", "", Ref{}, false},
		{"huge number", "turn99999999990search0", Ref{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := ParseToken(tt.token)
			if ok != tt.ok {
				t.Fatalf("ParseToken(%q) ok = %v, expected %v", tt.token, ok, tt.ok)
			}
			if ok && ref != tt.expected {
				t.Errorf("ParseToken(%q) = %+v, expected %+v", tt.token, ref, tt.expected)
			}
		})
	}
}

func TestScan(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []Marker
	}{
		{
			name: "single marker",
			text: "Fact.【turn0search0】",
			expected: []Marker{
				{Text: "【turn0search0】", Offset: 5, Refs: []Ref{{0, "search", 0}}},
			},
		},
		{
			name: "multi source marker",
			text: "Claim.【turn0search0,turn0search1】",
			expected: []Marker{
				{Text: "【turn0search0,turn0search1】", Offset: 6, Refs: []Ref{{0, "search", 0}, {0, "search", 1}}},
			},
		},
		{
			name: "two markers in order",
			text: "A.【turn0search0】 B.【turn0news0】",
			expected: []Marker{
				{Text: "【turn0search0】", Offset: 2, Refs: []Ref{{0, "search", 0}}},
				{Text: "【turn0news0】", Offset: 23, Refs: []Ref{{0, "news", 0}}},
			},
		},
		{
			name:     "garbage body is not a marker",
			text:     "Plain 【brackets】 text",
			expected: nil,
		},
		{
			name: "malformed expressions omitted",
			text: "X【turn0search0,bogus,turn1news2】",
			expected: []Marker{
				{Text: "【turn0search0,bogus,turn1news2】", Offset: 1, Refs: []Ref{{0, "search", 0}, {1, "news", 2}}},
			},
		},
		{
			name: "stray open before real marker",
			text: "A 【 stray 【turn0search0】",
			expected: []Marker{
				{Text: "【turn0search0】", Offset: 12, Refs: []Ref{{0, "search", 0}}},
			},
		},
		{
			name:     "unclosed marker",
			text:     "A 【turn0search0",
			expected: nil,
		},
		{
			name:     "empty text",
			text:     "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Default.Scan(tt.text)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d markers, got %d: %+v", len(tt.expected), len(got), got)
			}
			for i := range got {
				if got[i].Text != tt.expected[i].Text {
					t.Errorf("marker %d text %q, expected %q", i, got[i].Text, tt.expected[i].Text)
				}
				if got[i].Offset != tt.expected[i].Offset {
					t.Errorf("marker %d offset %d, expected %d", i, got[i].Offset, tt.expected[i].Offset)
				}
				if len(got[i].Refs) != len(tt.expected[i].Refs) {
					t.Fatalf("marker %d: expected %d refs, got %d", i, len(tt.expected[i].Refs), len(got[i].Refs))
				}
				for j := range got[i].Refs {
					if got[i].Refs[j] != tt.expected[i].Refs[j] {
						t.Errorf("marker %d ref %d = %+v, expected %+v", i, j, got[i].Refs[j], tt.expected[i].Refs[j])
					}
				}
			}
		})
	}
}

func TestScanNeverPanics(t *testing.T) {
	inputs := []string{
		"【", "】", "【】", "【【】",
		"】【turn0a0】", "turn0search0", "【,,】",
		"【turn0search0", "text with \xff invalid utf8 【turn0a0】",
	}
	for _, in := range inputs {
		_ = Default.Scan(in)
	}
}

// Generated markers always re-parse to the refs they were generated from.
func TestMarkerRoundTrip(t *testing.T) {
	cases := [][]Ref{
		{{0, "search", 0}},
		{{0, "search", 0}, {0, "search", 1}},
		{{3, "file_search", 12}, {4, "my_mcp_server", 0}, {0, "news", 7}},
	}

	for _, refs := range cases {
		text := "Claim." + Default.Marker(refs...)
		found := Default.Scan(text)
		if len(found) != 1 {
			t.Fatalf("expected 1 marker in %q, got %d", text, len(found))
		}
		if len(found[0].Refs) != len(refs) {
			t.Fatalf("expected %d refs, got %d", len(refs), len(found[0].Refs))
		}
		for i := range refs {
			if found[0].Refs[i] != refs[i] {
				t.Errorf("ref %d = %+v, expected %+v", i, found[0].Refs[i], refs[i])
			}
		}
	}
}

func TestTokenParseTokenInverse(t *testing.T) {
	refs := []Ref{
		{0, "search", 0},
		{10, "file_search", 25},
		{1, "a", 1},
	}
	for _, ref := range refs {
		token := Default.Token(ref)
		parsed, ok := ParseToken(token)
		if !ok || parsed != ref {
			t.Errorf("round trip failed for %+v: token %q parsed to %+v ok=%v", ref, token, parsed, ok)
		}
	}
}

func TestSanitizeSourceKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"web_search", "web_search"},
		{"My MCP Server", "my_mcp_server"},
		{"Weather--API!!", "weather_api"},
		{"  padded  ", "padded"},
		{"UPPER", "upper"},
		{"server2", "server2_"},
		{"2fast", "_2fast"},
		{"", "source"},
		{"!!!", "source"},
		{"日本語ツール", "source"},
	}

	for _, tt := range tests {
		if got := SanitizeSourceKey(tt.input); got != tt.expected {
			t.Errorf("SanitizeSourceKey(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

// Every sanitized key must survive a token round trip, including keys
// produced from names with no ASCII alphanumerics at all.
func TestSanitizedKeysAreGrammarSafe(t *testing.T) {
	names := []string{"web_search", "My Server", "server2", "2fast", "a-b_c d", "files (v2)", "", "!!!", "日本語ツール"}
	for _, name := range names {
		key := SanitizeSourceKey(name)
		ref := Ref{Turn: 4, SourceKey: key, Index: 9}
		parsed, ok := ParseToken(Default.Token(ref))
		if !ok || parsed != ref {
			t.Errorf("sanitized key %q (from %q) is not grammar safe: parsed %+v ok=%v", key, name, parsed, ok)
		}
	}
}
