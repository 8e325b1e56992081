package telegram

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/kitbuilder587/valyu-go"
	"github.com/kitbuilder587/valyu-go/internal/domain"
)

func TestFormatSearchResults(t *testing.T) {
	resp := &valyu.SearchResponse{
		Results: []valyu.SearchResult{
			{Title: "PSD3 <draft>", URL: "https://example.com/psd3", Description: "Payment services   directive"},
			{URL: "https://example.com/raw", Content: "raw text content"},
		},
		TotalDeductionDollars: 0.0015,
	}

	result := FormatSearchResults(resp)

	if !strings.Contains(result, "PSD3 &lt;draft&gt;") {
		t.Error("FormatSearchResults() should escape HTML in titles")
	}
	if !strings.Contains(result, "Payment services directive") {
		t.Error("FormatSearchResults() should normalize snippet spaces")
	}
	if !strings.Contains(result, "raw text content") {
		t.Error("FormatSearchResults() should fall back to text content")
	}
	if !strings.Contains(result, `<a href="https://example.com/raw">https://example.com/raw</a>`) {
		t.Error("FormatSearchResults() should use URL when title is empty")
	}
	if !strings.Contains(result, "$0.0015") {
		t.Error("FormatSearchResults() should show cost")
	}
}

func TestFormatSearchResults_Empty(t *testing.T) {
	if got := FormatSearchResults(&valyu.SearchResponse{}); got != "Ничего не найдено." {
		t.Errorf("FormatSearchResults() = %q", got)
	}
}

func TestFormatAnswer(t *testing.T) {
	resp := &valyu.AnswerResponse{
		Contents: "BNPL grew 20% in 2024 & more",
		SearchResults: []valyu.AnswerSearchResult{
			{Title: "Report", URL: "https://example.com/report"},
		},
		Cost: &valyu.AnswerCost{TotalDollars: 0.02},
	}

	result := FormatAnswer(resp)

	if !strings.Contains(result, "BNPL grew 20% in 2024 &amp; more") {
		t.Errorf("FormatAnswer() text not escaped: %q", result)
	}
	if !strings.Contains(result, "[1] <a href=\"https://example.com/report\">Report</a>") {
		t.Error("FormatAnswer() should list sources")
	}
	if !strings.Contains(result, "$0.0200") {
		t.Error("FormatAnswer() should show cost")
	}
}

func TestFormatAnswer_Structured(t *testing.T) {
	resp := &valyu.AnswerResponse{
		Contents: map[string]any{"market": "EU"},
	}

	result := FormatAnswer(resp)
	if !strings.HasPrefix(result, "<pre>") || !strings.Contains(result, "&#34;market&#34;: &#34;EU&#34;") {
		t.Errorf("FormatAnswer() = %q", result)
	}
}

func TestFormatResearchStatus(t *testing.T) {
	s := &valyu.ResearchStatus{
		ID:       "dr_1",
		Status:   valyu.StatusRunning,
		Mode:     valyu.ModeHeavy,
		Progress: &valyu.Progress{CurrentStep: 3, TotalSteps: 7},
	}

	result := FormatResearchStatus(s)

	for _, want := range []string{"<code>dr_1</code>", "выполняется", "heavy", "шаг 3 из 7"} {
		if !strings.Contains(result, want) {
			t.Errorf("FormatResearchStatus() missing %q in %q", want, result)
		}
	}
}

func TestFormatResearchResult(t *testing.T) {
	s := &valyu.ResearchStatus{
		ID:      "dr_1",
		Status:  valyu.StatusCompleted,
		Output:  "# Report\n\nStablecoins <are> regulated",
		PDFURL:  "https://example.com/r.pdf",
		Sources: []valyu.ResearchSource{{Title: "MiCA", URL: "https://example.com/mica"}},
		Usage:   &valyu.ResearchUsage{TotalCost: 1.5},
	}

	result := FormatResearchResult(s)

	for _, want := range []string{"Исследование готово", "Stablecoins &lt;are&gt; regulated", "r.pdf", "MiCA", "$1.5000"} {
		if !strings.Contains(result, want) {
			t.Errorf("FormatResearchResult() missing %q", want)
		}
	}
}

func TestFormatResearchResult_Failed(t *testing.T) {
	s := &valyu.ResearchStatus{ID: "dr_1", Status: valyu.StatusFailed, Error: "model error"}

	result := FormatResearchResult(s)
	if !strings.Contains(result, "ошибка") || !strings.Contains(result, "model error") {
		t.Errorf("FormatResearchResult() = %q", result)
	}
}

func TestFormatTaskList(t *testing.T) {
	records := []domain.TaskRecord{
		{ID: "dr_2", Query: "second", Status: valyu.StatusCompleted, CreatedAt: time.Date(2025, 3, 2, 10, 30, 0, 0, time.UTC)},
		{ID: "dr_1", Query: "first", Status: valyu.StatusQueued, CreatedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
	}

	result := FormatTaskList(records)

	if !strings.Contains(result, "1. ● second") {
		t.Errorf("FormatTaskList() = %q", result)
	}
	if !strings.Contains(result, "02.03.2025 10:30") {
		t.Error("FormatTaskList() should format dates")
	}
	if !strings.Contains(result, "Всего: 2") {
		t.Error("FormatTaskList() should show total")
	}

	if got := FormatTaskList(nil); !strings.Contains(got, "нет исследований") {
		t.Errorf("FormatTaskList(nil) = %q", got)
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   int // number of parts
	}{
		{"short message", "Hello", 100, 1},
		{"exact length", "Hello", 5, 1},
		{"split needed", "Hello World Test", 7, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitMessage(tt.text, tt.maxLen)
			if len(got) != tt.want {
				t.Errorf("SplitMessage() parts = %v, want %v", len(got), tt.want)
			}
		})
	}
}

func TestSplitMessage_KeepsRunes(t *testing.T) {
	text := strings.Repeat("а", 20)

	parts := SplitMessage(text, 7)

	if strings.Join(parts, "") != text {
		t.Fatal("SplitMessage() lost text")
	}
	for i, part := range parts {
		if len(part) > 7 {
			t.Errorf("part %d too long: %d", i, len(part))
		}
		if !utf8.ValidString(part) {
			t.Errorf("part %d splits a rune: %q", i, part)
		}
	}
}

func TestSplitMessage_HTMLTags(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "link tag",
			text: `Text before <a href="https://example.com/very/long/url">link text</a> text after`,
		},
		{
			name: "bold tag",
			text: `Some text <b>bold text here</b> more text`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := SplitMessage(tt.text, 30)

			for i, part := range parts {
				openCount := strings.Count(part, "<")
				closeCount := strings.Count(part, ">")

				if openCount != closeCount {
					t.Errorf("Part %d has unbalanced tags (open=%d, close=%d): %q",
						i, openCount, closeCount, part)
				}
			}
		})
	}
}

func TestIsInsideHTMLTag(t *testing.T) {
	tests := []struct {
		text string
		pos  int
		want bool
	}{
		{`<a href="url">text</a>`, 5, true},
		{`<a href="url">text</a>`, 15, false},
		{`text <b>bold</b>`, 0, false},
		{`text <b>bold</b>`, 6, true},
		{`text <b>bold</b>`, 9, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := isInsideHTMLTag(tt.text, tt.pos)
			if got != tt.want {
				t.Errorf("isInsideHTMLTag(%q, %d) = %v, want %v", tt.text, tt.pos, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"https://example.com", 50, "https://example.com"},
		{"https://example.com/very/long/path", 20, "https://example.c..."},
		{"привет мир", 8, "приве..."},
	}

	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			if got := truncate(tt.s, tt.n); got != tt.want {
				t.Errorf("truncate() = %v, want %v", got, tt.want)
			}
		})
	}
}
