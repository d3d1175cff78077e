package evidence

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/toolhub/pkg/models"
)

func buildSpec() *models.ToolSpec {
	return &models.ToolSpec{Name: "web/fetch", Version: "2.1.0", Kind: models.KindCore}
}

func fixedBuilder() *Builder {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewBuilder().WithClock(func() time.Time { return at })
}

func findByType(records []models.Evidence, t models.EvidenceType) []models.Evidence {
	var out []models.Evidence
	for _, r := range records {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

func TestBuildToolRecordAlwaysPresent(t *testing.T) {
	b := fixedBuilder()
	records := b.Build(buildSpec(), map[string]any{"url": "x", "mode": "y"}, map[string]any{"ok": true}, nil, 250*time.Millisecond)

	tools := findByType(records, models.EvidenceTool)
	if len(tools) != 1 {
		t.Fatalf("expected exactly one tool record, got %d", len(tools))
	}
	if tools[0].Ref != "web/fetch@2.1.0" {
		t.Errorf("ref = %q", tools[0].Ref)
	}
	if !strings.Contains(tools[0].Summary, "args=[mode,url]") {
		t.Errorf("summary should list sorted arg keys: %q", tools[0].Summary)
	}
	if !strings.Contains(tools[0].Summary, "duration=250ms") {
		t.Errorf("summary should carry duration: %q", tools[0].Summary)
	}
}

func TestBuildAutoExtraction(t *testing.T) {
	b := fixedBuilder()
	result := map[string]any{
		"page":   "https://example.com/a",
		"saved":  "/tmp/out/report.pdf",
		"note":   "not a path",
		"nested": map[string]any{"link": "http://example.org/b"},
	}
	records := b.Build(buildSpec(), nil, result, nil, 0)

	urls := findByType(records, models.EvidenceURL)
	if len(urls) != 2 {
		t.Fatalf("expected 2 url records, got %d", len(urls))
	}
	files := findByType(records, models.EvidenceFile)
	if len(files) != 1 || files[0].Ref != "/tmp/out/report.pdf" {
		t.Fatalf("file records = %v", files)
	}
	// Zero duration emits no metric record.
	if metrics := findByType(records, models.EvidenceMetric); len(metrics) != 0 {
		t.Errorf("unexpected metric records: %v", metrics)
	}
}

func TestBuildExtractionCap(t *testing.T) {
	many := make([]any, 0, 25)
	for i := 0; i < 25; i++ {
		many = append(many, fmt.Sprintf("https://example.com/item/%d", i))
	}
	records := fixedBuilder().Build(buildSpec(), nil, map[string]any{"links": many}, nil, 0)
	if urls := findByType(records, models.EvidenceURL); len(urls) != 10 {
		t.Errorf("url extraction should cap at 10, got %d", len(urls))
	}
}

func TestBuildMergesAdapterEvidence(t *testing.T) {
	provided := []models.Evidence{{Type: models.EvidenceText, Ref: "note", Summary: "from adapter"}}
	records := fixedBuilder().Build(buildSpec(), nil, nil, provided, 10*time.Millisecond)

	if texts := findByType(records, models.EvidenceText); len(texts) != 1 {
		t.Error("adapter evidence should be preserved")
	}
	metrics := findByType(records, models.EvidenceMetric)
	if len(metrics) != 1 || metrics[0].Ref != "latency:web/fetch" {
		t.Errorf("metric records = %v", metrics)
	}
}

func TestLooksLikeFilePath(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"/etc/hosts.txt", true},
		{"./out/data.json", true},
		{"/nodotdir", false},
		{"relative/file.txt", false},
		{"/has space/file.txt", false},
	}
	for _, tc := range cases {
		if got := looksLikeFilePath(tc.in); got != tc.want {
			t.Errorf("looksLikeFilePath(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
